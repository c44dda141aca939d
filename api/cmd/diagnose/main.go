// Command diagnose sends a crop photo to the relay, prints the diagnosis and
// keeps the last few results in a local history file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"kisan-mitra/api/internal/capture"
	"kisan-mitra/api/internal/chat"
	"kisan-mitra/api/internal/client"
	"kisan-mitra/api/internal/config"
	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/flow"
	"kisan-mitra/api/internal/history"
	"kisan-mitra/api/internal/logger"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	fs.SetOutput(out)
	image := fs.String("image", "", "path of the crop photo")
	lang := fs.String("lang", diagnose.DefaultLanguage, "answer language")
	relayURL := fs.String("relay", cfg.RelayURL, "relay base URL")
	historyFile := fs.String("history-file", cfg.HistoryFile, "local history file")
	showHistory := fs.Bool("history", false, "list past diagnoses and exit")
	wipe := fs.Bool("clear", false, "delete the local history and exit")
	ask := fs.String("ask", "", "follow-up question about the diagnosis")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := history.New(history.NewFileRepo(*historyFile), history.WithLocation(cfg.Location()))
	switch {
	case *wipe:
		if err := store.Clear(ctx, ""); err != nil {
			return err
		}
		fmt.Fprintln(out, "History cleared.")
		return nil
	case *showHistory:
		return printHistory(ctx, store, out)
	case *image == "":
		fs.Usage()
		return errors.New("-image is required")
	}

	uri, err := capture.FromFile(*image)
	if err != nil {
		return errors.New(capture.UserMessage(err))
	}

	rc := client.New(*relayURL)
	res, err := diagnoseImage(ctx, rc, store, uri, *lang)
	if err != nil {
		return err
	}
	fmt.Fprint(out, diagnose.FormatText(res))

	if *ask == "" || res.IsHealthy {
		return nil
	}
	resp, err := rc.Chat(ctx, chat.Request{IssueName: res.IssueName, Message: *ask, Language: *lang})
	if err != nil {
		fmt.Fprintln(out, "\n"+chat.FallbackReply)
		return nil
	}
	fmt.Fprintln(out, "\n"+resp.Reply)
	return nil
}

// diagnoseImage drives one select-and-submit round of the flow machine.
func diagnoseImage(ctx context.Context, d flow.Diagnoser, store *history.Store, uri, lang string) (diagnose.Result, error) {
	m := flow.New(d, flow.WithHistory(store, ""), flow.WithLanguage(lang))
	events := make(chan flow.Event, 2)
	events <- flow.ImageSelected{DataURI: uri}
	events <- flow.Submit{}
	close(events)

	var last flow.Update
	for u := range m.Run(ctx, events) {
		if u.Err != nil && u.State != flow.StateResultReady {
			return diagnose.Result{}, u.Err
		}
		last = u
	}
	switch {
	case last.State == flow.StateResultReady && last.Result != nil:
		if last.Err != nil {
			logger.Warnf("history not saved: %v", last.Err)
		}
		return *last.Result, nil
	case ctx.Err() != nil:
		return diagnose.Result{}, ctx.Err()
	default:
		return diagnose.Result{}, fmt.Errorf("diagnosis ended in state %s", last.State)
	}
}

func printHistory(ctx context.Context, store *history.Store, out io.Writer) error {
	list, err := store.List(ctx, "")
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No past diagnoses found.")
		return nil
	}
	for _, e := range list {
		fmt.Fprintf(out, "%s  %s\n", e.Date, e.IssueName)
	}
	return nil
}
