package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kisan-mitra/api/internal/config"
	"kisan-mitra/api/internal/engine"
	"kisan-mitra/api/internal/history"
	"kisan-mitra/api/internal/history/backend"
	"kisan-mitra/api/internal/httpserver"
	"kisan-mitra/api/internal/logger"
	"kisan-mitra/api/internal/telegram"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()
	if err != nil {
		logger.Errorf("bot: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Infof("bot stopped")
	_ = logger.Sync()
}

// run owns every resource it opens and releases them before returning.
func run(ctx context.Context, cfg *config.Config) error {
	token := strings.TrimSpace(cfg.TelegramBotToken)
	if token == "" {
		return errors.New("missing required env TELEGRAM_BOT_TOKEN")
	}

	repo, closeRepo, err := backend.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("history backend %q: %w", cfg.HistoryBackend, err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logger.Warnf("close history backend: %v", err)
		}
	}()
	store := history.New(repo, history.WithLocation(cfg.Location()))

	relay, chatter, err := engine.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	logger.Get().Info("bot authorized", zap.String("username", bot.Self.UserName))

	r := telegram.NewRouter(bot, relay, store, chatter)
	defer r.Wait()
	addr := ":" + cfg.Port

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		err = runWebhook(ctx, addr, bot, r, webhookURL)
	} else {
		err = runPollingMode(ctx, addr, bot, r)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ---------------- Modes -----------------

func runWebhook(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) error {
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	updates := make(chan tgbotapi.Update, 64)
	hook := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			logger.Warnf("webhook: bad update: %v", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		select {
		case updates <- *upd:
		case <-req.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	})

	router := httpserver.NewRouter(httpserver.Options{WebhookPath: path, Webhook: hook, Banner: "kisan-mitra bot"})
	logger.Infof("webhook listening on %s%s", addr, path)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(gctx, addr, router) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case upd := <-updates:
				r.HandleUpdate(gctx, upd)
			}
		}
	})
	return g.Wait()
}

func runPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warnf("delete webhook: %v", err)
	}
	router := httpserver.NewRouter(httpserver.Options{Banner: "kisan-mitra bot"})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(gctx, addr, router) })
	g.Go(func() error {
		runPolling(gctx, bot, func(upd tgbotapi.Update) { r.HandleUpdate(gctx, upd) })
		return nil
	})
	return g.Wait()
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	const (
		baseDelay = time.Second
		maxDelay  = 15 * time.Second
	)

	for {
		if ctx.Err() != nil {
			logger.Infof("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			logger.Warnf("polling error: %v; retry in %v", err, d)
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 && !sleep(ctx, 200*time.Millisecond) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ---------------- Helpers -----------------

// shortHash is a stable FNV-1a hex of the token, used as the webhook path.
func shortHash(s string) string {
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
