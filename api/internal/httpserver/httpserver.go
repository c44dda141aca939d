// Package httpserver assembles the HTTP routes and runs the server with
// graceful shutdown.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"kisan-mitra/api/internal/handle"
	"kisan-mitra/api/internal/logger"
)

// FunctionPrefix is the serverless-style path the web front-end calls when
// it is not served from localhost.
const FunctionPrefix = "/.netlify/functions/api"

const shutdownTimeout = 10 * time.Second

type Options struct {
	// Handle serves /diagnose and /chat; nil leaves them out.
	Handle      *handle.Handle
	PublicDir   string
	CORSOrigins []string

	WebhookPath string
	Webhook     http.Handler

	// Banner is the body of "/" when there is no public dir.
	Banner string
}

func NewRouter(o Options) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handle.Healthz).Methods(http.MethodGet, http.MethodHead)

	if o.Handle != nil {
		for _, prefix := range []string{"", FunctionPrefix} {
			r.HandleFunc(prefix+"/diagnose", o.Handle.Diagnose).Methods(http.MethodPost)
			r.HandleFunc(prefix+"/chat", o.Handle.Chat).Methods(http.MethodPost)
		}
	}
	if o.Webhook != nil && o.WebhookPath != "" {
		r.Handle(o.WebhookPath, o.Webhook).Methods(http.MethodPost)
	}

	if st, err := os.Stat(o.PublicDir); o.PublicDir != "" && err == nil && st.IsDir() {
		logger.Infof("serving static files from %s", o.PublicDir)
		r.PathPrefix("/").Handler(spa{dir: o.PublicDir}).Methods(http.MethodGet, http.MethodHead)
	} else {
		banner := o.Banner
		r.Path("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(banner))
		})
	}

	origins := o.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(r)
}

// spa serves files from dir and falls back to index.html for unknown paths.
type spa struct{ dir string }

func (s spa) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.dir, filepath.FromSlash(p))
	if st, err := os.Stat(full); err == nil && !st.IsDir() {
		http.ServeFile(w, r, full)
		return
	}
	if strings.HasPrefix(p, FunctionPrefix) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.dir, "index.html"))
}

// Run serves handler on addr until ctx is cancelled, then shuts down.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("shutting down %s", addr)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
