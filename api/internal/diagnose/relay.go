package diagnose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kisan-mitra/api/internal/logger"
	"kisan-mitra/api/internal/upstream"
)

const (
	DefaultTimeout = 30 * time.Second

	maxUpstreamDetail = 300
)

// Relay forwards one image + prompt to the upstream model and returns the
// raw model text. It keeps no state between requests.
type Relay struct {
	model      upstream.Model
	credential string
	prompt     Prompt
	timeout    time.Duration
	log        *zap.Logger
}

type Option func(*Relay)

// WithCredential sets the upstream API key. An empty key makes every
// request fail with ConfigurationError; the key is also scrubbed from
// upstream messages.
func WithCredential(key string) Option {
	return func(r *Relay) { r.credential = strings.TrimSpace(key) }
}

func WithPrompt(p Prompt) Option {
	return func(r *Relay) { r.prompt = p }
}

func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Relay) { r.log = l }
}

func NewRelay(model upstream.Model, opts ...Option) *Relay {
	r := &Relay{
		model:   model,
		prompt:  DefaultPrompt(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.With(zap.String("component", "relay"))
	}
	return r
}

// Configured reports whether a credential and a model are present.
func (r *Relay) Configured() bool {
	return r.credential != "" && r.model != nil
}

// Diagnose validates req, makes exactly one upstream call and returns the
// model text unmodified. Failures are *Error values.
func (r *Relay) Diagnose(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Image) == "" {
		return "", newError(KindMissingImage, nil)
	}
	img, err := ParseDataURI(req.Image)
	if err != nil {
		return "", newError(KindInvalidImageFormat, err)
	}
	if !r.Configured() {
		r.log.Error("upstream credential is not configured")
		return "", newError(KindConfiguration, nil)
	}

	lang := NormalizeLanguage(req.Language)
	log := r.log.With(zap.String("upstream", r.model.Name()), zap.String("language", lang),
		zap.String("mime", img.MIME), zap.Int("bytes", len(img.Data)))

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	text, err := r.model.Generate(callCtx, upstream.Request{
		Prompt: r.prompt.Render(lang),
		Image:  img.Data,
		MIME:   img.MIME,
	})
	if err != nil {
		derr := r.classify(callCtx, err)
		log.Error("upstream call failed",
			zap.String("kind", string(derr.Kind)),
			zap.Duration("elapsed", time.Since(started)),
			zap.String("detail", r.redact(err.Error())))
		return "", derr
	}
	log.Info("upstream call succeeded", zap.Duration("elapsed", time.Since(started)))
	return text, nil
}

func (r *Relay) classify(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindUpstreamTimeout, err)
	}
	var se *upstream.StatusError
	if errors.As(err, &se) {
		e := newError(KindUpstream, err)
		if detail := r.redact(se.Message); detail != "" {
			e.Message = fmt.Sprintf("AI service error (%d): %s", se.Code, detail)
		}
		return e
	}
	return newError(KindInternal, err)
}

// redact removes the credential and bounds the length of upstream text.
func (r *Relay) redact(s string) string {
	if r.credential != "" {
		s = strings.ReplaceAll(s, r.credential, "[redacted]")
	}
	s = strings.TrimSpace(s)
	if rs := []rune(s); len(rs) > maxUpstreamDetail {
		s = string(rs[:maxUpstreamDetail]) + "…"
	}
	return s
}
