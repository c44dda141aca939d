// Package flow drives one client through select image -> submit -> result.
// The machine consumes events from a channel and reports every transition on
// an update channel, so front-ends only render updates.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/history"
	"kisan-mitra/api/internal/logger"
)

type State int

const (
	StateIdle State = iota
	StateImageSelected
	StateSubmitting
	StateResultReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImageSelected:
		return "image_selected"
	case StateSubmitting:
		return "submitting"
	case StateResultReady:
		return "result_ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrBusy         = errors.New("flow: a diagnosis is already running")
	ErrNoImage      = errors.New("flow: no image selected")
	ErrInvalidImage = errors.New("flow: invalid image")
)

type Event interface{ event() }

type ImageSelected struct{ DataURI string }
type Submit struct{}
type Reset struct{}

func (ImageSelected) event() {}
func (Submit) event()        {}
func (Reset) event()         {}

// Update reports the state after an event or a finished submission. Err set
// with an unchanged State means the event was rejected.
type Update struct {
	State   State
	Image   string
	Raw     string
	Result  *diagnose.Result
	Entry   *history.Entry
	History []history.Entry
	Err     error
}

// Diagnoser is the relay, in-process or over HTTP.
type Diagnoser interface {
	Diagnose(ctx context.Context, req diagnose.Request) (string, error)
}

type Machine struct {
	d        Diagnoser
	store    *history.Store
	clientID string
	language string
	log      *zap.Logger

	mu    sync.Mutex
	state State
	image string
	gen   int
}

type Option func(*Machine)

// WithHistory records every successful diagnosis for clientID.
func WithHistory(store *history.Store, clientID string) Option {
	return func(m *Machine) {
		m.store = store
		m.clientID = clientID
	}
}

func WithLanguage(lang string) Option {
	return func(m *Machine) { m.language = lang }
}

func New(d Diagnoser, opts ...Option) *Machine {
	m := &Machine{d: d, language: diagnose.DefaultLanguage, log: logger.With(zap.String("component", "flow"))}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

type outcome struct {
	gen   int
	image string
	raw   string
	err   error
}

// Run processes events until ctx is done or events is closed and no
// submission is pending. The returned channel is closed on exit.
func (m *Machine) Run(ctx context.Context, events <-chan Event) <-chan Update {
	out := make(chan Update, 4)
	go func() {
		defer close(out)
		results := make(chan outcome, 1)
		var cancel context.CancelFunc = func() {}
		defer func() { cancel() }()

		emit := func(u Update) bool {
			select {
			case out <- u:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-events:
				if !ok {
					events = nil
					if m.State() != StateSubmitting {
						return
					}
					continue
				}
				if _, isSubmit := ev.(Submit); isSubmit {
					u, start := m.submit()
					if start != nil {
						cancel()
						var sctx context.Context
						sctx, cancel = context.WithCancel(ctx)
						go func() {
							o := start(sctx)
							select {
							case results <- o:
							case <-ctx.Done():
							}
						}()
					}
					if !emit(u) {
						return
					}
					continue
				}
				if _, isReset := ev.(Reset); isReset {
					cancel()
				}
				if !emit(m.apply(ev)) {
					return
				}

			case res := <-results:
				u, ok := m.finish(ctx, res)
				if ok && !emit(u) {
					return
				}
				if events == nil && m.State() != StateSubmitting {
					return
				}
			}
		}
	}()
	return out
}

func (m *Machine) apply(ev Event) Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e := ev.(type) {
	case ImageSelected:
		if m.state == StateSubmitting {
			return m.snapshot(ErrBusy)
		}
		if _, err := diagnose.ParseDataURI(e.DataURI); err != nil {
			return m.snapshot(fmt.Errorf("%w: %v", ErrInvalidImage, err))
		}
		m.image = e.DataURI
		m.state = StateImageSelected
		return m.snapshot(nil)

	case Reset:
		m.gen++
		m.image = ""
		m.state = StateIdle
		return m.snapshot(nil)

	default:
		return m.snapshot(fmt.Errorf("flow: unknown event %T", ev))
	}
}

func (m *Machine) submit() (Update, func(context.Context) outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateSubmitting {
		return m.snapshot(ErrBusy), nil
	}
	if m.image == "" {
		return m.snapshot(ErrNoImage), nil
	}
	m.gen++
	m.state = StateSubmitting
	gen, image, lang := m.gen, m.image, m.language

	return m.snapshot(nil), func(ctx context.Context) outcome {
		raw, err := m.d.Diagnose(ctx, diagnose.Request{Image: image, Language: lang})
		return outcome{gen: gen, image: image, raw: raw, err: err}
	}
}

// finish applies a submission outcome; stale outcomes (after Reset) are dropped.
func (m *Machine) finish(ctx context.Context, res outcome) (Update, bool) {
	m.mu.Lock()
	if res.gen != m.gen || m.state != StateSubmitting {
		m.mu.Unlock()
		return Update{}, false
	}
	if res.err != nil {
		m.state = StateFailed
		u := m.snapshot(res.err)
		m.mu.Unlock()
		m.log.Warn("diagnosis failed", zap.Error(res.err))
		return u, true
	}
	m.mu.Unlock()

	result := diagnose.Normalize(res.raw)
	u := Update{Image: res.image, Raw: res.raw, Result: &result}
	if m.store != nil {
		e, err := m.store.Record(ctx, m.clientID, result, res.image)
		if err != nil {
			m.log.Error("record history", zap.Error(err))
			u.Err = fmt.Errorf("record history: %w", err)
		} else {
			u.Entry = &e
			if list, err := m.store.List(ctx, m.clientID); err == nil {
				u.History = list
			}
		}
	}

	m.mu.Lock()
	m.state = StateResultReady
	u.State = m.state
	m.mu.Unlock()
	return u, true
}

func (m *Machine) snapshot(err error) Update {
	return Update{State: m.state, Image: m.image, Err: err}
}
