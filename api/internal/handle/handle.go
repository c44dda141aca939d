package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kisan-mitra/api/internal/chat"
	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/logger"
	"kisan-mitra/api/internal/upstream"
)

// MaxBodyBytes bounds request bodies; base64 photos from phones fit easily.
const MaxBodyBytes = 10 << 20

const requestIDHeader = "X-Request-ID"

// Diagnoser is satisfied by *diagnose.Relay.
type Diagnoser interface {
	Diagnose(ctx context.Context, req diagnose.Request) (string, error)
}

type Handle struct {
	relay       Diagnoser
	chatter     upstream.Chatter
	chatTimeout time.Duration
	log         *zap.Logger
}

// New wires the handlers. A nil chatter answers follow-ups with the
// simulated reply.
func New(relay Diagnoser, chatter upstream.Chatter, chatTimeout time.Duration) *Handle {
	if chatter == nil {
		chatter = chat.Simulated{}
	}
	if chatTimeout <= 0 {
		chatTimeout = diagnose.DefaultTimeout
	}
	return &Handle{
		relay:       relay,
		chatter:     chatter,
		chatTimeout: chatTimeout,
		log:         logger.With(zap.String("component", "http")),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if id == "" || len(id) > 64 {
		id = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, id)
	return id
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
