package handle

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"kisan-mitra/api/internal/diagnose"
)

// Diagnose handles POST /diagnose.
func (h *Handle) Diagnose(w http.ResponseWriter, r *http.Request) {
	id := requestID(w, r)
	log := h.log.With(zap.String("request_id", id), zap.String("path", r.URL.Path))

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, diagnose.Envelope{Error: "POST only", Kind: diagnose.KindInvalidRequest})
		return
	}

	var req diagnose.Request
	if code, msg := decodeBody(w, r, &req); msg != "" {
		log.Warn("bad request body", zap.Int("status", code))
		writeJSON(w, code, diagnose.Envelope{Error: msg, Kind: diagnose.KindInvalidRequest})
		return
	}

	started := time.Now()
	raw, err := h.relay.Diagnose(r.Context(), req)
	if err != nil {
		kind := diagnose.KindOf(err)
		msg := err.Error()
		if kind == diagnose.KindInternal {
			msg = (&diagnose.Error{Kind: kind}).Error()
		}
		log.Warn("diagnose failed", zap.String("kind", string(kind)), zap.Duration("elapsed", time.Since(started)))
		writeJSON(w, kind.Status(), diagnose.Envelope{Error: msg, Kind: kind})
		return
	}
	log.Info("diagnose ok", zap.Duration("elapsed", time.Since(started)), zap.Int("chars", len(raw)))
	writeJSON(w, http.StatusOK, diagnose.Envelope{Success: true, Data: raw})
}
