package handle

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"kisan-mitra/api/internal/chat"
	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/upstream"
)

// Chat handles POST /chat: one follow-up question about a diagnosis.
func (h *Handle) Chat(w http.ResponseWriter, r *http.Request) {
	id := requestID(w, r)
	log := h.log.With(zap.String("request_id", id), zap.String("path", r.URL.Path))

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, chat.Response{Error: "POST only", Kind: diagnose.KindInvalidRequest})
		return
	}

	var req chat.Request
	if code, msg := decodeBody(w, r, &req); msg != "" {
		writeJSON(w, code, chat.Response{Error: msg, Kind: diagnose.KindInvalidRequest})
		return
	}
	if strings.TrimSpace(req.IssueName) == "" && len(req.History) == 0 {
		writeJSON(w, http.StatusBadRequest, chat.Response{Error: "issueName is required.", Kind: diagnose.KindInvalidRequest})
		return
	}

	conv, err := chat.Resume(req.IssueName, req.History)
	if err != nil {
		h.chatError(w, log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.chatTimeout)
	defer cancel()
	reply, err := conv.Ask(ctx, h.chatter, req.Message)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = context.DeadlineExceeded
		}
		h.chatError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, chat.Response{
		Success:      true,
		Reply:        reply,
		History:      conv.History(),
		SpeechLocale: chat.SpeechLocale(req.Language),
	})
}

func (h *Handle) chatError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind, msg := diagnose.KindInternal, chat.FallbackReply
	var se *upstream.StatusError
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		kind, msg = diagnose.KindInvalidRequest, "Question is empty."
	case errors.Is(err, chat.ErrTooLong):
		kind, msg = diagnose.KindInvalidRequest, "Conversation is too long."
	case errors.Is(err, context.DeadlineExceeded):
		kind = diagnose.KindUpstreamTimeout
	case errors.As(err, &se):
		kind = diagnose.KindUpstream
	}
	log.Warn("chat failed", zap.String("kind", string(kind)), zap.Error(err))
	writeJSON(w, kind.Status(), chat.Response{Error: msg, Kind: kind})
}
