package chat

import (
	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/upstream"
)

// Request is the body of POST /chat. The client keeps the history and sends
// it back with every question.
type Request struct {
	IssueName string          `json:"issueName"`
	History   []upstream.Turn `json:"history,omitempty"`
	Message   string          `json:"message"`
	Language  string          `json:"language,omitempty"`
}

type Response struct {
	Success      bool            `json:"success"`
	Reply        string          `json:"reply,omitempty"`
	History      []upstream.Turn `json:"history,omitempty"`
	SpeechLocale string          `json:"speechLocale,omitempty"`
	Error        string          `json:"error,omitempty"`
	Kind         diagnose.Kind   `json:"kind,omitempty"`
}
