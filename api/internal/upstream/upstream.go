// Package upstream describes the multimodal text model the relay talks to.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when the model answered without any text.
var ErrEmptyResponse = errors.New("upstream: empty response")

// Request is a single prompt plus one inline image.
type Request struct {
	Prompt string
	Image  []byte
	MIME   string
}

// Model is a multimodal generative text API.
type Model interface {
	Name() string
	Generate(ctx context.Context, in Request) (string, error)
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message of a follow-up conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Chatter answers a message given the prior turns.
type Chatter interface {
	Chat(ctx context.Context, history []Turn, message string) (string, error)
}

// StatusError reports a non-success status returned by the model API.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Provider, e.Code, e.Message)
}

// Engines holds the configured providers.
type Engines struct {
	Gemini Model
	OpenAI Model
}

func (e *Engines) Get(name string) (Model, error) {
	var m Model
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini":
		m = e.Gemini
	case "openai", "gpt":
		m = e.OpenAI
	default:
		return nil, fmt.Errorf("unknown upstream provider %q; use 'gemini' or 'openai'", name)
	}
	if m == nil {
		return nil, fmt.Errorf("upstream provider %q is not configured", name)
	}
	return m, nil
}
