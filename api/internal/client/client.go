// Package client calls the relay over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kisan-mitra/api/internal/chat"
	"kisan-mitra/api/internal/diagnose"
)

const (
	DiagnosePath = "/diagnose"
	ChatPath     = "/chat"

	// response bodies carry only text; 1 MiB is plenty
	maxResponseBytes = 1 << 20
)

type Client struct {
	base string
	hc   *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Diagnose posts the request and returns the raw model text. Relay failures
// come back as *diagnose.Error carrying the relay's kind and message.
func (c *Client) Diagnose(ctx context.Context, req diagnose.Request) (string, error) {
	status, body, err := c.post(ctx, DiagnosePath, req)
	if err != nil {
		return "", err
	}

	var env diagnose.Envelope
	jsonErr := json.Unmarshal(body, &env)
	if status != http.StatusOK {
		return "", relayError(status, body, env.Error, env.Kind, jsonErr)
	}
	if jsonErr != nil || !env.Success || env.Data == "" {
		msg := env.Error
		if msg == "" {
			msg = "The server returned a successful status but an invalid response body."
		}
		return "", &diagnose.Error{Kind: diagnose.KindInternal, Message: msg, Err: jsonErr}
	}
	return env.Data, nil
}

// Chat sends a follow-up question.
func (c *Client) Chat(ctx context.Context, req chat.Request) (chat.Response, error) {
	status, body, err := c.post(ctx, ChatPath, req)
	if err != nil {
		return chat.Response{}, err
	}
	var resp chat.Response
	jsonErr := json.Unmarshal(body, &resp)
	if status != http.StatusOK {
		return chat.Response{}, relayError(status, body, resp.Error, resp.Kind, jsonErr)
	}
	if jsonErr != nil || !resp.Success {
		return chat.Response{}, &diagnose.Error{Kind: diagnose.KindInternal, Message: chat.FallbackReply, Err: jsonErr}
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, in any) (int, []byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, &diagnose.Error{Kind: diagnose.KindUpstreamTimeout, Message: "The server did not respond in time.", Err: err}
		}
		return 0, nil, fmt.Errorf("relay %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read relay response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// relayError prefers the JSON error field and falls back to the raw body text.
func relayError(status int, body []byte, msg string, kind diagnose.Kind, jsonErr error) error {
	if jsonErr != nil || msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if kind == "" {
		kind = diagnose.KindFromStatus(status)
	}
	return &diagnose.Error{Kind: kind, Message: msg}
}
