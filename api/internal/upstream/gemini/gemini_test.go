package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kisan-mitra/api/internal/upstream"
)

func TestGenerateWithoutKey(t *testing.T) {
	e := New("  ", "gemini-2.0-flash")
	_, err := e.Generate(context.Background(), upstream.Request{Prompt: "p", Image: []byte{1}, MIME: "image/png"})
	assert.ErrorContains(t, err, "GEMINI_API_KEY is empty")
	assert.Equal(t, "gemini", e.Name())
	assert.Equal(t, "gemini-2.0-flash", e.GetModel())
}

func TestFirstText(t *testing.T) {
	assert.Empty(t, firstText(nil))
	assert.Empty(t, firstText(&genai.GenerateContentResponse{}))
	assert.Empty(t, firstText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{
			genai.Text("```json\n{\"issueName\":"),
			genai.Blob{MIMEType: "image/png"},
			genai.Text("\"Rust\"}\n```\n"),
		}},
	}}}
	assert.Equal(t, "```json\n{\"issueName\":\"Rust\"}\n```", firstText(resp))
}

func TestToContents(t *testing.T) {
	got := toContents([]upstream.Turn{
		{Role: upstream.RoleUser, Text: "Image of my crop."},
		{Role: upstream.RoleModel, Text: "The diagnosis is Rust."},
		{Role: "assistant", Text: "coerced"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, "model", got[1].Role)
	assert.Equal(t, "user", got[2].Role)
	assert.Equal(t, genai.Text("The diagnosis is Rust."), got[1].Parts[0])
}

func TestMapError(t *testing.T) {
	var se *upstream.StatusError

	err := mapError(fmt.Errorf("call: %w", &googleapi.Error{Code: 403, Message: "API key not valid"}))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 403, se.Code)
	assert.Equal(t, "API key not valid", se.Message)

	err = mapError(status.Error(codes.ResourceExhausted, "quota exceeded"))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "quota exceeded", se.Message)

	err = mapError(status.Error(codes.DeadlineExceeded, "slow"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	err = mapError(&genai.BlockedError{})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)

	plain := errors.New("dial tcp: connection refused")
	assert.Equal(t, plain, mapError(plain))
	assert.Equal(t, context.Canceled, mapError(context.Canceled))
}
