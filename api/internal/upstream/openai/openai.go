package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"kisan-mitra/api/internal/upstream"
)

type Engine struct {
	APIKey string
	Model  string
	client *openai.Client
}

// New creates an OpenAI engine. baseURL may be empty for the public API.
func New(apiKey, model, baseURL string) *Engine {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		client: openai.NewClientWithConfig(cfg),
	}
}

func (e *Engine) Name() string     { return "openai" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, in upstream.Request) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY not set")
	}
	dataURL := "data:" + in.MIME + ";base64," + base64.StdEncoding.EncodeToString(in.Image)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: in.Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		}},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", mapError(err)
	}
	return firstText(resp)
}

func (e *Engine) Chat(ctx context.Context, history []upstream.Turn, message string) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY not set")
	}
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == upstream.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.Model,
		Messages:    msgs,
		Temperature: 0.4,
	})
	if err != nil {
		return "", mapError(err)
	}
	return firstText(resp)
}

func firstText(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", upstream.ErrEmptyResponse
	}
	txt := strings.TrimSpace(resp.Choices[0].Message.Content)
	if txt == "" {
		return "", upstream.ErrEmptyResponse
	}
	return txt, nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &upstream.StatusError{Provider: "openai", Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &upstream.StatusError{Provider: "openai", Code: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}
