package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"kisan-mitra/api/internal/upstream"
)

type Engine struct {
	APIKey string
	Model  string
	opts   []option.ClientOption
}

// New creates a Gemini engine. Extra client options (endpoint, HTTP client)
// are appended after the API key.
func New(apiKey, model string, opts ...option.ClientOption) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		opts:   opts,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) model(ctx context.Context) (*genai.Client, *genai.GenerativeModel, error) {
	if e.APIKey == "" {
		return nil, nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)...)
	if err != nil {
		return nil, nil, err
	}
	m := cl.GenerativeModel(e.Model)
	if m == nil {
		cl.Close()
		return nil, nil, fmt.Errorf("gemini: model is nil")
	}
	return cl, m, nil
}

// Generate sends the prompt and the inline image in one request.
func (e *Engine) Generate(ctx context.Context, in upstream.Request) (string, error) {
	cl, m, err := e.model(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0.2),
		ResponseMIMEType: "application/json",
	}

	resp, err := m.GenerateContent(ctx,
		genai.Text(in.Prompt),
		genai.Blob{MIMEType: in.MIME, Data: in.Image},
	)
	if err != nil {
		return "", mapError(err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", upstream.ErrEmptyResponse
	}
	return txt, nil
}

// Chat continues a follow-up conversation about a diagnosis.
func (e *Engine) Chat(ctx context.Context, history []upstream.Turn, message string) (string, error) {
	cl, m, err := e.model(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m.GenerationConfig = genai.GenerationConfig{Temperature: ptrFloat32(0.4)}
	cs := m.StartChat()
	cs.History = toContents(history)

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", mapError(err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", upstream.ErrEmptyResponse
	}
	return txt, nil
}

func toContents(turns []upstream.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := upstream.RoleUser
		if t.Role == upstream.RoleModel {
			role = upstream.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Text)}})
	}
	return out
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

// mapError turns API failures into *upstream.StatusError so the relay can
// tell an upstream rejection from a local failure.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &upstream.StatusError{Provider: "gemini", Code: http.StatusBadRequest, Message: blocked.Error()}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		return &upstream.StatusError{Provider: "gemini", Code: gerr.Code, Message: msg}
	}

	if ae, ok := apierror.FromError(err); ok {
		code := ae.HTTPCode()
		if code <= 0 && ae.GRPCStatus() != nil {
			if ae.GRPCStatus().Code() == codes.DeadlineExceeded {
				return fmt.Errorf("gemini: %w", context.DeadlineExceeded)
			}
			code = grpcToHTTP(ae.GRPCStatus().Code())
		}
		msg := ae.Error()
		if ae.GRPCStatus() != nil && ae.GRPCStatus().Message() != "" {
			msg = ae.GRPCStatus().Message()
		}
		return &upstream.StatusError{Provider: "gemini", Code: code, Message: msg}
	}
	return err
}

func grpcToHTTP(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func ptrFloat32(v float32) *float32 { return &v }
