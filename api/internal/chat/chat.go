// Package chat holds the follow-up conversation about a diagnosis.
package chat

import (
	"context"
	"errors"
	"strings"

	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/upstream"
)

const (
	SeedUserText   = "Image of my crop."
	SimulatedReply = "This is a simulated chat response. The backend endpoint for chat needs to be created."
	FallbackReply  = "Sorry, I couldn't get a response."

	// MaxTurns bounds the history a client may send back.
	MaxTurns = 40
)

var (
	ErrEmptyQuestion = errors.New("chat: empty question")
	ErrHealthy       = errors.New("chat: no follow-up for a healthy crop")
	ErrTooLong       = errors.New("chat: conversation too long")
)

type Conversation struct {
	issue string
	turns []upstream.Turn
}

// Seed starts a conversation for an unhealthy diagnosis.
func Seed(res diagnose.Result) (*Conversation, error) {
	if res.IsHealthy {
		return nil, ErrHealthy
	}
	return New(res.IssueName), nil
}

func New(issue string) *Conversation {
	return &Conversation{
		issue: issue,
		turns: []upstream.Turn{
			{Role: upstream.RoleUser, Text: SeedUserText},
			{Role: upstream.RoleModel, Text: seedModelText(issue)},
		},
	}
}

// Resume continues a conversation whose turns the client kept. An empty
// history is seeded from issue.
func Resume(issue string, history []upstream.Turn) (*Conversation, error) {
	if len(history) == 0 {
		return New(issue), nil
	}
	if len(history) > MaxTurns {
		return nil, ErrTooLong
	}
	turns := make([]upstream.Turn, 0, len(history))
	for _, t := range history {
		if t.Role != upstream.RoleModel {
			t.Role = upstream.RoleUser
		}
		turns = append(turns, t)
	}
	return &Conversation{issue: issue, turns: turns}, nil
}

func (c *Conversation) Issue() string { return c.issue }

func (c *Conversation) History() []upstream.Turn {
	out := make([]upstream.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Ask sends the question and appends both turns on success. On error the
// history is unchanged and callers show FallbackReply.
func (c *Conversation) Ask(ctx context.Context, r upstream.Chatter, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	wrapped := WrapQuestion(question)
	reply, err := r.Chat(ctx, c.History(), wrapped)
	if err != nil {
		return "", err
	}
	c.turns = append(c.turns,
		upstream.Turn{Role: upstream.RoleUser, Text: wrapped},
		upstream.Turn{Role: upstream.RoleModel, Text: reply},
	)
	return reply, nil
}

func WrapQuestion(q string) string {
	return `Give a short, direct, practical answer: "` + q + `"`
}

func seedModelText(issue string) string {
	return "The diagnosis is " + issue + ". Answer follow-up questions directly."
}

// Simulated answers every question with the same canned reply.
type Simulated struct{}

func (Simulated) Chat(context.Context, []upstream.Turn, string) (string, error) {
	return SimulatedReply, nil
}

// SpeechLocale is the voice-input locale for a diagnosis language.
func SpeechLocale(lang string) string {
	if strings.HasPrefix(strings.ToLower(diagnose.NormalizeLanguage(lang)), "en") {
		return "en-IN"
	}
	return "hi-IN"
}
