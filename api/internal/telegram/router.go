package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"kisan-mitra/api/internal/chat"
	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/history"
	"kisan-mitra/api/internal/logger"
	"kisan-mitra/api/internal/upstream"
)

// Bot is the part of *tgbotapi.BotAPI the router needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Diagnoser is the relay, in-process or over HTTP.
type Diagnoser interface {
	Diagnose(ctx context.Context, req diagnose.Request) (string, error)
}

type Router struct {
	Bot     Bot
	Relay   Diagnoser
	History *history.Store
	Chatter upstream.Chatter
	HTTP    *http.Client

	state chatState
	jobs  sync.WaitGroup
	log   *zap.Logger
}

// NewRouter builds a router. A nil chatter answers follow-ups with the
// simulated reply.
func NewRouter(bot Bot, relay Diagnoser, store *history.Store, chatter upstream.Chatter) *Router {
	if chatter == nil {
		chatter = chat.Simulated{}
	}
	return &Router{
		Bot:     bot,
		Relay:   relay,
		History: store,
		Chatter: chatter,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		log:     logger.With(zap.String("component", "telegram")),
	}
}

func clientID(chatID int64) string { return fmt.Sprintf("tg:%d", chatID) }

// HandleUpdate routes one update. Photos are analyzed in the background, one
// at a time per chat; everything else is answered before it returns.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.dispatchPhoto(ctx, cid, ph.FileID, "image/jpeg")
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.dispatchPhoto(ctx, cid, msg.Document.FileID, msg.Document.MimeType)
	case strings.TrimSpace(msg.Text) != "":
		r.followUp(ctx, cid, msg.Text)
	}
}

// Wait blocks until every background photo analysis has finished.
func (r *Router) Wait() { r.jobs.Wait() }

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, welcomeText)
	case "lang":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			r.send(cid, "Current language: "+r.state.language(cid)+"\nUsage: /lang hi")
			return
		}
		lang := diagnose.NormalizeLanguage(arg)
		r.state.setLanguage(cid, lang)
		r.send(cid, "Language set to "+lang+".")
	case "history":
		list, err := r.History.List(ctx, clientID(cid))
		if err != nil {
			r.log.Error("history list", zap.Int64("chat_id", cid), zap.Error(err))
			r.send(cid, "Could not load your history. Please try again.")
			return
		}
		r.send(cid, formatHistory(list))
	case "clear":
		if err := r.History.Clear(ctx, clientID(cid)); err != nil {
			r.log.Error("history clear", zap.Int64("chat_id", cid), zap.Error(err))
			r.send(cid, "Could not clear your history. Please try again.")
			return
		}
		r.state.endConversation(cid)
		r.send(cid, "History cleared.")
	default:
		r.send(cid, "Unknown command. Try /help")
	}
}

func (r *Router) send(chatID int64, text string) {
	if rs := []rune(text); len(rs) > maxMessageLen {
		text = string(rs[:maxMessageLen]) + "…"
	}
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
