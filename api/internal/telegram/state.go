package telegram

import (
	"sync"

	"kisan-mitra/api/internal/chat"
	"kisan-mitra/api/internal/diagnose"
)

const maxMessageLen = 3900

// chatState keeps per-chat settings in memory; history itself lives in the
// history store.
type chatState struct {
	langs sync.Map // chatID -> string
	convs sync.Map // chatID -> *conversation
	busy  sync.Map // chatID -> struct{}
}

type conversation struct {
	mu   sync.Mutex
	conv *chat.Conversation
}

func (s *chatState) language(chatID int64) string {
	if v, ok := s.langs.Load(chatID); ok {
		return v.(string)
	}
	return diagnose.DefaultLanguage
}

func (s *chatState) setLanguage(chatID int64, lang string) { s.langs.Store(chatID, lang) }

func (s *chatState) startConversation(chatID int64, c *chat.Conversation) {
	s.convs.Store(chatID, &conversation{conv: c})
}

func (s *chatState) conversation(chatID int64) (*conversation, bool) {
	v, ok := s.convs.Load(chatID)
	if !ok {
		return nil, false
	}
	return v.(*conversation), true
}

func (s *chatState) endConversation(chatID int64) { s.convs.Delete(chatID) }

// acquire marks the chat busy; false means a photo is already being diagnosed.
func (s *chatState) acquire(chatID int64) bool {
	_, loaded := s.busy.LoadOrStore(chatID, struct{}{})
	return !loaded
}

func (s *chatState) release(chatID int64) { s.busy.Delete(chatID) }
