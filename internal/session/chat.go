package session

import (
	"sync"

	"github.com/talentbridge/livesession/internal/domain"
)

// ChatLog is the append-only session log, ordered by arrival. Outbound
// messages are not inserted locally; the relay echoes them back so the log
// updates through one path for every party, sender included.
type ChatLog struct {
	mu   sync.Mutex
	msgs []domain.ChatMessage
}

func NewChatLog() *ChatLog {
	return &ChatLog{}
}

func (l *ChatLog) Append(m domain.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
}

func (l *ChatLog) Messages() []domain.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ChatMessage, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *ChatLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}
