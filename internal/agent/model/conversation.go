package model

import (
	"context"
	"time"

	"github.com/Chative-order-agent/server/internal/order"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged message of the customer conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is everything kept for one conversation between turns. It is
// exclusively owned by the holder of the conversation lock.
type Session struct {
	ID        string        `json:"conversationId"`
	Order     order.Order   `json:"order"`
	Messages  []ChatMessage `json:"messages"`
	ThreadRef string        `json:"threadRef"`
	RunRef    string        `json:"runRef,omitempty"`
	Location  string        `json:"location,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func NewSession(id, threadRef string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Messages:  []ChatMessage{},
		ThreadRef: threadRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) AddMessage(role, content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: content})
}

type SessionRepository interface {
	// Load returns the session or an error matching errx.ErrSessionNotFound
	Load(ctx context.Context, conversationID string) (*Session, error)

	// Save stores the session, last writer wins, and refreshes its TTL
	Save(ctx context.Context, session *Session) error

	// Delete evicts the session
	Delete(ctx context.Context, conversationID string) error
}

// ConversationLocker serializes correction loops of one conversation.
type ConversationLocker interface {
	// Lock blocks until the conversation is free or the wait budget is spent,
	// in which case the error matches errx.ErrConversationBusy.
	Lock(ctx context.Context, conversationID string) (unlock func(), err error)
}
