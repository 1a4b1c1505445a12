package core

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/tasktalk/tasktalk/internal/store"
)

// Conversation titles are derived from the first user message, truncated.
const maxTitleLen = 50

// ConversationStore is the persistence contract for conversations and their
// messages. *store.SQLiteStore satisfies it.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID int64, title *string) (*store.Conversation, error)
	GetConversationByID(ctx context.Context, conversationID string, userID int64) (*store.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID int64) ([]store.Conversation, error)
	UpdateConversationTitle(ctx context.Context, conversationID string, userID int64, title string) error
	DeleteConversation(ctx context.Context, conversationID string, userID int64) error
	AppendMessage(ctx context.Context, msg *store.Message) error
	GetMessagesByConversation(ctx context.Context, conversationID string, limit, offset int) ([]store.Message, error)
	GetLastNMessages(ctx context.Context, conversationID string, n int) ([]store.Message, error)
}

// ErrConversationNotFound is returned when a conversation id does not exist
// or belongs to another user.
var ErrConversationNotFound = fmt.Errorf("conversation not found")

// ConversationManager owns conversation and message lifecycle. Appends to
// one conversation are serialized through a per-conversation mutex;
// unrelated conversations proceed in parallel.
type ConversationManager struct {
	store ConversationStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewConversationManager(cs ConversationStore) *ConversationManager {
	return &ConversationManager{
		store: cs,
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the conversation's turn lock and returns its release func.
func (m *ConversationManager) Lock(conversationID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[conversationID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// StartOrContinue returns the conversation to append this turn to. An empty
// conversationID starts a new conversation; the title stays unset until the
// first user message derives it.
func (m *ConversationManager) StartOrContinue(ctx context.Context, userID int64, conversationID string) (*store.Conversation, error) {
	if conversationID == "" {
		conv, err := m.store.CreateConversation(ctx, userID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, nil
	}

	conv, err := m.store.GetConversationByID(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// AppendMessage appends one message. The first user message also derives
// the conversation title. Callers serialize a whole turn via Lock.
func (m *ConversationManager) AppendMessage(ctx context.Context, conv *store.Conversation, role, content string) (*store.Message, error) {
	msg := &store.Message{
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	if role == store.RoleUser && (conv.Title == nil || *conv.Title == "") {
		title := deriveTitle(content)
		if err := m.store.UpdateConversationTitle(ctx, conv.ID, conv.UserID, title); err != nil {
			// The turn already persisted; a missing title is cosmetic.
			log.Printf("conversation %s: failed to save derived title: %v", conv.ID, err)
		} else {
			conv.Title = &title
		}
	}
	return msg, nil
}

// Load returns a conversation with its messages, oldest first.
func (m *ConversationManager) Load(ctx context.Context, conversationID string, userID int64) (*store.Conversation, []store.Message, error) {
	conv, err := m.store.GetConversationByID(ctx, conversationID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, nil, ErrConversationNotFound
	}
	messages, err := m.store.GetMessagesByConversation(ctx, conversationID, 1000, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return conv, messages, nil
}

// List returns the owner's conversations, most recently updated first.
func (m *ConversationManager) List(ctx context.Context, userID int64) ([]store.Conversation, error) {
	return m.store.ListConversationsByUser(ctx, userID)
}

// Delete removes a conversation and its messages.
func (m *ConversationManager) Delete(ctx context.Context, conversationID string, userID int64) error {
	return m.store.DeleteConversation(ctx, conversationID, userID)
}

// RecentContext returns the last n messages for the classifier, oldest first.
func (m *ConversationManager) RecentContext(ctx context.Context, conversationID string, n int) ([]store.Message, error) {
	return m.store.GetLastNMessages(ctx, conversationID, n)
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= maxTitleLen {
		return content
	}
	return string(runes[:maxTitleLen]) + "..."
}
