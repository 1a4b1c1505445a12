package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tasktalk/tasktalk/internal/store"
)

// contextMessages is how many recent messages the classifier may see.
const contextMessages = 6

// UserStore is the slice of the store the chat service needs for identity.
type UserStore interface {
	GetUserByEmail(email string) (*store.User, error)
	CreateUser(email, passwordHash string) (*store.User, error)
}

// ChatService drives one chat turn through its states:
// Received -> Parsed -> Dispatched -> Replied -> Persisted.
// A failed parse or dispatch still reaches Persisted with an apology reply;
// the user's message is recorded even when the turn fails.
type ChatService struct {
	users         UserStore
	convs         *ConversationManager
	dispatcher    *Dispatcher
	classifier    Classifier
	parserTimeout time.Duration
}

func NewChatService(users UserStore, convs *ConversationManager, dispatcher *Dispatcher, classifier Classifier, parserTimeout time.Duration) *ChatService {
	return &ChatService{
		users:         users,
		convs:         convs,
		dispatcher:    dispatcher,
		classifier:    classifier,
		parserTimeout: parserTimeout,
	}
}

// TurnResult is what the chat endpoint returns for one processed turn.
type TurnResult struct {
	ConversationID string         `json:"conversation_id"`
	Reply          string         `json:"reply"`
	UserMessage    *store.Message `json:"-"`
	ReplyMessage   *store.Message `json:"-"`
}

// HandleMessage processes one utterance for one owner. An error is returned
// only when not even the user's message could be persisted; every other
// failure is folded into the composed reply.
func (s *ChatService) HandleMessage(ctx context.Context, userID int64, conversationID, utterance string) (*TurnResult, error) {
	// Received: resolve the conversation and serialize the turn.
	conv, err := s.convs.StartOrContinue(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	unlock := s.convs.Lock(conv.ID)
	defer unlock()

	userMsg, err := s.convs.AppendMessage(ctx, conv, store.RoleUser, utterance)
	if err != nil {
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}

	// Parsed: classification is the collaborator boundary; bound it and
	// degrade a timeout to Unknown rather than hanging the turn.
	intent, parseErr := s.classify(ctx, conv.ID, utterance)

	// Dispatched: Execute never fails hard; store trouble comes back as
	// an internal-error outcome.
	var outcome DispatchOutcome
	if parseErr != nil {
		log.Printf("chat %s: classifier failed: %v", conv.ID, parseErr)
		outcome = DispatchOutcome{Status: StatusInternalError}
	} else {
		outcome = s.dispatcher.Execute(ctx, userID, intent)
	}

	// Replied.
	reply := Compose(outcome, utterance)

	// Persisted: a mutation may already have happened, so finish the
	// conversation record even if the caller has gone away.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	replyMsg, err := s.convs.AppendMessage(pctx, conv, store.RoleAssistant, reply)
	if err != nil {
		// The user message is recorded; the reply still goes out.
		log.Printf("chat %s: failed to persist assistant reply: %v", conv.ID, err)
	}

	return &TurnResult{
		ConversationID: conv.ID,
		Reply:          reply,
		UserMessage:    userMsg,
		ReplyMessage:   replyMsg,
	}, nil
}

// classify runs the classifier with a bounded timeout. A timeout yields
// Unknown; any other classifier error propagates for an apology reply.
func (s *ChatService) classify(ctx context.Context, conversationID, utterance string) (Intent, error) {
	recent, err := s.convs.RecentContext(ctx, conversationID, contextMessages)
	if err != nil {
		log.Printf("chat %s: failed to load recent context: %v", conversationID, err)
		recent = nil // classify from the utterance alone
	}

	cctx, cancel := context.WithTimeout(ctx, s.parserTimeout)
	defer cancel()
	intent, err := s.classifier.Classify(cctx, utterance, recent)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Intent{Kind: IntentUnknown, Raw: utterance}, nil
		}
		return Intent{}, err
	}
	return intent, nil
}

// Conversation accessors used by the HTTP layer.

func (s *ChatService) ListConversations(ctx context.Context, userID int64) ([]store.Conversation, error) {
	return s.convs.List(ctx, userID)
}

func (s *ChatService) GetConversation(ctx context.Context, conversationID string, userID int64) (*store.Conversation, []store.Message, error) {
	return s.convs.Load(ctx, conversationID, userID)
}

func (s *ChatService) DeleteConversation(ctx context.Context, conversationID string, userID int64) error {
	return s.convs.Delete(ctx, conversationID, userID)
}

// User accessors used by auth middleware and login.

func (s *ChatService) GetUserByEmail(email string) (*store.User, error) {
	return s.users.GetUserByEmail(email)
}

func (s *ChatService) CreateUser(email, passwordHash string) (*store.User, error) {
	return s.users.CreateUser(email, passwordHash)
}
