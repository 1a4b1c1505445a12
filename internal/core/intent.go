package core

import (
	"context"

	"github.com/tasktalk/tasktalk/internal/store"
)

// IntentKind identifies the task-management action a user utterance asks for.
type IntentKind string

const (
	IntentCreateTodo   IntentKind = "create_todo"
	IntentListTodos    IntentKind = "list_todos"
	IntentCompleteTodo IntentKind = "complete_todo"
	IntentDeleteTodo   IntentKind = "delete_todo"
	IntentUnknown      IntentKind = "unknown"
)

// Intent is the result of classifying one utterance. It lives for a single
// turn and is discarded after dispatch.
type Intent struct {
	Kind IntentKind

	// CreateTodo parameters.
	Title       string
	Description string
	Priority    string // empty means store default

	// CompleteTodo / DeleteTodo target. Exactly one of TargetRef or
	// Ordinal is meaningful; Ordinal is 1-based against creation order.
	TargetRef string
	Ordinal   int

	// ListTodos filters.
	CompletedOnly bool
	PendingOnly   bool
	Category      string

	// NoTarget marks a complete/delete utterance from which no usable
	// reference could be extracted. The dispatcher resolves it against
	// the live list instead of the parser guessing.
	NoTarget bool

	Raw string // original utterance
}

// Classifier is the contract the natural-language collaborator must satisfy.
// Implementations must never fail hard on unparseable text: anything
// unrecognisable maps to IntentUnknown. An error return is reserved for the
// collaborator itself being unreachable.
type Classifier interface {
	Classify(ctx context.Context, utterance string, recent []store.Message) (Intent, error)
}

// OutcomeStatus is the result category of dispatching an intent.
type OutcomeStatus string

const (
	StatusSuccess       OutcomeStatus = "success"
	StatusNotFound      OutcomeStatus = "not_found"
	StatusAmbiguous     OutcomeStatus = "ambiguous"
	StatusRejected      OutcomeStatus = "rejected"
	StatusInternalError OutcomeStatus = "internal_error"
)

// DispatchOutcome is consumed only by the response composer.
type DispatchOutcome struct {
	Status OutcomeStatus
	Kind   IntentKind

	Todo       *store.Todo  // created / completed / deleted todo
	Todos      []store.Todo // ListTodos snapshot
	Candidates []store.Todo // Ambiguous: the todos the reference matched
}
