package core

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/tasktalk/tasktalk/internal/store"
)

// TodoStore is the narrow contract the dispatcher needs from the persisted
// todo collection. *store.SQLiteStore satisfies it; tests substitute fakes.
type TodoStore interface {
	CreateTodo(ctx context.Context, todo *store.Todo) error
	ListTodos(ctx context.Context, userID int64, filter store.TodoFilter) ([]store.Todo, error)
	CompleteTodoIfOpen(ctx context.Context, todoID string, userID int64) (*store.Todo, error)
	DeleteTodo(ctx context.Context, todoID string, userID int64) error
}

// Dispatcher executes resolved intents against the todo store.
type Dispatcher struct {
	todos        TodoStore
	storeTimeout time.Duration
}

func NewDispatcher(todos TodoStore, storeTimeout time.Duration) *Dispatcher {
	return &Dispatcher{todos: todos, storeTimeout: storeTimeout}
}

// Execute runs one intent for one owner and reports a structured outcome.
// It never returns an error: store failures become StatusInternalError so
// the turn can still be composed and persisted.
func (d *Dispatcher) Execute(ctx context.Context, userID int64, intent Intent) DispatchOutcome {
	outcome := DispatchOutcome{Kind: intent.Kind}

	switch intent.Kind {
	case IntentCreateTodo:
		return d.executeCreate(ctx, userID, intent, outcome)
	case IntentListTodos:
		return d.executeList(ctx, userID, intent, outcome)
	case IntentCompleteTodo:
		return d.executeComplete(ctx, userID, intent, outcome)
	case IntentDeleteTodo:
		return d.executeDelete(ctx, userID, intent, outcome)
	default:
		// Unknown is a normal conversational outcome, not an error.
		outcome.Status = StatusRejected
		return outcome
	}
}

func (d *Dispatcher) executeCreate(ctx context.Context, userID int64, intent Intent, outcome DispatchOutcome) DispatchOutcome {
	// The parser guarantees a non-empty title for CreateTodo; an empty one
	// here means a broken classifier, not user error.
	if strings.TrimSpace(intent.Title) == "" {
		log.Printf("dispatcher: create intent with empty title for user %d (utterance %q)", userID, intent.Raw)
		outcome.Status = StatusInternalError
		return outcome
	}
	if intent.Priority != "" && !store.ValidPriority(intent.Priority) {
		log.Printf("dispatcher: create intent with invalid priority %q for user %d", intent.Priority, userID)
		outcome.Status = StatusInternalError
		return outcome
	}

	todo := &store.Todo{
		UserID:      userID,
		Title:       intent.Title,
		Description: intent.Description,
		Priority:    intent.Priority,
		Category:    intent.Category,
	}

	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	// Mutations are never retried: a timed-out create may have landed.
	if err := d.todos.CreateTodo(ctx, todo); err != nil {
		log.Printf("dispatcher: create todo failed for user %d: %v", userID, err)
		outcome.Status = StatusInternalError
		return outcome
	}
	outcome.Status = StatusSuccess
	outcome.Todo = todo
	return outcome
}

func (d *Dispatcher) executeList(ctx context.Context, userID int64, intent Intent, outcome DispatchOutcome) DispatchOutcome {
	filter := store.TodoFilter{Category: intent.Category}
	if intent.CompletedOnly {
		completed := true
		filter.Completed = &completed
	} else if intent.PendingOnly {
		completed := false
		filter.Completed = &completed
	}

	todos, err := d.listWithRetry(ctx, userID, filter)
	if err != nil {
		log.Printf("dispatcher: list todos failed for user %d: %v", userID, err)
		outcome.Status = StatusInternalError
		return outcome
	}
	outcome.Status = StatusSuccess
	outcome.Todos = todos
	return outcome
}

func (d *Dispatcher) executeComplete(ctx context.Context, userID int64, intent Intent, outcome DispatchOutcome) DispatchOutcome {
	// Resolve against open todos only, so "mark X as done" prefers the
	// next matching incomplete task and never re-completes one.
	open := false
	candidates, err := d.listWithRetry(ctx, userID, store.TodoFilter{Completed: &open})
	if err != nil {
		log.Printf("dispatcher: resolve for complete failed for user %d: %v", userID, err)
		outcome.Status = StatusInternalError
		return outcome
	}

	matches := resolveTarget(candidates, intent)
	switch len(matches) {
	case 0:
		outcome.Status = StatusNotFound
		return outcome
	case 1:
		// fall through to the mutation
	default:
		outcome.Status = StatusAmbiguous
		outcome.Candidates = matches
		return outcome
	}

	mctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	todo, err := d.todos.CompleteTodoIfOpen(mctx, matches[0].ID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race with a concurrent completion or deletion.
			outcome.Status = StatusNotFound
			return outcome
		}
		log.Printf("dispatcher: complete todo %s failed for user %d: %v", matches[0].ID, userID, err)
		outcome.Status = StatusInternalError
		return outcome
	}
	outcome.Status = StatusSuccess
	outcome.Todo = todo
	return outcome
}

func (d *Dispatcher) executeDelete(ctx context.Context, userID int64, intent Intent, outcome DispatchOutcome) DispatchOutcome {
	// Deletion resolves against the whole list, completed or not.
	candidates, err := d.listWithRetry(ctx, userID, store.TodoFilter{})
	if err != nil {
		log.Printf("dispatcher: resolve for delete failed for user %d: %v", userID, err)
		outcome.Status = StatusInternalError
		return outcome
	}

	matches := resolveTarget(candidates, intent)
	switch len(matches) {
	case 0:
		outcome.Status = StatusNotFound
		return outcome
	case 1:
		// fall through to the mutation
	default:
		outcome.Status = StatusAmbiguous
		outcome.Candidates = matches
		return outcome
	}

	mctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	if err := d.todos.DeleteTodo(mctx, matches[0].ID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			outcome.Status = StatusNotFound
			return outcome
		}
		log.Printf("dispatcher: delete todo %s failed for user %d: %v", matches[0].ID, userID, err)
		outcome.Status = StatusInternalError
		return outcome
	}
	deleted := matches[0]
	outcome.Status = StatusSuccess
	outcome.Todo = &deleted
	return outcome
}

// listWithRetry reads the owner's todos with one retry. Reads are safe to
// retry; mutations are not and never go through here.
func (d *Dispatcher) listWithRetry(ctx context.Context, userID int64, filter store.TodoFilter) ([]store.Todo, error) {
	rctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	todos, err := d.todos.ListTodos(rctx, userID, filter)
	if err == nil || ctx.Err() != nil {
		return todos, err
	}

	rctx2, cancel2 := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel2()
	return d.todos.ListTodos(rctx2, userID, filter)
}

// resolveTarget picks the todos a complete/delete intent refers to.
// Candidates arrive in creation order, so ordinals ("the first one") index
// into the list as the user sees it. A free-text reference matches by
// case-insensitive substring; a unique exact title match wins over a wider
// substring spread. No target at all matches every candidate, which lets a
// bare "mark task as complete" succeed when there is exactly one open task.
func resolveTarget(candidates []store.Todo, intent Intent) []store.Todo {
	if intent.Ordinal != 0 {
		idx := intent.Ordinal - 1
		if intent.Ordinal == -1 {
			idx = len(candidates) - 1
		}
		if idx < 0 || idx >= len(candidates) {
			return nil
		}
		return []store.Todo{candidates[idx]}
	}

	if intent.NoTarget || intent.TargetRef == "" {
		return candidates
	}

	ref := strings.ToLower(intent.TargetRef)
	var matches, exact []store.Todo
	for _, todo := range candidates {
		title := strings.ToLower(todo.Title)
		if strings.Contains(title, ref) {
			matches = append(matches, todo)
			if title == ref {
				exact = append(exact, todo)
			}
		}
	}
	if len(exact) == 1 {
		return exact
	}
	return matches
}
