package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	s, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRoundtrip(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	found, err := s.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := s.GetUserByEmail("nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Emails are unique.
	_, err = s.CreateUser("alice@example.com", "hash")
	assert.Error(t, err)
}

func TestTodoCreateDefaultsAndReadAfterWrite(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	todo := &Todo{UserID: user.ID, Title: "buy groceries"}
	require.NoError(t, s.CreateTodo(ctx, todo))
	assert.NotEmpty(t, todo.ID)
	assert.Equal(t, PriorityMedium, todo.Priority)
	assert.False(t, todo.Completed)

	// Immediately visible to a list fetch.
	todos, err := s.ListTodos(ctx, user.ID, TodoFilter{})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, todo.ID, todos[0].ID)

	require.Error(t, s.CreateTodo(ctx, &Todo{UserID: user.ID}), "empty title must be rejected")
}

func TestTodoOwnerScoping(t *testing.T) {
	s := newTestStore(t)
	alice, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	mallory, err := s.CreateUser("mallory@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	todo := &Todo{UserID: alice.ID, Title: "buy groceries"}
	require.NoError(t, s.CreateTodo(ctx, todo))

	// Another owner's access is indistinguishable from not-found.
	got, err := s.GetTodoByID(ctx, todo.ID, mallory.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.CompleteTodoIfOpen(ctx, todo.ID, mallory.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTodo(ctx, todo.ID, mallory.ID), ErrNotFound)

	todos, err := s.ListTodos(ctx, mallory.ID, TodoFilter{})
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestCompleteTodoIfOpenGuard(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	todo := &Todo{UserID: user.ID, Title: "buy groceries"}
	require.NoError(t, s.CreateTodo(ctx, todo))

	done, err := s.CompleteTodoIfOpen(ctx, todo.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.True(t, done.UpdatedAt.After(todo.UpdatedAt), "updated_at must advance on mutation")

	// Already completed: the conditional update matches nothing.
	_, err = s.CompleteTodoIfOpen(ctx, todo.ID, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleTodoCompleted(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	todo := &Todo{UserID: user.ID, Title: "buy groceries"}
	require.NoError(t, s.CreateTodo(ctx, todo))

	toggled, err := s.ToggleTodoCompleted(ctx, todo.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	back, err := s.ToggleTodoCompleted(ctx, todo.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, back.Completed)
	assert.True(t, back.UpdatedAt.After(toggled.UpdatedAt))
}

func TestUpdateTodoPartial(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	todo := &Todo{UserID: user.ID, Title: "buy groceries", Category: "errands"}
	require.NoError(t, s.CreateTodo(ctx, todo))

	title := "buy groceries and milk"
	priority := PriorityHigh
	updated, err := s.UpdateTodo(ctx, todo.ID, user.ID, TodoUpdate{Title: &title, Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, PriorityHigh, updated.Priority)
	assert.Equal(t, "errands", updated.Category, "untouched fields survive")

	_, err = s.UpdateTodo(ctx, "no-such-id", user.ID, TodoUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTodosFilters(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	groceries := &Todo{UserID: user.ID, Title: "buy groceries", Category: "errands"}
	require.NoError(t, s.CreateTodo(ctx, groceries))
	require.NoError(t, s.CreateTodo(ctx, &Todo{UserID: user.ID, Title: "write report", Category: "work"}))
	_, err = s.CompleteTodoIfOpen(ctx, groceries.ID, user.ID)
	require.NoError(t, err)

	completed := true
	todos, err := s.ListTodos(ctx, user.ID, TodoFilter{Completed: &completed})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "buy groceries", todos[0].Title)

	todos, err = s.ListTodos(ctx, user.ID, TodoFilter{Category: "Work"})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "write report", todos[0].Title)
}

func TestMessagesKeepAppendOrder(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, user.ID, nil)
	require.NoError(t, err)

	for i, content := range []string{"one", "two", "three"} {
		msg := &Message{ConversationID: conv.ID, Role: RoleUser, Content: content}
		require.NoError(t, s.AppendMessage(ctx, msg))
		assert.Equal(t, int64(i+1), msg.Seq)
	}

	messages, err := s.GetMessagesByConversation(ctx, conv.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)
	assert.Equal(t, "three", messages[2].Content)

	last, err := s.GetLastNMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Content)
	assert.Equal(t, "three", last[1].Content)
}

func TestAppendMessageTouchesConversation(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("alice@example.com", "hash")
	require.NoError(t, err)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, user.ID, nil)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	msg := &Message{ConversationID: conv.ID, Role: RoleUser, Content: "hi"}
	require.NoError(t, s.AppendMessage(ctx, msg))

	reloaded, err := s.GetConversationByID(ctx, conv.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.True(t, reloaded.UpdatedAt.After(conv.CreatedAt))
}
