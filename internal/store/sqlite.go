package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned by mutating operations when no row matched the
// id + owner (and any completion guard). Cross-owner access is therefore
// indistinguishable from a missing row.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS todos (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        title TEXT NOT NULL CHECK (title <> ''),
        description TEXT NOT NULL DEFAULT '',
        priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
        category TEXT NOT NULL DEFAULT '',
        due_date DATETIME,
        completed BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        title TEXT,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        seq INTEGER NOT NULL,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id),
        UNIQUE (conversation_id, seq)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(email, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (email, password_hash) VALUES (?, ?)", email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Todo methods

func (s *SQLiteStore) CreateTodo(ctx context.Context, todo *Todo) error {
	if todo.Title == "" {
		return fmt.Errorf("todo title must not be empty")
	}
	if todo.Priority == "" {
		todo.Priority = PriorityMedium
	}
	todo.ID = uuid.NewString()
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO todos (id, user_id, title, description, priority, category, due_date, completed, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		todo.ID, todo.UserID, todo.Title, todo.Description, todo.Priority, todo.Category, todo.DueDate, todo.Completed, todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTodoByID(ctx context.Context, todoID string, userID int64) (*Todo, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, description, priority, category, due_date, completed, created_at, updated_at FROM todos WHERE id = ? AND user_id = ?",
		todoID, userID)
	todo, err := scanTodo(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found (or not owned by user)
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return todo, nil
}

// ListTodos returns the owner's todos in creation order, oldest first.
// Ordinal references in chat ("the first one") resolve against this order.
func (s *SQLiteStore) ListTodos(ctx context.Context, userID int64, filter TodoFilter) ([]Todo, error) {
	query := "SELECT id, user_id, title, description, priority, category, due_date, completed, created_at, updated_at FROM todos WHERE user_id = ?"
	args := []any{userID}
	if filter.Completed != nil {
		query += " AND completed = ?"
		args = append(args, *filter.Completed)
	}
	if filter.Category != "" {
		query += " AND category = ? COLLATE NOCASE"
		args = append(args, filter.Category)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo row: %w", err)
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

// TodoUpdate carries the fields of a partial todo update. Nil means
// leave unchanged.
type TodoUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	Category    *string
	DueDate     *time.Time
	Completed   *bool
}

// UpdateTodo applies the non-nil fields of upd. Returns ErrNotFound when
// the todo does not exist or belongs to another user.
func (s *SQLiteStore) UpdateTodo(ctx context.Context, todoID string, userID int64, upd TodoUpdate) (*Todo, error) {
	set := "updated_at = ?"
	args := []any{time.Now().UTC()}
	if upd.Title != nil {
		set += ", title = ?"
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		set += ", description = ?"
		args = append(args, *upd.Description)
	}
	if upd.Priority != nil {
		set += ", priority = ?"
		args = append(args, *upd.Priority)
	}
	if upd.Category != nil {
		set += ", category = ?"
		args = append(args, *upd.Category)
	}
	if upd.DueDate != nil {
		set += ", due_date = ?"
		args = append(args, *upd.DueDate)
	}
	if upd.Completed != nil {
		set += ", completed = ?"
		args = append(args, *upd.Completed)
	}
	args = append(args, todoID, userID)

	res, err := s.db.ExecContext(ctx, "UPDATE todos SET "+set+" WHERE id = ? AND user_id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetTodoByID(ctx, todoID, userID)
}

// CompleteTodoIfOpen flips completed to true only if the todo is still
// open. The completed = FALSE guard makes resolve-then-complete atomic:
// a concurrent completion or deletion of the same id surfaces as
// ErrNotFound instead of a silent double-toggle.
func (s *SQLiteStore) CompleteTodoIfOpen(ctx context.Context, todoID string, userID int64) (*Todo, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE todos SET completed = TRUE, updated_at = ? WHERE id = ? AND user_id = ? AND completed = FALSE",
		time.Now().UTC(), todoID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete todo: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetTodoByID(ctx, todoID, userID)
}

// ToggleTodoCompleted flips the completed flag in a single statement.
// Used by the direct CRUD path.
func (s *SQLiteStore) ToggleTodoCompleted(ctx context.Context, todoID string, userID int64) (*Todo, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE todos SET completed = NOT completed, updated_at = ? WHERE id = ? AND user_id = ?",
		time.Now().UTC(), todoID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle todo: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetTodoByID(ctx, todoID, userID)
}

func (s *SQLiteStore) DeleteTodo(ctx context.Context, todoID string, userID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ? AND user_id = ?", todoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

type todoScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row todoScanner) (*Todo, error) {
	var todo Todo
	var description, category sql.NullString
	var dueDate sql.NullTime
	err := row.Scan(&todo.ID, &todo.UserID, &todo.Title, &description, &todo.Priority,
		&category, &dueDate, &todo.Completed, &todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		return nil, err
	}
	todo.Description = description.String
	todo.Category = category.String
	if dueDate.Valid {
		todo.DueDate = &dueDate.Time
	}
	return &todo, nil
}

// Conversation methods

func (s *SQLiteStore) CreateConversation(ctx context.Context, userID int64, title *string) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	conv.UpdatedAt = conv.CreatedAt

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) GetConversationByID(ctx context.Context, conversationID string, userID int64) (*Conversation, error) {
	var conv Conversation
	var title sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?",
		conversationID, userID).Scan(&conv.ID, &conv.UserID, &title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if title.Valid {
		conv.Title = &title.String
	}
	return &conv, nil
}

func (s *SQLiteStore) ListConversationsByUser(ctx context.Context, userID int64) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var conv Conversation
		var title sql.NullString
		if err := rows.Scan(&conv.ID, &conv.UserID, &title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		if title.Valid {
			conv.Title = &title.String
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (s *SQLiteStore) UpdateConversationTitle(ctx context.Context, conversationID string, userID int64, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET title = ? WHERE id = ? AND user_id = ?", title, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation and all of its messages.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, conversationID string, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ? AND user_id = ?", conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation messages: %w", err)
	}
	return tx.Commit()
}

// Message methods

// AppendMessage inserts a message with the next per-conversation sequence
// number and bumps the conversation's updated_at, all in one transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin message transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?", msg.ConversationID).
		Scan(&msg.Seq)
	if err != nil {
		return fmt.Errorf("failed to assign message seq: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, role, content, timestamp, seq) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Timestamp, msg.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?", msg.Timestamp, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetMessagesByConversation(ctx context.Context, conversationID string, limit, offset int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, role, content, timestamp, seq FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, seq ASC LIMIT ? OFFSET ?",
		conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetLastNMessages returns the newest n messages, oldest first.
func (s *SQLiteStore) GetLastNMessages(ctx context.Context, conversationID string, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, role, content, timestamp, seq FROM messages WHERE conversation_id = ? ORDER BY timestamp DESC, seq DESC LIMIT ?",
		conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp, &msg.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
