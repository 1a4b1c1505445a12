package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tasktalk/tasktalk/internal/auth"
	"github.com/tasktalk/tasktalk/internal/core"
	"github.com/tasktalk/tasktalk/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
	todoStore   *store.SQLiteStore
}

// NewAPIHandler wires the chat path and the direct CRUD path. Both share
// the same todo store, so either path's writes are visible to the other.
func NewAPIHandler(cs *core.ChatService, ts *store.SQLiteStore) *APIHandler {
	return &APIHandler{chatService: cs, todoStore: ts}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		email, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.chatService.GetUserByEmail(email)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", email, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.Email, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(req.Email, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Email, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.Email)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.Email, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	result, err := h.chatService.HandleMessage(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, core.ErrConversationNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		log.Printf("Error handling chat message for user %d: %v", userID, err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	convs, err := h.chatService.ListConversations(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing conversations for user %d: %v", userID, err)
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	json.NewEncoder(w).Encode(convs)
}

type ConversationDetailsResponse struct {
	*store.Conversation
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	conversationID := chi.URLParam(r, "conversationID")

	conv, messages, err := h.chatService.GetConversation(r.Context(), conversationID, userID)
	if err != nil {
		if errors.Is(err, core.ErrConversationNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting conversation %s for user %d: %v", conversationID, userID, err)
		http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	json.NewEncoder(w).Encode(ConversationDetailsResponse{
		Conversation: conv,
		Messages:     messages,
	})
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	conversationID := chi.URLParam(r, "conversationID")

	err := h.chatService.DeleteConversation(r.Context(), conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		log.Printf("Error deleting conversation %s for user %d: %v", conversationID, userID, err)
		http.Error(w, "Failed to delete conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateTodoRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Category    string     `json:"category,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (h *APIHandler) CreateTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var req CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	if req.Priority != "" && !store.ValidPriority(req.Priority) {
		http.Error(w, "Priority must be low, medium or high", http.StatusBadRequest)
		return
	}

	todo := &store.Todo{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		DueDate:     req.DueDate,
	}
	if err := h.todoStore.CreateTodo(r.Context(), todo); err != nil {
		log.Printf("Error creating todo for user %d: %v", userID, err)
		http.Error(w, "Failed to create todo", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(todo)
}

func (h *APIHandler) ListTodosHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var filter store.TodoFilter
	if v := r.URL.Query().Get("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "completed must be true or false", http.StatusBadRequest)
			return
		}
		filter.Completed = &completed
	}
	filter.Category = r.URL.Query().Get("category")

	todos, err := h.todoStore.ListTodos(r.Context(), userID, filter)
	if err != nil {
		log.Printf("Error listing todos for user %d: %v", userID, err)
		http.Error(w, "Failed to list todos", http.StatusInternalServerError)
		return
	}
	if todos == nil {
		todos = []store.Todo{}
	}
	json.NewEncoder(w).Encode(todos)
}

func (h *APIHandler) GetTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	todoID := chi.URLParam(r, "todoID")

	todo, err := h.todoStore.GetTodoByID(r.Context(), todoID, userID)
	if err != nil {
		log.Printf("Error getting todo %s for user %d: %v", todoID, userID, err)
		http.Error(w, "Failed to get todo", http.StatusInternalServerError)
		return
	}
	if todo == nil {
		http.Error(w, "Todo not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(todo)
}

type UpdateTodoRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Category    *string    `json:"category,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}

func (h *APIHandler) UpdateTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	todoID := chi.URLParam(r, "todoID")

	var req UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		http.Error(w, "Title cannot be empty", http.StatusBadRequest)
		return
	}
	if req.Priority != nil && !store.ValidPriority(*req.Priority) {
		http.Error(w, "Priority must be low, medium or high", http.StatusBadRequest)
		return
	}

	todo, err := h.todoStore.UpdateTodo(r.Context(), todoID, userID, store.TodoUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		DueDate:     req.DueDate,
		Completed:   req.Completed,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Todo not found", http.StatusNotFound)
			return
		}
		log.Printf("Error updating todo %s for user %d: %v", todoID, userID, err)
		http.Error(w, "Failed to update todo", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(todo)
}

func (h *APIHandler) ToggleTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	todoID := chi.URLParam(r, "todoID")

	todo, err := h.todoStore.ToggleTodoCompleted(r.Context(), todoID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Todo not found", http.StatusNotFound)
			return
		}
		log.Printf("Error toggling todo %s for user %d: %v", todoID, userID, err)
		http.Error(w, "Failed to toggle todo", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(todo)
}

func (h *APIHandler) DeleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	todoID := chi.URLParam(r, "todoID")

	if err := h.todoStore.DeleteTodo(r.Context(), todoID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Todo not found", http.StatusNotFound)
			return
		}
		log.Printf("Error deleting todo %s for user %d: %v", todoID, userID, err)
		http.Error(w, "Failed to delete todo", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
