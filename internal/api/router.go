package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Chat route: one utterance in, one reply out
			r.Post("/chat", apiHandler.ChatHandler)

			// Conversation routes
			r.Get("/conversations", apiHandler.ListConversationsHandler)
			r.Get("/conversations/{conversationID}", apiHandler.GetConversationHandler)
			r.Delete("/conversations/{conversationID}", apiHandler.DeleteConversationHandler)

			// Direct todo CRUD routes
			r.Get("/todos", apiHandler.ListTodosHandler)
			r.Post("/todos", apiHandler.CreateTodoHandler)
			r.Get("/todos/{todoID}", apiHandler.GetTodoHandler)
			r.Put("/todos/{todoID}", apiHandler.UpdateTodoHandler)
			r.Patch("/todos/{todoID}/complete", apiHandler.ToggleTodoHandler)
			r.Delete("/todos/{todoID}", apiHandler.DeleteTodoHandler)
		})
	})

	return r
}
