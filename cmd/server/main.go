package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tasktalk/tasktalk/internal/api"
	"github.com/tasktalk/tasktalk/internal/config"
	"github.com/tasktalk/tasktalk/internal/core"
	"github.com/tasktalk/tasktalk/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Pick the intent classifier: Gemini when an API key is configured,
	// otherwise the deterministic rule parser on its own.
	var classifier core.Classifier
	if config.AppConfig.GeminiAPIKey != "" {
		gemini, err := core.NewGeminiClassifier(config.AppConfig.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini classifier: %v", err)
		}
		defer gemini.Close()
		classifier = gemini
		log.Println("Intent classification: Gemini with rule fallback")
	} else {
		classifier = core.NewRuleParser()
		log.Println("Intent classification: rule parser (no GEMINI_API_KEY set)")
	}

	// Wire the conversational dispatch core
	dispatcher := core.NewDispatcher(dbStore, config.AppConfig.StoreTimeout)
	convManager := core.NewConversationManager(dbStore)
	chatService := core.NewChatService(dbStore, convManager, dispatcher, classifier, config.AppConfig.ParserTimeout)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, dbStore)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // classifier calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
