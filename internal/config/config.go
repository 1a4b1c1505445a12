package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey  string
	DatabaseURL   string
	HTTPPort      string
	LogLevel      string
	JWTSecret     string
	ParserTimeout time.Duration
	StoreTimeout  time.Duration
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:   getEnv("DATABASE_URL", "tasktalk.db?_busy_timeout=5000&_txlock=immediate"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		ParserTimeout: time.Duration(getEnvAsInt("PARSER_TIMEOUT_MS", 8000)) * time.Millisecond,
		StoreTimeout:  time.Duration(getEnvAsInt("STORE_TIMEOUT_MS", 3000)) * time.Millisecond,
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	// GEMINI_API_KEY is optional: without it the deterministic rule
	// parser classifies intents on its own.
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
