// Package config loads process-wide configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// HTTP server
	Port           string
	AllowedOrigins string
	APIKey         string

	// Queue substrate (Redis)
	QueueURL        string
	VisibilityTimeoutSeconds int
	MaxRetries      int

	// Result store (MongoDB)
	MongoURI    string
	MongoDBName string

	// Blob store
	BlobProvider  string // "local" | "cloud"
	LocalBlobDir  string
	CloudBucket   string

	// Recognizer
	RecognizerLanguage  string // "th" | "en" | "th+en"
	DualPassEnabled     bool
	ConfidenceThreshold float64
	GeminiAPIKey        string
	GeminiModel         string

	// Image pipeline
	MaxImageWidth  int
	MaxImageHeight int
	DebugImageDir  string // empty disables debug snapshots

	// Webhook dispatcher
	WebhookSecret string

	// Job orchestrator
	JobTimeoutSeconds int
)

// Load reads a .env file if present, then resolves every setting from the
// environment, falling back to the defaults listed in the external
// interfaces section of the specification this module implements.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	Port = getEnv("PORT", "8080")
	AllowedOrigins = getEnv("ALLOWED_ORIGINS", "*")
	APIKey = getEnv("API_KEY", "")

	QueueURL = getEnv("QUEUE_URL", "redis://localhost:6379/0")
	VisibilityTimeoutSeconds = getEnvInt("QUEUE_VISIBILITY_TIMEOUT_SECONDS", 60)
	MaxRetries = getEnvInt("QUEUE_MAX_RETRIES", 3)

	MongoURI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	MongoDBName = getEnv("MONGO_DB_NAME", "invoice_ocr")

	BlobProvider = getEnv("BLOB_PROVIDER", "local")
	LocalBlobDir = getEnv("LOCAL_BLOB_DIR", "uploads/enhanced-images")
	CloudBucket = getEnv("CLOUD_BLOB_BUCKET", "")

	RecognizerLanguage = getEnv("RECOGNIZER_LANGUAGE", "th+en")
	DualPassEnabled = getEnvBool("DUAL_PASS_ENABLED", true)
	ConfidenceThreshold = getEnvFloat("CONFIDENCE_THRESHOLD", 0.3)
	GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.5-flash")

	MaxImageWidth = getEnvInt("MAX_IMAGE_WIDTH", 2048)
	MaxImageHeight = getEnvInt("MAX_IMAGE_HEIGHT", 2048)
	DebugImageDir = getEnv("DEBUG_IMAGE_DIR", "")

	WebhookSecret = getEnv("WEBHOOK_SECRET", "")

	JobTimeoutSeconds = getEnvInt("JOB_TIMEOUT_SECONDS", 300)

	log.Println("configuration loaded")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
