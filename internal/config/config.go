package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Speech-to-text (AssemblyAI)
	AssemblyAIKey      string
	TranscribePollWait time.Duration
	TranscribeMaxWait  time.Duration

	// OCR (OCR.space)
	OCRAPIKey string

	// Transcript microservice (optional, tried before caption scraping)
	TranscriptServiceURL string

	// YouTube extraction
	ProxyURLs         []string
	CookieFile        string
	ExtractionTimeout time.Duration
	DownloadTimeout   time.Duration

	// Storage
	TempDir string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		AssemblyAIKey:        getEnvOrDefault("ASSEMBLY_API_KEY", ""),
		TranscribePollWait:   getEnvAsDurationOrDefault("TRANSCRIBE_POLL_WAIT", 5*time.Second),
		TranscribeMaxWait:    getEnvAsDurationOrDefault("TRANSCRIBE_MAX_WAIT", 15*time.Minute),
		OCRAPIKey:            getEnvOrDefault("OCR_API_KEY", ""),
		TranscriptServiceURL: getEnvOrDefault("TRANSCRIPT_SERVICE_URL", ""),
		ProxyURLs:            getEnvAsSlice("PROXY_URLS"),
		CookieFile:           getEnvOrDefault("COOKIE_FILE", ""),
		ExtractionTimeout:    getEnvAsDurationOrDefault("EXTRACTION_TIMEOUT", 15*time.Second),
		DownloadTimeout:      getEnvAsDurationOrDefault("DOWNLOAD_TIMEOUT", 60*time.Second),
		TempDir:              getEnvOrDefault("TEMP_DIR", "./temp"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvAsSlice parses a comma-separated list, dropping empty entries.
func getEnvAsSlice(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
