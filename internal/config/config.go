package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	LogFormat     string
	PublicBaseURL string

	// Main backend (extraction endpoints)
	APIBaseURL             string
	APIToken               string
	ExtractionPollInterval time.Duration
	ExtractionCacheTTL     time.Duration

	// Scenario runner service
	RunnerBaseURL       string
	RunnerToken         string
	ScenariosDir        string
	PromptsDir          string
	ScenarioTimeout     time.Duration
	MaxToolIterations   int
	ServiceJWTSecret    string
	ServiceJWTSubject   string
	ServiceJWTTTL       time.Duration
	CORSAllowedOrigins  []string
	RateLimitPerSecond  float64
	RateLimitBurst      int
	IntentJudgeStrategy string

	// Storage
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	ReportsBucket string
	ReportsPrefix string

	// LLM providers
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		APIBaseURL:             strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		APIToken:               getEnv("API_TOKEN", ""),
		ExtractionPollInterval: getEnvAsDuration("EXTRACTION_POLL_INTERVAL", time.Second),
		ExtractionCacheTTL:     getEnvAsDuration("EXTRACTION_CACHE_TTL", 2*time.Hour),

		RunnerBaseURL:       strings.TrimRight(getEnv("RUNNER_BASE_URL", "http://localhost:8080"), "/"),
		RunnerToken:         getEnv("RUNNER_TOKEN", ""),
		ScenariosDir:        getEnv("SCENARIOS_DIR", "scenarios"),
		PromptsDir:          getEnv("PROMPTS_DIR", "prompts"),
		ScenarioTimeout:     getEnvAsDuration("SCENARIO_TIMEOUT", 2*time.Minute),
		MaxToolIterations:   getEnvAsInt("MAX_TOOL_ITERATIONS", 4),
		ServiceJWTSecret:    getEnv("SERVICE_JWT_SECRET", ""),
		ServiceJWTSubject:   getEnv("SERVICE_JWT_SUBJECT", "qa-runner"),
		ServiceJWTTTL:       getEnvAsDuration("SERVICE_JWT_TTL", 15*time.Minute),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerSecond:  getEnvAsFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 40),
		IntentJudgeStrategy: strings.ToLower(strings.TrimSpace(getEnv("INTENT_JUDGE", "auto"))),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		ReportsBucket: getEnv("REPORTS_BUCKET", ""),
		ReportsPrefix: getEnv("REPORTS_PREFIX", "scenario-runs/"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
