package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by PSYCHOGRAPH_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("PSYCHOGRAPH_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	return intEnv("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// RateLimitRPS returns the per-IP request rate for the HTTP API.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return intEnv("RATE_LIMIT_BURST", 20)
}

// LLMOperation names the breaker and token bucket used by inference cycles.
func LLMOperation() string {
	op := os.Getenv("LLM_OPERATION")
	if op == "" {
		return "psychographic_analysis"
	}
	return op
}

// LLMCallCost is the credit cost of one escalation.
func LLMCallCost() int {
	return intEnv("LLM_CALL_COST", 10)
}

func BreakerThreshold() int {
	return intEnv("BREAKER_THRESHOLD", 5)
}

func BreakerWindow() time.Duration {
	return durationEnv("BREAKER_WINDOW", 5*time.Minute)
}

func BreakerRecoveryTimeout() time.Duration {
	return durationEnv("BREAKER_RECOVERY_TIMEOUT", 60*time.Second)
}

func RetryMaxAttempts() int {
	return intEnv("RETRY_MAX_ATTEMPTS", 3)
}

func RetryBaseDelay() time.Duration {
	return durationEnv("RETRY_BASE_DELAY", 500*time.Millisecond)
}

func RetryMaxDelay() time.Duration {
	return durationEnv("RETRY_MAX_DELAY", 10*time.Second)
}

// LLMAttemptTimeout bounds a single provider attempt.
func LLMAttemptTimeout() time.Duration {
	return durationEnv("LLM_ATTEMPT_TIMEOUT", 30*time.Second)
}

func LLMBucketCapacity() int {
	return intEnv("LLM_BUCKET_CAPACITY", 10)
}

func LLMBucketRefillPerMinute() float64 {
	v, err := strconv.ParseFloat(os.Getenv("LLM_BUCKET_REFILL_PER_MINUTE"), 64)
	if err != nil || v <= 0 {
		return 60
	}
	return v
}

// EventWindowSize is how many recent events one cycle reads.
func EventWindowSize() int {
	return intEnv("EVENT_WINDOW_SIZE", 200)
}

// DefaultMonthlyAllotment is the ledger allotment given to new tenants.
func DefaultMonthlyAllotment() int {
	v, err := strconv.Atoi(os.Getenv("DEFAULT_MONTHLY_ALLOTMENT"))
	if err != nil || v < 0 {
		return 1000
	}
	return v
}

// AuditRetention returns how long audit records are kept. Zero disables
// purging.
func AuditRetention() time.Duration {
	days, err := strconv.Atoi(os.Getenv("AUDIT_RETENTION_DAYS"))
	if err != nil || days < 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(days) * 24 * time.Hour
}

func PromptMinLength() int {
	return intEnv("PROMPT_MIN_LENGTH", 1)
}

func PromptMaxLength() int {
	return intEnv("PROMPT_MAX_LENGTH", 16000)
}

// PromptStrictInjection rejects prompts with injection patterns instead of
// neutralizing them.
func PromptStrictInjection() bool {
	v, err := strconv.ParseBool(os.Getenv("PROMPT_STRICT_INJECTION"))
	if err != nil {
		return false
	}
	return v
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
