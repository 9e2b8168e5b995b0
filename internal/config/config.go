package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"

	DefaultSystemPrompt = "You are Jarvis, a helpful voice assistant. Keep answers concise and conversational."
)

type Config struct {
	// Server
	Port           string
	Env            string
	AllowedOrigins []string
	MaxBodyBytes   int64
	MaxAudioBytes  int64

	// Upstream LLM
	UpstreamProvider       string
	OpenAIAPIKey           string
	OpenAIModel            string
	OpenAIBaseURL          string
	OpenAISTTModel         string
	GeminiAPIKey           string
	GeminiModel            string
	SystemPrompt           string
	UpstreamTimeout        time.Duration
	UpstreamConcurrentReqs int

	// Rate limiting (disabled when 0)
	RateLimitPerMinute int
	RedisURL           string

	// Caller auth (disabled when empty)
	AuthJWTSecret string
}

// Load reads the server configuration. The upstream credential is optional
// here: its absence is reported per request, not at startup.
func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                   getEnvOrDefault("PORT", "8080"),
		Env:                    getEnvOrDefault("ENV", "development"),
		AllowedOrigins:         getEnvAsListOrDefault("ALLOWED_ORIGINS", []string{"*"}),
		MaxBodyBytes:           int64(getEnvAsIntOrDefault("MAX_BODY_BYTES", 16*1024)),
		MaxAudioBytes:          int64(getEnvAsIntOrDefault("MAX_AUDIO_BYTES", 10*1024*1024)),
		UpstreamProvider:       strings.ToLower(getEnvOrDefault("UPSTREAM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:            getEnvOrDefault("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAIBaseURL:          getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAISTTModel:         getEnvOrDefault("OPENAI_STT_MODEL", "whisper-1"),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiModel:            getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		SystemPrompt:           getEnvOrDefault("SYSTEM_PROMPT", DefaultSystemPrompt),
		UpstreamTimeout:        getEnvAsDurationOrDefault("UPSTREAM_TIMEOUT", 60*time.Second),
		UpstreamConcurrentReqs: getEnvAsIntOrDefault("UPSTREAM_CONCURRENT_REQUESTS", 5),
		RateLimitPerMinute:     getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 0),
		RedisURL:               os.Getenv("REDIS_URL"),
		AuthJWTSecret:          os.Getenv("AUTH_JWT_SECRET"),
	}

	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UpstreamAPIKey returns the credential for the selected provider.
func (c *Config) UpstreamAPIKey() string {
	switch c.UpstreamProvider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	}
	return ""
}

// ClientConfig holds the terminal chat client defaults. Flags override it.
type ClientConfig struct {
	ServerURL string
	Token     string
	Lang      string
	RecordCmd string
	TTSCmd    string
	AutoSpeak bool
	Timeout   time.Duration
}

func LoadClient() *ClientConfig {
	godotenv.Load()

	return &ClientConfig{
		ServerURL: getEnvOrDefault("JARVIS_SERVER", "http://localhost:8080"),
		Token:     os.Getenv("JARVIS_TOKEN"),
		Lang:      getEnvOrDefault("JARVIS_LANG", "en-US"),
		RecordCmd: os.Getenv("JARVIS_RECORD_CMD"),
		TTSCmd:    os.Getenv("JARVIS_TTS_CMD"),
		AutoSpeak: getEnvAsBoolOrDefault("JARVIS_AUTO_SPEAK", true),
		Timeout:   getEnvAsDurationOrDefault("JARVIS_TIMEOUT", 0),
	}
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

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
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

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
