package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Port string

	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIModel     string
	UpstreamTimeout time.Duration
	PromptFile      string

	HistoryBackend string
	HistoryFile    string
	HistoryTZ      string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	PublicDir   string
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	TelegramBotToken string
	WebhookURL       string

	RelayURL string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// plain seconds, e.g. UPSTREAM_TIMEOUT=45
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func getInt(k string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil {
		return n
	}
	return def
}

// Load reads an optional .env file and then the process environment.
// The upstream credential is not required here: a missing key is reported
// per request as a configuration error.
func Load() *Config {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	return &Config{
		Port: getEnv("PORT", "3000"),

		Provider:        strings.ToLower(getEnv("UPSTREAM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		PromptFile:      getEnv("PROMPT_FILE", ""),

		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", "memory")),
		HistoryFile:    getEnv("HISTORY_FILE", filepath.Join(home, ".kisan-mitra", "history.json")),
		HistoryTZ:      getEnv("HISTORY_TZ", "Asia/Kolkata"),
		DatabaseURL:    ResolveDSN(),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getInt("REDIS_DB", 0),

		PublicDir:   getEnv("PUBLIC_DIR", "public"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		RelayURL: getEnv("RELAY_URL", "http://localhost:3000"),
	}
}

// Credential returns the API key of the selected upstream provider.
func (c *Config) Credential() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// Location resolves HistoryTZ, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.HistoryTZ); err == nil {
		return loc
	}
	return time.Local
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ResolveDSN prefers DATABASE_URL and otherwise builds a DSN from POSTGRES_*/PG* vars.
// It returns "" when neither DATABASE_URL nor POSTGRES_PASSWORD is set.
func ResolveDSN() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	if pass == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "kisan"), pass),
		Host:     net.JoinHostPort(getEnv("PGHOST", "db"), getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "kisan"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary renders a DSN without its password, for logs.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}
