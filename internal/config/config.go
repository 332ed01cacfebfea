package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath       string
	UploadDir    string
	OutputDir    string
	RawMailDir   string
	TemplatePath string
	MaxUploadMB  int
	MinTextChars int

	HTTPAddr string
	LogMode  string

	OllamaURL          string
	OllamaModel        string
	OllamaTimeoutMs    int
	OllamaRateLimitRPS int
	OllamaMaxAttempts  int
	OllamaTemperature  float64
	OllamaTopP         float64

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:       getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		UploadDir:    getEnv("UPLOAD_DIR", filepath.Join(cwd, "data", "uploads")),
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		RawMailDir:   getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		TemplatePath: getEnv("TEMPLATE_PATH", filepath.Join(cwd, "templates", "affidamento.docx")),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 10),
		MinTextChars: getEnvInt("MIN_TEXT_CHARS", 10),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogMode:  getEnv("LOG_MODE", "dev"),

		OllamaURL:          getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "qwen2.5:7b"),
		OllamaTimeoutMs:    getEnvInt("OLLAMA_TIMEOUT_MS", 120000),
		OllamaRateLimitRPS: getEnvInt("OLLAMA_RATE_LIMIT_RPS", 2),
		OllamaMaxAttempts:  getEnvInt("OLLAMA_MAX_ATTEMPTS", 3),
		OllamaTemperature:  getEnvFloat("OLLAMA_TEMPERATURE", 0.1),
		OllamaTopP:         getEnvFloat("OLLAMA_TOP_P", 0.9),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
