package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL      = "http://localhost:1234/v1"
	defaultTimeout      = 120 * time.Second
	minTimeout          = 60 * time.Second
	defaultHistoryLimit = 10
	defaultMessageLimit = 4000
	defaultSystemPrompt = "You are a helpful, friendly AI assistant. Answer clearly and concisely."
)

type Config struct {
	LMBaseURL string
	LMModel   string
	LMTimeout time.Duration

	SystemPrompt string
	HistoryLimit int
	MessageLimit int

	WAPhoneNumberID string
	WAAccessToken   string
	WAVerifyToken   string

	Port     string
	LogLevel string
}

func Load() (*Config, error) {
	// .env is optional; in production the environment is set directly
	_ = godotenv.Load()

	cfg := &Config{
		LMBaseURL:       os.Getenv("LM_BASE_URL"),
		LMModel:         os.Getenv("LM_MODEL"),
		LMTimeout:       time.Duration(parseIntEnv("LM_TIMEOUT")) * time.Second,
		SystemPrompt:    os.Getenv("SYSTEM_PROMPT"),
		HistoryLimit:    parseIntEnv("HISTORY_LIMIT"),
		MessageLimit:    parseIntEnv("MESSAGE_LIMIT"),
		WAPhoneNumberID: os.Getenv("WA_PHONE_NUMBER_ID"),
		WAAccessToken:   os.Getenv("WA_ACCESS_TOKEN"),
		WAVerifyToken:   os.Getenv("WA_VERIFY_TOKEN"),
		Port:            os.Getenv("PORT"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}

	if cfg.LMBaseURL == "" {
		cfg.LMBaseURL = defaultBaseURL
	}
	if cfg.LMTimeout <= 0 {
		cfg.LMTimeout = defaultTimeout
	}
	// local inference is slow; shorter budgets just produce spurious timeouts
	if cfg.LMTimeout < minTimeout {
		cfg.LMTimeout = minTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	// one system turn plus at least one dialogue turn
	if cfg.HistoryLimit < 2 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = defaultMessageLimit
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.WAVerifyToken == "" {
		token, err := randomHex(16)
		if err != nil {
			return nil, fmt.Errorf("generating verify token: %w", err)
		}
		cfg.WAVerifyToken = token
	}

	return cfg, nil
}

// Validate checks the settings only the webhook server needs.
func (c *Config) Validate() error {
	for _, req := range []struct {
		name, val string
	}{
		{"WA_PHONE_NUMBER_ID", c.WAPhoneNumberID},
		{"WA_ACCESS_TOKEN", c.WAAccessToken},
	} {
		if req.val == "" {
			return fmt.Errorf("required env var %s is not set", req.name)
		}
	}
	return nil
}

func parseIntEnv(key string) int {
	v, _ := strconv.Atoi(os.Getenv(key))
	return v
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
