// Package config reads process configuration from the environment and
// lobby settings presets from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jason-s-yu/tablehost/internal/auth"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the process-level configuration shared by host and guest.
type Config struct {
	LogLevel logrus.Level

	ListenAddr string // host: where the hub listens
	HostURL    string // guest: hub websocket URL

	KeyPath  string        // host: ed25519 key for reconnection tokens; empty generates one
	TokenTTL time.Duration // 0 => tokens never expire

	RedisAddr   string // empty disables the Redis event log and session store
	DatabaseURL string // empty disables the results archive

	SuggesterURL     string
	SuggesterTimeout time.Duration
}

// Load reads Config from the environment. Call after godotenv has populated it.
func Load() (Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	ttl, err := auth.ParseTTL(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return Config{}, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}
	timeout, err := getEnvDuration("SUGGESTER_TIMEOUT", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	return Config{
		LogLevel:         level,
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		HostURL:          getEnv("HOST_URL", "ws://localhost:8080/peer"),
		KeyPath:          os.Getenv("HOST_KEY_PATH"),
		TokenTTL:         ttl,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SuggesterURL:     os.Getenv("SUGGESTER_URL"),
		SuggesterTimeout: timeout,
	}, nil
}

// LoadSettings reads a YAML settings preset. Fields the file omits keep the
// defaults for the game it names; kind is used when the file names none.
func LoadSettings(path string, kind models.GameKind) (models.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	return ParseSettings(data, kind)
}

// ParseSettings is LoadSettings over bytes.
func ParseSettings(data []byte, kind models.GameKind) (models.Settings, error) {
	var head struct {
		Game models.GameKind `yaml:"game"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return models.Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if head.Game != "" {
		kind = head.Game
	}
	s := models.DefaultSettings(kind)
	if err := yaml.Unmarshal(data, &s); err != nil {
		return models.Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return models.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvDuration parses a duration variable. "never" and "0" mean zero.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	switch s {
	case "":
		return def, nil
	case "never", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
