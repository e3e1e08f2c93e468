package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "choregate/pkg/platform/strings"
)

// Server captures process-level configuration. Everything is supplied through
// the environment; FromEnv applies development defaults and Validate rejects
// configurations that must not reach production traffic.
type Server struct {
	Addr    string
	BaseURL string

	// JWTSigningKey is the process-wide HMAC secret for access tokens.
	JWTSigningKey string

	// ClientID is the single pre-shared OAuth client identifier.
	ClientID string

	// Scopes advertised in the discovery document and stamped into tokens.
	Scopes []string

	AdminPassword string

	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
}

// RedisConfig configures the optional Redis-backed session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the optional PostgreSQL store. When URL is empty
// the in-memory stores are used.
type DatabaseConfig struct {
	URL string
}

// KafkaConfig configures the optional security-audit event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := envOr("CHOREGATE_ADDR", ":8080")
	baseURL := envOr("CHOREGATE_BASE_URL", "http://127.0.0.1:8080")

	scopes := pstrings.DedupeAndTrim(strings.Fields(envOr("CHOREGATE_SCOPES", "mcp:tools:read mcp:tools:write")))

	return Server{
		Addr:          addr,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		JWTSigningKey: os.Getenv("CHOREGATE_JWT_SECRET"),
		ClientID:      envOr("CHOREGATE_CLIENT_ID", "choregate-mcp"),
		Scopes:        scopes,
		AdminPassword: os.Getenv("CHOREGATE_ADMIN_PASSWORD"),
		Redis: RedisConfig{
			URL:          os.Getenv("CHOREGATE_REDIS_URL"),
			PoolSize:     envIntOr("CHOREGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("CHOREGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("CHOREGATE_DATABASE_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("CHOREGATE_KAFKA_BROKERS")),
			Topic:   envOr("CHOREGATE_KAFKA_AUDIT_TOPIC", "choregate.audit.security"),
		},
	}
}

// Validate rejects configurations that would otherwise fail lazily per-request.
// A missing signing secret must stop the server before it serves traffic.
func (s Server) Validate() error {
	if s.JWTSigningKey == "" {
		return fmt.Errorf("CHOREGATE_JWT_SECRET is required")
	}
	if len(s.JWTSigningKey) < 32 {
		return fmt.Errorf("CHOREGATE_JWT_SECRET must be at least 32 bytes, got %d", len(s.JWTSigningKey))
	}
	if s.BaseURL == "" {
		return fmt.Errorf("CHOREGATE_BASE_URL is required")
	}
	if !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		return fmt.Errorf("CHOREGATE_BASE_URL must be an absolute http(s) URL, got %q", s.BaseURL)
	}
	if s.ClientID == "" {
		return fmt.Errorf("CHOREGATE_CLIENT_ID must not be empty")
	}
	if len(s.Scopes) == 0 {
		return fmt.Errorf("CHOREGATE_SCOPES must list at least one scope")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
