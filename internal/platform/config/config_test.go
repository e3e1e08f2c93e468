package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func validConfig() Server {
	return Server{
		Addr:          ":8080",
		BaseURL:       "http://127.0.0.1:8080",
		JWTSigningKey: validSecret,
		ClientID:      "choregate-mcp",
		Scopes:        []string{"mcp:tools:read", "mcp:tools:write"},
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CHOREGATE_JWT_SECRET", validSecret)

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.BaseURL)
	assert.Equal(t, "choregate-mcp", cfg.ClientID)
	assert.Equal(t, []string{"mcp:tools:read", "mcp:tools:write"}, cfg.Scopes)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CHOREGATE_ADDR", ":9999")
	t.Setenv("CHOREGATE_BASE_URL", "https://auth.example.com/")
	t.Setenv("CHOREGATE_JWT_SECRET", validSecret)
	t.Setenv("CHOREGATE_CLIENT_ID", "my-client")
	t.Setenv("CHOREGATE_SCOPES", "a:read b:write a:read")
	t.Setenv("CHOREGATE_KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg := FromEnv()
	assert.Equal(t, ":9999", cfg.Addr)
	// Trailing slash is stripped so URL joins stay predictable.
	assert.Equal(t, "https://auth.example.com", cfg.BaseURL)
	assert.Equal(t, "my-client", cfg.ClientID)
	assert.Equal(t, []string{"a:read", "b:write"}, cfg.Scopes)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Server)
		wantErr string
	}{
		{"valid", func(*Server) {}, ""},
		{"missing secret", func(c *Server) { c.JWTSigningKey = "" }, "CHOREGATE_JWT_SECRET is required"},
		{"short secret", func(c *Server) { c.JWTSigningKey = "tooshort" }, "at least 32 bytes"},
		{"missing base URL", func(c *Server) { c.BaseURL = "" }, "CHOREGATE_BASE_URL is required"},
		{"relative base URL", func(c *Server) { c.BaseURL = "auth.example.com" }, "absolute http(s) URL"},
		{"empty client id", func(c *Server) { c.ClientID = "" }, "CHOREGATE_CLIENT_ID"},
		{"no scopes", func(c *Server) { c.Scopes = nil }, "at least one scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
