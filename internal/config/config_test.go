package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/dsis-recall-client/pkg/auth"
	"github.com/Sternrassler/dsis-recall-client/pkg/client"
	"github.com/Sternrassler/dsis-recall-client/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads. Empty variables are ignored.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NATIVE", "BASE_URL", "TOKEN_URL", "INSECURE_SKIP_VERIFY", "REQUEST_TIMEOUT",
		"REDIS_ADDR", "CACHE_TTL", "LOG_LEVEL", "LOG_PRETTY", "METRICS_ADDR",
		"S3_BUCKET", "S3_REGION", "S3_PREFIX", "SECRETS_DIR", "USER_ID", "PASSWORD",
	} {
		t.Setenv("DSIS_"+key, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DSIS_USER_ID", "alice")
	t.Setenv("DSIS_PASSWORD", "s3cret")

	cfg, err := Load(WithSecretsDir(t.TempDir()))
	require.NoError(t, err)

	assert.True(t, cfg.Native)
	assert.Equal(t, auth.DefaultTokenURL, cfg.TokenURL)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.S3Bucket)
	assert.Equal(t, auth.Credentials{Username: "alice", Password: "s3cret"}, cfg.Credentials)
}

func TestLoad_SecretsDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "user_id", "alice\n")
	writeFile(t, dir, "password", "  s3cret\n")

	cfg, err := Load(WithSecretsDir(dir))
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Credentials.Username)
	assert.Equal(t, "s3cret", cfg.Credentials.Password)
}

func TestLoad_SecretsDirFromEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "user_id", "bob")
	writeFile(t, dir, "password", "pw")
	t.Setenv("DSIS_SECRETS_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.SecretsDir)
	assert.Equal(t, "bob", cfg.Credentials.Username)
}

func TestLoad_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"no files", nil},
		{"no password", map[string]string{"user_id": "alice"}},
		{"empty password", map[string]string{"user_id": "alice", "password": "\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			_, err := Load(WithSecretsDir(dir))
			assert.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("DSIS_USER_ID", "alice")
	t.Setenv("DSIS_PASSWORD", "s3cret")
	t.Setenv("DSIS_REQUEST_TIMEOUT", "10s")

	dir := t.TempDir()
	path := writeFile(t, dir, "dsis.yaml", `
native: false
base_url: http://localhost:8080/dsl.svc/common
request_timeout: 5s
log_level: debug
redis_addr: localhost:6379
cache_ttl: 1m
s3_bucket: exports
`)

	cfg, err := Load(WithConfigFile(path), WithSecretsDir(dir))
	require.NoError(t, err)

	assert.False(t, cfg.Native)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "exports", cfg.S3Bucket)

	m := cfg.Model()
	assert.Equal(t, client.CommonModel().Log, m.Log)
	assert.Equal(t, "http://localhost:8080/dsl.svc/common", m.BaseURL)
}

func TestLoad_EnvPlaceholder(t *testing.T) {
	clearEnv(t)
	t.Setenv("VAULT_DSIS_PASSWORD", "from-vault")

	dir := t.TempDir()
	path := writeFile(t, dir, "dsis.yaml", "user_id: alice\npassword: env://VAULT_DSIS_PASSWORD\n")

	cfg, err := Load(WithConfigFile(path), WithSecretsDir(dir))
	require.NoError(t, err)
	assert.Equal(t, "from-vault", cfg.Credentials.Password)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"log level", map[string]string{"DSIS_LOG_LEVEL": "chatty"}, `unknown log level "chatty"`},
		{"timeout", map[string]string{"DSIS_REQUEST_TIMEOUT": "0s"}, "request_timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DSIS_USER_ID", "alice")
			t.Setenv("DSIS_PASSWORD", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(WithSecretsDir(t.TempDir()))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.ErrorContains(t, err, "read config file")
}

func TestConfig_Derived(t *testing.T) {
	cfg := &Config{
		Native:             true,
		TokenURL:           "http://localhost/token",
		InsecureSkipVerify: false,
		LogLevel:           "warn",
		LogPretty:          true,
		Credentials:        auth.Credentials{Username: "alice", Password: "s3cret"},
	}

	a := cfg.Auth()
	assert.Equal(t, "http://localhost/token", a.TokenURL)
	assert.Equal(t, auth.DefaultClientID, a.ClientID)
	assert.False(t, a.InsecureSkipVerify)
	assert.Equal(t, cfg.Credentials, a.Credentials)

	l := cfg.Logging()
	assert.Equal(t, logging.LevelWarn, l.Level)
	assert.True(t, l.Pretty)

	assert.Equal(t, client.NativeModel(), cfg.Model())
	assert.NotContains(t, cfg.Credentials.String(), "s3cret")
}
