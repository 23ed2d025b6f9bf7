package config

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.App.Addr())
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 100, cfg.Engine.RecursionLimit)
	assert.Equal(t, "IT Support", cfg.Engine.ReassignmentGroup)
	assert.Equal(t, "sc_task", cfg.ServiceNow.Table)
	assert.Equal(t, "6", cfg.ServiceNow.ResolvedState)
	assert.True(t, cfg.LLM.JSONMode)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TICKETFLOW_STORE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_LOCKING", "true")
	t.Setenv("TICKETFLOW_RECURSION_LIMIT", "not-a-number")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("TICKETFLOW_PII_PATTERNS", `\d{3,4};secret`)
	t.Setenv("TICKETFLOW_ENCRYPTION_FALLBACK_KEYS", "a, ,b")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Redis.Locking)
	assert.Equal(t, 100, cfg.Engine.RecursionLimit, "invalid numbers fall back")
	assert.Equal(t, "gsk_test", cfg.LLM.APIKey)
	assert.Equal(t, []string{`\d{3,4}`, "secret"}, cfg.Store.PIIPatterns)
	assert.Equal(t, []string{"a", "b"}, cfg.Store.FallbackKeys)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid REDIS_DB")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, writeFile(dir+"/.env", "TICKETFLOW_REASSIGNMENT_GROUP=Service Desk\n"))
	t.Cleanup(func() { os.Unsetenv("TICKETFLOW_REASSIGNMENT_GROUP") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Service Desk", cfg.Engine.ReassignmentGroup)
}

func TestBindFlags_OverrideEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TICKETFLOW_STORE", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--store", "sqlite", "--recursion-limit", "7"}))

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 7, cfg.Engine.RecursionLimit)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Store.Backend = "postgres"
	cfg.Engine.RecursionLimit = 0
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "POSTGRES_DSN"))
	assert.Contains(t, msg, "recursion limit")
	assert.Contains(t, msg, "want 32 bytes")
}

func TestStoreConfig_Keys(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	cfg := StoreConfig{EncryptionKey: key, FallbackKeys: []string{key}}

	active, fallback, err := cfg.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Len(t, fallback, 1)

	cfg.FallbackKeys = []string{"%%%"}
	_, _, err = cfg.Keys()
	assert.ErrorContains(t, err, "fallback key 0")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
