package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{Getenv: env(nil)})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestLoad_Layers(t *testing.T) {
	file := writeFile(t, "httprpc.yaml", `
addr: ":9000"
db: catalog.db
pretty: true
log_level: debug
cors_origins: [https://a.example]
`)
	cfg, err := Load(Options{File: file, Getenv: env(map[string]string{
		"HTTPRPC_ADDR":         "127.0.0.1:9100",
		"HTTPRPC_GZIP":         "false",
		"HTTPRPC_CORS_ORIGINS": "https://b.example, https://c.example",
	})})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Addr, "env overrides file")
	assert.Equal(t, "catalog.db", cfg.DB, "file overrides default")
	assert.True(t, cfg.Pretty)
	assert.False(t, cfg.Gzip)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.CORSOrigins)
}

func TestLoad_EnvFile(t *testing.T) {
	const name = "HTTPRPC_LOG_LEVEL"
	if _, ok := os.LookupEnv(name); ok {
		t.Skipf("%s already set", name)
	}
	t.Cleanup(func() { _ = os.Unsetenv(name) })

	dotenv := writeFile(t, ".env", name+"=warn\n")
	cfg, err := Load(Options{EnvFile: dotenv})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)

	_, err = Load(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env"), Getenv: env(nil)})
	assert.NoError(t, err, "missing dotenv file is skipped")
}

func TestLoad_Errors(t *testing.T) {
	key := strings.Repeat("ab", KeySize)
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"missing file", Options{File: "/nonexistent/httprpc.yaml"}, "config:"},
		{"bad yaml", Options{File: writeFile(t, "bad.yaml", "addr: [")}, "bad.yaml"},
		{"bad addr", Options{Getenv: env(map[string]string{"HTTPRPC_ADDR": "nope"})}, "addr"},
		{"bad level", Options{Getenv: env(map[string]string{"HTTPRPC_LOG_LEVEL": "loud"})}, "log_level"},
		{"bad bool", Options{Getenv: env(map[string]string{"HTTPRPC_GZIP": "sometimes"})}, "HTTPRPC_GZIP"},
		{"bad key hex", Options{Getenv: env(map[string]string{"HTTPRPC_COOKIE_KEY": "zz"})}, "cookie_key"},
		{"short key", Options{Getenv: env(map[string]string{"HTTPRPC_COOKIE_KEY": key[:10]})}, "want 32"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.opts.Getenv == nil {
				tt.opts.Getenv = env(nil)
			}
			_, err := Load(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg, err := Load(Options{Getenv: env(map[string]string{"HTTPRPC_COOKIE_KEY": key})})
	require.NoError(t, err)
	k, err := cfg.Key()
	require.NoError(t, err)
	assert.Len(t, k, KeySize)
}
