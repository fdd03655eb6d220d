package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/chatflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.Options{EnvFile: noEnvFile(t), LookupEnv: env(nil)})
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chatflow.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
store:
  driver: redis
  redis_db: 2
http:
  port: "9090"
log:
  level: debug
`), 0644))

	cfg, err := config.Load(config.Options{
		File:    file,
		EnvFile: noEnvFile(t),
		LookupEnv: env(map[string]string{
			"CHATFLOW_STORE_REDIS_DB":  "5",
			"CHATFLOW_CURSOR_SECRET":   "s3cret",
			"CHATFLOW_STORE_REDIS_ADDR": "redis:6379",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Store.RedisDB, "env overrides file")
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "chatflow:", cfg.Store.RedisPrefix, "defaults survive")
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.Cursor.Secret)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CHATFLOW_TEST_DOTENV_PORT=7070\n"), 0644))

	_, err := config.Load(config.Options{EnvFile: envFile, LookupEnv: env(nil)})
	require.NoError(t, err)

	v, ok := os.LookupEnv("CHATFLOW_TEST_DOTENV_PORT")
	t.Cleanup(func() { os.Unsetenv("CHATFLOW_TEST_DOTENV_PORT") })
	assert.True(t, ok)
	assert.Equal(t, "7070", v)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("store:\n  flavour: mint\n"), 0644))

	tests := map[string]config.Options{
		"missing file":  {File: filepath.Join(dir, "nope.yaml")},
		"unknown key":   {File: unknown},
		"bad driver":    {LookupEnv: env(map[string]string{"CHATFLOW_STORE_DRIVER": "mongo"})},
		"postgres dsn":  {LookupEnv: env(map[string]string{"CHATFLOW_STORE_DRIVER": "postgres", "CHATFLOW_STORE_DSN": ""})},
		"non-int redis": {LookupEnv: env(map[string]string{"CHATFLOW_STORE_REDIS_DB": "two"})},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			opts.EnvFile = noEnvFile(t)
			if opts.LookupEnv == nil {
				opts.LookupEnv = env(nil)
			}
			_, err := config.Load(opts)
			assert.Error(t, err)
		})
	}
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "CHATFLOW_STORE_REDIS_ADDR", config.EnvName("store.redis_addr"))
}
