package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5*time.Second, cfg.LLM.ProbeTimeout)
	assert.Equal(t, 4, cfg.Analysis.CompareWorkers)
	assert.Equal(t, 4000, cfg.Analysis.MaxChars)
	assert.Equal(t, 720*time.Hour, cfg.History.Retention)
	assert.Equal(t, "contract_clauses", cfg.Milvus.Collection)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	t.Setenv("LEXA_ANALYSIS_COMPARE_WORKERS", "8")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000,https://app.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "gsk_test", cfg.LLM.GroqAPIKey)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.OllamaBaseURL)
	assert.Equal(t, 8, cfg.Analysis.CompareWorkers)
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LLM_PROVIDER", "")
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\nlog:\n  level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			LLM:      LLMConfig{Provider: "groq", Timeout: time.Second},
			Analysis: AnalysisConfig{CompareWorkers: 1, RetrievalTimeout: time.Second, IndexTimeout: time.Second, MaxChars: 10},
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.LLM.Provider = "openrouter"
	assert.ErrorIs(t, c.Validate(), ErrInvalid)

	c = base()
	c.Analysis.CompareWorkers = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalid)

	c = base()
	c.LLM.Timeout = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestConnString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "lexa"}
	assert.Equal(t, "host=db user=u password=p dbname=lexa port=5432 sslmode=disable", p.ConnString())

	p.DSN = "postgres://x"
	assert.Equal(t, "postgres://x", p.ConnString())
}
