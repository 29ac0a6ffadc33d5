package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"lexanalyzer/pkg/logger"
	"lexanalyzer/vars"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is read from config.yaml, LEXA_* environment variables and .env.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Milvus        MilvusConfig        `mapstructure:"milvus"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	History       HistoryConfig       `mapstructure:"history"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"` // requests per minute per client
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`

	// 跨域白名单, "*" 放开全部
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	GroqBaseURL    string        `mapstructure:"groq_base_url"`
	GroqAPIKey     string        `mapstructure:"groq_api_key"`
	OllamaBaseURL  string        `mapstructure:"ollama_base_url"`
	BaseModel      string        `mapstructure:"base_model"`
	FinetunedModel string        `mapstructure:"finetuned_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
}

type EmbeddingConfig struct {
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MilvusConfig struct {
	Addr       string `mapstructure:"addr"`
	Collection string `mapstructure:"collection"`
}

type ElasticsearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Index   string `mapstructure:"index"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// ConnString returns DSN, or builds one from the individual fields.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		p.Host, p.User, p.Password, p.DBName, p.Port)
}

type AnalysisConfig struct {
	CompareWorkers   int           `mapstructure:"compare_workers"`
	RetrievalTimeout time.Duration `mapstructure:"retrieval_timeout"`
	IndexTimeout     time.Duration `mapstructure:"index_timeout"`
	MaxChars         int           `mapstructure:"max_chars"`
}

type HistoryConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	Cron      string        `mapstructure:"cron"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. path may be empty, in which case config.yaml is
// looked up in the working directory and $HOME/.lexanalyzer.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lexanalyzer")
	}
	v.SetEnvPrefix("LEXA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// well-known variables without prefix
	_ = v.BindEnv("llm.provider", "LEXA_LLM_PROVIDER", "LLM_PROVIDER")
	_ = v.BindEnv("llm.groq_api_key", "LEXA_LLM_GROQ_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("llm.ollama_base_url", "LEXA_LLM_OLLAMA_BASE_URL", "OLLAMA_BASE_URL")
	_ = v.BindEnv("server.allowed_origins", "LEXA_SERVER_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Debug("no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8081")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.groq_base_url", vars.GROQ_BASE_URL)
	v.SetDefault("llm.groq_api_key", "")
	v.SetDefault("llm.ollama_base_url", vars.OLLAMA_BASE_URL)
	v.SetDefault("llm.base_model", "")
	v.SetDefault("llm.finetuned_model", "")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.probe_timeout", "5s")

	v.SetDefault("embedding.model", vars.NOMIC)
	v.SetDefault("embedding.timeout", "60s")

	v.SetDefault("milvus.addr", "127.0.0.1:19530")
	v.SetDefault("milvus.collection", vars.COLLECTION)

	v.SetDefault("elasticsearch.enabled", true)
	v.SetDefault("elasticsearch.addr", "http://localhost:9200")
	v.SetDefault("elasticsearch.index", vars.ES_INDEX)

	v.SetDefault("postgres.enabled", true)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "lexanalyzer")

	v.SetDefault("analysis.compare_workers", 4)
	v.SetDefault("analysis.retrieval_timeout", "30s")
	v.SetDefault("analysis.index_timeout", "60s")
	v.SetDefault("analysis.max_chars", 4000)

	v.SetDefault("history.retention", "720h")
	v.SetDefault("history.cron", "0 0 2 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "groq", "ollama":
	default:
		return fmt.Errorf("%w: llm.provider must be groq or ollama, got %q", ErrInvalid, c.LLM.Provider)
	}
	if c.Analysis.CompareWorkers <= 0 {
		return fmt.Errorf("%w: analysis.compare_workers must be positive", ErrInvalid)
	}
	if c.LLM.Timeout <= 0 || c.Analysis.RetrievalTimeout <= 0 || c.Analysis.IndexTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if c.Analysis.MaxChars <= 0 {
		return fmt.Errorf("%w: analysis.max_chars must be positive", ErrInvalid)
	}
	return nil
}
