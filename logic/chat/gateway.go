// Package chat is the completion gateway: it hides which backend produces
// text and guarantees callers a string, never an error.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
	"lexanalyzer/vars"
)

type Provider string

const (
	ProviderGroq   Provider = "groq"
	ProviderOllama Provider = "ollama"
)

// ErrorPrefix marks a completion that failed. Such text is never valid JSON.
const ErrorPrefix = "Error:"

// Completer is what the analysis agents depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ...Option) string
}

// IsError reports whether text is a gateway failure sentinel.
func IsError(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), ErrorPrefix)
}

type Config struct {
	Provider       Provider
	APIKey         string
	GroqBaseURL    string
	OllamaBaseURL  string
	BaseModel      string
	FinetunedModel string
	Timeout        time.Duration
	ProbeTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.GroqBaseURL == "" {
		c.GroqBaseURL = vars.GROQ_BASE_URL
	}
	if c.OllamaBaseURL == "" {
		c.OllamaBaseURL = vars.OLLAMA_BASE_URL
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	switch c.Provider {
	case ProviderOllama:
		if c.BaseModel == "" {
			c.BaseModel = vars.OLLAMA_BASE_MODEL
		}
		if c.FinetunedModel == "" {
			c.FinetunedModel = vars.OLLAMA_FINETUNED_MODEL
		}
	default:
		if c.BaseModel == "" {
			c.BaseModel = vars.GROQ_BASE_MODEL
		}
		if c.FinetunedModel == "" {
			c.FinetunedModel = vars.GROQ_FINETUNED_MODEL
		}
	}
	return c
}

type modelLister interface {
	List(ctx context.Context) (*api.ListResponse, error)
}

type Gateway struct {
	cfg Config
	// chatModel returns a model honouring maxTokens.
	chatModel func(ctx context.Context, maxTokens int) (model.BaseChatModel, error)
	lister    modelLister
	observe   func(provider, status string, d time.Duration)
}

func staticModel(cm model.BaseChatModel) func(context.Context, int) (model.BaseChatModel, error) {
	return func(context.Context, int) (model.BaseChatModel, error) { return cm, nil }
}

// NewGateway builds the backend for cfg.Provider. A missing Groq key is not
// an error: the gateway starts degraded and every completion returns the
// missing-credential sentinel.
func NewGateway(ctx context.Context, cfg Config) (*Gateway, error) {
	cfg = cfg.withDefaults()
	g := &Gateway{cfg: cfg}

	switch cfg.Provider {
	case ProviderGroq:
		if cfg.APIKey == "" {
			logger.WithContext(ctx).Warn("GROQ_API_KEY not set, completions disabled")
			return g, nil
		}
		cm, err := CreateGroqChatModel(ctx, cfg.GroqBaseURL, cfg.APIKey, cfg.BaseModel, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		g.chatModel = staticModel(cm)
	case ProviderOllama:
		base, err := url.Parse(cfg.OllamaBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse ollama url: %w", err)
		}
		models := newOllamaModels(cfg.OllamaBaseURL, cfg.BaseModel)
		if _, err := models.get(ctx, vars.DEFAULT_MAX_TOKENS); err != nil {
			return nil, err
		}
		g.chatModel = models.get
		g.lister = api.NewClient(base, &http.Client{Timeout: cfg.ProbeTimeout})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return g, nil
}

func newGateway(cfg Config, cm model.BaseChatModel, lister modelLister) *Gateway {
	g := &Gateway{cfg: cfg.withDefaults(), lister: lister}
	if cm != nil {
		g.chatModel = staticModel(cm)
	}
	return g
}

// OnComplete registers a hook called after every completion with status
// success or error.
func (g *Gateway) OnComplete(fn func(provider, status string, d time.Duration)) {
	g.observe = fn
}

func (g *Gateway) Provider() Provider { return g.cfg.Provider }

// SelectModel resolves override > finetuned default > base default.
func (g *Gateway) SelectModel(o Options) string {
	if o.Model != "" {
		return o.Model
	}
	if o.UseFinetuned {
		return g.cfg.FinetunedModel
	}
	return g.cfg.BaseModel
}

// Complete generates text for prompt. Any failure, including a timeout, is
// returned as a string starting with "Error:".
func (g *Gateway) Complete(ctx context.Context, prompt string, opts ...Option) string {
	start := time.Now()
	text, err := g.complete(ctx, prompt, ApplyOptions(opts...))
	status := "success"
	if err != nil {
		status = "error"
		text = ErrorPrefix + " " + err.Error()
		logger.WithContext(ctx).Warn("completion failed",
			zap.String("provider", string(g.cfg.Provider)), zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	}
	if g.observe != nil {
		g.observe(string(g.cfg.Provider), status, time.Since(start))
	}
	return text
}

func (g *Gateway) complete(ctx context.Context, prompt string, o Options) (string, error) {
	if g.cfg.Provider == ProviderGroq && g.cfg.APIKey == "" {
		return "", fmt.Errorf("GROQ_API_KEY not set in environment")
	}
	if g.chatModel == nil {
		return "", fmt.Errorf("no chat model configured")
	}

	name := g.SelectModel(o)
	var msgs []*schema.Message
	if o.UseFinetuned && g.cfg.Provider == ProviderGroq {
		msgs = append(msgs, schema.SystemMessage(vars.LEGAL_SYSTEM_PROMPT))
	}
	msgs = append(msgs, schema.UserMessage(prompt))

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	cm, err := g.chatModel(ctx, o.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("%s model init failed: %w", g.cfg.Provider, err)
	}
	resp, err := cm.Generate(ctx, msgs,
		model.WithModel(name),
		model.WithTemperature(o.Temperature),
		model.WithMaxTokens(o.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", g.cfg.Provider, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%s returned no message", g.cfg.Provider)
	}
	return resp.Content, nil
}

// IsAvailable: Groq needs a key (no network call); Ollama must answer a
// model-list probe within the probe timeout.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	switch g.cfg.Provider {
	case ProviderGroq:
		return g.cfg.APIKey != ""
	case ProviderOllama:
		if g.lister == nil {
			return false
		}
		ctx, cancel := context.WithTimeout(ctx, g.cfg.ProbeTimeout)
		defer cancel()
		_, err := g.lister.List(ctx)
		return err == nil
	}
	return false
}

// ListModels returns the models the backend can serve; empty on failure.
func (g *Gateway) ListModels(ctx context.Context) []string {
	if g.cfg.Provider == ProviderGroq {
		return append([]string(nil), vars.GROQ_MODELS...)
	}
	if g.lister == nil {
		return []string{}
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ProbeTimeout)
	defer cancel()
	resp, err := g.lister.List(ctx)
	if err != nil {
		logger.WithContext(ctx).Warn("list ollama models failed", zap.Error(err))
		return []string{}
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names
}

type Info struct {
	Provider       string `json:"provider"`
	BaseModel      string `json:"base_model"`
	FinetunedModel string `json:"finetuned_model"`
	Available      bool   `json:"available"`
}

func (g *Gateway) Info(ctx context.Context) Info {
	return Info{
		Provider:       string(g.cfg.Provider),
		BaseModel:      g.cfg.BaseModel,
		FinetunedModel: g.cfg.FinetunedModel,
		Available:      g.IsAvailable(ctx),
	}
}
