package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// CreateOllamaChatModel 本地 Ollama 推理服务. numPredict caps generated
// tokens; the eino ollama model only reads it from its config options.
func CreateOllamaChatModel(ctx context.Context, url string, modelName string, numPredict int) (model.ToolCallingChatModel, error) {
	cfg := &ollama.ChatModelConfig{
		BaseURL: url,
		Model:   modelName,
	}
	if numPredict > 0 {
		cfg.Options = &ollama.Options{NumPredict: numPredict}
	}
	chatModel, err := ollama.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model failed: %w", err)
	}
	return chatModel, nil
}

// CreateGroqChatModel 远程 Groq (OpenAI 兼容接口), bearer-token auth.
func CreateGroqChatModel(ctx context.Context, baseURL, apiKey, modelName string, timeout time.Duration) (model.ToolCallingChatModel, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   modelName,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create groq chat model failed: %w", err)
	}
	return chatModel, nil
}

// ollamaModels keeps one chat model per num_predict value.
type ollamaModels struct {
	mu        sync.Mutex
	baseURL   string
	modelName string
	byLimit   map[int]model.BaseChatModel
}

func newOllamaModels(baseURL, modelName string) *ollamaModels {
	return &ollamaModels{baseURL: baseURL, modelName: modelName, byLimit: make(map[int]model.BaseChatModel)}
}

func (p *ollamaModels) get(ctx context.Context, maxTokens int) (model.BaseChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cm, ok := p.byLimit[maxTokens]; ok {
		return cm, nil
	}
	cm, err := CreateOllamaChatModel(ctx, p.baseURL, p.modelName, maxTokens)
	if err != nil {
		return nil, err
	}
	p.byLimit[maxTokens] = cm
	return cm, nil
}
