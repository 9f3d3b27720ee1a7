package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainAgent answers prompts through any langchaingo chat model.
type LangChainAgent struct {
	model llms.Model
	name  string
}

// NewLangChainAgent wraps an existing langchaingo model. name is reported as
// Response.Model.
func NewLangChainAgent(model llms.Model, name string) *LangChainAgent {
	return &LangChainAgent{model: model, name: name}
}

// OpenAIConfig configures an OpenAI-compatible chat model.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL points at an OpenAI-compatible server. Empty means api.openai.com.
	BaseURL string
}

// NewOpenAIAgent creates a LangChainAgent backed by an OpenAI-compatible API.
func NewOpenAIAgent(cfg OpenAIConfig) (*LangChainAgent, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLangChainAgent(llm, cfg.Model), nil
}

// OllamaConfig configures a locally served Ollama model.
type OllamaConfig struct {
	Model string
	// ServerURL defaults to http://localhost:11434.
	ServerURL string
}

// NewOllamaAgent creates a LangChainAgent backed by Ollama.
func NewOllamaAgent(cfg OllamaConfig) (*LangChainAgent, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLangChainAgent(llm, cfg.Model), nil
}

// Invoke sends the prompt as a single human message.
func (a *LangChainAgent) Invoke(ctx context.Context, req Request) (Response, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}
	var callOpts []llms.CallOption
	model := a.name
	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
		model = req.Model
	}

	start := time.Now()
	resp, err := a.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return Response{}, fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("generate: empty response")
	}

	out := Response{
		Content:  resp.Choices[0].Content,
		Model:    model,
		Duration: time.Since(start),
	}
	if info := resp.Choices[0].GenerationInfo; info != nil {
		out.TokensIn = int64Of(info["PromptTokens"])
		out.TokensOut = int64Of(info["CompletionTokens"])
	}
	return out, nil
}

func int64Of(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

var _ Capability = (*LangChainAgent)(nil)
