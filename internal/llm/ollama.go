package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama calls a local Ollama server through langchaingo. One langchaingo
// client is kept per (model, json) pair since both are client options.
type Ollama struct {
	serverURL string

	mu      sync.Mutex
	clients map[ollamaKey]*ollama.LLM
}

type ollamaKey struct {
	model string
	json  bool
}

// NewOllama creates a backend for the server at serverURL; empty means the
// langchaingo default (http://localhost:11434).
func NewOllama(serverURL string) *Ollama {
	return &Ollama{serverURL: serverURL, clients: make(map[ollamaKey]*ollama.LLM)}
}

func (o *Ollama) client(model string, json bool) (*ollama.LLM, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := ollamaKey{model: model, json: json}
	if c, ok := o.clients[key]; ok {
		return c, nil
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if o.serverURL != "" {
		opts = append(opts, ollama.WithServerURL(o.serverURL))
	}
	if json {
		opts = append(opts, ollama.WithFormat("json"))
	}
	c, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	o.clients[key] = c
	return c, nil
}

func (o *Ollama) Generate(ctx context.Context, model string, req Request) (string, error) {
	c, err := o.client(model, req.JSON)
	if err != nil {
		return "", fmt.Errorf("ollama client: %w", err)
	}

	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	resp, err := c.GenerateContent(ctx, msgs, llms.WithTemperature(float64(req.Temperature)))
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ollama returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
