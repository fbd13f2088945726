// Package llm provides streaming chat completion clients for the supported
// providers.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

// ErrUnknownProvider is returned when no client is configured for a provider.
var ErrUnknownProvider = errors.New("llm provider not configured")

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []ChatMessage
	MaxTokens int
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// CompleteStream sends a streaming completion request. Tokens are passed
	// to callback as they arrive; a callback error aborts the stream.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// DefaultModel is used when a request names no model.
	DefaultModel() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, ErrUnknownProvider
	}
}

// Router selects a client by provider name.
type Router struct {
	clients  map[Provider]Client
	fallback Provider
}

// NewRouter creates a router. fallback is used for requests that name no
// provider.
func NewRouter(fallback Provider, clients ...Client) *Router {
	r := &Router{
		clients:  make(map[Provider]Client, len(clients)),
		fallback: fallback,
	}
	for _, c := range clients {
		r.clients[Provider(c.Name())] = c
	}
	return r
}

// Get returns the client for provider, or the fallback when provider is
// empty.
func (r *Router) Get(provider string) (Client, error) {
	p := Provider(strings.ToLower(provider))
	if p == "" {
		p = r.fallback
	}
	c, ok := r.clients[p]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return c, nil
}

// Len returns the number of configured clients.
func (r *Router) Len() int {
	return len(r.clients)
}

// FromMessages converts stored conversation messages into provider history.
// System messages are joined into the returned system prompt. Failed and
// empty messages are skipped.
func FromMessages(msgs []model.Message) (system string, out []ChatMessage) {
	var sys []string
	for _, m := range msgs {
		if m.Error != nil || m.Content == "" {
			continue
		}
		if m.Role == model.RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		out = append(out, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return strings.Join(sys, "\n\n"), out
}
