package domain

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single completion call. Zero values fall back to the
// provider's configured model, token budget and temperature.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

type ChatResponse struct {
	Model       string
	Content     string
	TotalTokens int
}

//go:generate mockgen -destination=../mocks/provider_mock.go -package=mocks github.com/authorstack/authorstack/internal/ai/domain Provider

// Provider is a chat-completions backend.
type Provider interface {
	Configured() bool
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
