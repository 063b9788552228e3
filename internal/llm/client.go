// In file: internal/llm/client.go

// Package llm talks to Gemini. It offers a REST transport and an SDK
// transport behind one LLMClient interface, plus the small parsing helpers
// the assistant needs (token estimates, lenient JSON extraction).
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/dileep-u-k/weatherbot/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleFunction carries a function result back to the model. Gemini has
	// no such role, so clients send it as user text.
	RoleFunction Role = "function"
)

// Message represents a single message in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationConfig controls sampling. Nil means DefaultGenerationConfig.
type GenerationConfig struct {
	Temperature     float32
	TopK            int32
	TopP            float32
	MaxOutputTokens int32
}

// DefaultGenerationConfig returns the tuned settings used for every call.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

// SafetyRating is one entry of a candidate's safety assessment.
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

// GenerationResult holds the output of one model call. Exactly one of Content
// or FunctionCall is meaningful.
type GenerationResult struct {
	Content       string
	FunctionCall  *tools.ToolCall
	FinishReason  string
	SafetyRatings []SafetyRating
	// TokensUsed is an estimate from the reply text; see EstimateTokens.
	TokensUsed int
}

// =================================================================================
// Errors
// =================================================================================

// ErrInvalidResponseFormat means the model replied 2xx without a usable part.
var ErrInvalidResponseFormat = errors.New("invalid response format from Gemini API")

// APIError is a non-2xx reply from the model endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Gemini API request failed: %s (Status: %d)", e.Message, e.StatusCode)
}

// =================================================================================
// LLM Client Interface
// =================================================================================

// LLMClient is implemented by every Gemini transport.
type LLMClient interface {
	// Generate sends the whole conversation and returns a single result.
	// availableTools may be empty, in which case no function declarations
	// are sent.
	Generate(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (*GenerationResult, error)
}
