// In file: internal/llm/gemini_client.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/tools"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1/models"
	DefaultGeminiModel   = "gemini-1.5-flash"

	defaultTimeout = 30 * time.Second
)

// GeminiClient calls the generateContent REST endpoint directly. Each call is
// a single attempt; failures are returned to the caller as they happen.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ LLMClient = (*GeminiClient)(nil)

func NewGeminiClient(apiKey, model, baseURL string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Model reports the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// BaseURL reports the configured endpoint root.
func (c *GeminiClient) BaseURL() string { return c.baseURL }

func (c *GeminiClient) Generate(ctx context.Context, messages []Message, config *GenerationConfig, availableTools []tools.Tool) (*GenerationResult, error) {
	payload, err := buildRequestPayload(messages, config, availableTools)
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request payload: %w", err)
	}
	body, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	return parseGeminiResponse(body)
}

// --- Helper Functions ---

func buildRequestPayload(messages []Message, config *GenerationConfig, availableTools []tools.Tool) ([]byte, error) {
	if config == nil {
		config = DefaultGenerationConfig()
	}
	req := generateContentRequest{
		Contents: toGeminiContents(messages),
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     config.Temperature,
			TopK:            config.TopK,
			TopP:            config.TopP,
			MaxOutputTokens: config.MaxOutputTokens,
		},
		SafetySettings: defaultSafetySettings(),
	}
	if len(availableTools) > 0 {
		decls := make([]tools.Function, 0, len(availableTools))
		for _, t := range availableTools {
			decls = append(decls, t.Function)
		}
		req.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return json.Marshal(req)
}

// toGeminiContents maps roles onto Gemini's two: assistant turns become
// "model", everything else is sent as "user".
func toGeminiContents(messages []Message) []geminiContent {
	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{textPart(msg.Content)},
		})
	}
	return contents
}

func (c *GeminiClient) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error prints the request URL, and the URL carries the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("gemini request to %s/%s failed: %w", c.baseURL, c.model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: "Unknown error"}
		var eb geminiErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			apiErr.Message = eb.Error.Message
		}
		log.Printf("❌ Gemini API error: %v", apiErr)
		return nil, apiErr
	}
	return body, nil
}

// parseGeminiResponse reads the first candidate. A function-call part wins
// over any text; otherwise the text parts are concatenated.
func parseGeminiResponse(body []byte) (*GenerationResult, error) {
	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrInvalidResponseFormat
	}

	candidate := resp.Candidates[0]
	result := &GenerationResult{
		FinishReason:  candidate.FinishReason,
		SafetyRatings: candidate.SafetyRatings,
	}
	if result.FinishReason == "" {
		result.FinishReason = "STOP"
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch part.Kind() {
		case partFunctionCall:
			call, err := tools.NewToolCall("gemini-call-"+part.FunctionCall.Name, part.FunctionCall.Name, part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
			}
			result.FunctionCall = call
			return result, nil
		case partText:
			text.WriteString(*part.Text)
		}
	}

	result.Content = text.String()
	result.TokensUsed = EstimateTokens(result.Content)
	return result, nil
}
