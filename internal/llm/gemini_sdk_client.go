// In file: internal/llm/gemini_sdk_client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dileep-u-k/weatherbot/internal/tools"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiSDKClient is the alternate transport built on Google's Go SDK.
// A model handle is created per call, so concurrent calls never share
// mutable model settings.
type GeminiSDKClient struct {
	client *genai.Client
	model  string
}

var _ LLMClient = (*GeminiSDKClient)(nil)

func NewGeminiSDKClient(ctx context.Context, apiKey, model string) (*GeminiSDKClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiSDKClient{client: client, model: model}, nil
}

func (c *GeminiSDKClient) Close() error {
	return c.client.Close()
}

func (c *GeminiSDKClient) Generate(ctx context.Context, messages []Message, config *GenerationConfig, availableTools []tools.Tool) (*GenerationResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages to send")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	model := c.configuredModel(config, availableTools)
	chat := model.StartChat()
	chat.History = toSDKHistory(messages[:len(messages)-1])

	last := messages[len(messages)-1]
	resp, err := chat.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return parseSDKResponse(resp)
}

// configuredModel applies sampling, safety and tool settings to a fresh
// model handle.
func (c *GeminiSDKClient) configuredModel(config *GenerationConfig, availableTools []tools.Tool) *genai.GenerativeModel {
	if config == nil {
		config = DefaultGenerationConfig()
	}
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(config.Temperature)
	model.SetTopK(config.TopK)
	model.SetTopP(config.TopP)
	model.SetMaxOutputTokens(config.MaxOutputTokens)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}
	if len(availableTools) > 0 {
		model.Tools = toSDKTools(availableTools)
	}
	return model
}

// toSDKTools converts our tool definitions to the SDK's format.
func toSDKTools(toolsToConvert []tools.Tool) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(toolsToConvert))
	for _, t := range toolsToConvert {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema maps our JSONSchema onto genai.Schema. The SDK schema has no
// defaults or bounds; those stay in the descriptions.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = convertSchema(*v)
		}
	}
	return out
}

func toSDKHistory(messages []Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history
}

func parseSDKResponse(resp *genai.GenerateContentResponse) (*GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrInvalidResponseFormat
	}
	candidate := resp.Candidates[0]

	result := &GenerationResult{FinishReason: finishReasonName(candidate.FinishReason)}
	for _, r := range candidate.SafetyRatings {
		result.SafetyRatings = append(result.SafetyRatings, SafetyRating{
			Category:    r.Category.String(),
			Probability: r.Probability.String(),
		})
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.FunctionCall:
			call, err := tools.NewToolCall("gemini-call-"+v.Name, v.Name, v.Args)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
			}
			result.FunctionCall = call
			return result, nil
		case genai.Text:
			text.WriteString(string(v))
		}
	}
	result.Content = text.String()
	result.TokensUsed = EstimateTokens(result.Content)
	return result, nil
}

// finishReasonName returns the REST spelling so both transports agree.
func finishReasonName(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonMaxTokens:
		return "MAX_TOKENS"
	case genai.FinishReasonSafety:
		return "SAFETY"
	case genai.FinishReasonRecitation:
		return "RECITATION"
	case genai.FinishReasonOther:
		return "OTHER"
	default:
		return "STOP"
	}
}
