// In file: internal/llm/gemini_types.go
package llm

import "github.com/dileep-u-k/weatherbot/internal/tools"

// --- API Data Structures ---

type generateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []geminiSafetySetting   `json:"safetySettings,omitempty"`
	Tools            []geminiTool            `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is either text or a function call.
type geminiPart struct {
	Text         *string             `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type partKind int

const (
	partEmpty partKind = iota
	partText
	partFunctionCall
)

func (p geminiPart) Kind() partKind {
	switch {
	case p.FunctionCall != nil:
		return partFunctionCall
	case p.Text != nil:
		return partText
	default:
		return partEmpty
	}
}

func textPart(s string) geminiPart {
	return geminiPart{Text: &s}
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopK            int32   `json:"topK"`
	TopP            float32 `json:"topP"`
	MaxOutputTokens int32   `json:"maxOutputTokens"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiTool struct {
	FunctionDeclarations []tools.Function `json:"functionDeclarations"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content       *geminiContent `json:"content"`
		FinishReason  string         `json:"finishReason"`
		SafetyRatings []SafetyRating `json:"safetyRatings"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// safetyCategories are all blocked at medium probability and above.
var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

const safetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"

func defaultSafetySettings() []geminiSafetySetting {
	out := make([]geminiSafetySetting, 0, len(safetyCategories))
	for _, c := range safetyCategories {
		out = append(out, geminiSafetySetting{Category: c, Threshold: safetyThreshold})
	}
	return out
}
