package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/weatherbot/internal/tools"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewGeminiClient("test-key", "gemini-1.5-flash", srv.URL+"/v1/models")
	require.NoError(t, err)
	return c
}

var weatherTool = tools.NewFunctionTool("get_weather_data", "weather", tools.JSONSchema{
	Type:       "object",
	Properties: map[string]*tools.JSONSchema{"location": {Type: "string"}},
	Required:   []string{"location"},
})

func TestGenerateSendsExpectedPayload(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hace sol en Madrid"}]},"finishReason":"STOP","safetyRatings":[{"category":"HARM_CATEGORY_HARASSMENT","probability":"NEGLIGIBLE"}]}]}`)
	})

	res, err := c.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "system prompt"},
		{Role: RoleAssistant, Content: "Entendido"},
		{Role: RoleFunction, Content: `{"success":true}`},
		{Role: RoleUser, Content: "¿Qué tiempo hace?"},
	}, nil, []tools.Tool{weatherTool})
	require.NoError(t, err)

	assert.Equal(t, "Hace sol en Madrid", res.Content)
	assert.Nil(t, res.FunctionCall)
	assert.Equal(t, "STOP", res.FinishReason)
	require.Len(t, res.SafetyRatings, 1)
	assert.Equal(t, EstimateTokens("Hace sol en Madrid"), res.TokensUsed)

	contents := captured["contents"].([]any)
	require.Len(t, contents, 4)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Equal(t, "user", contents[2].(map[string]any)["role"], "function turns are sent as user text")

	cfg := captured["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.7, cfg["temperature"], 0.0001)
	assert.Equal(t, 40.0, cfg["topK"])
	assert.InDelta(t, 0.95, cfg["topP"], 0.0001)
	assert.Equal(t, 1024.0, cfg["maxOutputTokens"])

	safety := captured["safetySettings"].([]any)
	require.Len(t, safety, 4)
	for _, s := range safety {
		assert.Equal(t, "BLOCK_MEDIUM_AND_ABOVE", s.(map[string]any)["threshold"])
	}

	toolsSent := captured["tools"].([]any)
	decls := toolsSent[0].(map[string]any)["functionDeclarations"].([]any)
	assert.Equal(t, "get_weather_data", decls[0].(map[string]any)["name"])
}

func TestGenerateOmitsToolsWhenNoneGiven(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	})

	res, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hola"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "STOP", res.FinishReason, "missing finish reason defaults to STOP")
	_, hasTools := captured["tools"]
	assert.False(t, hasTools)
}

func TestGenerateReturnsFunctionCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather_data","args":{"location":"Barcelona","forecast_days":2}}},{"text":"ignored"}]}}]}`)
	})

	res, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "clima Barcelona"}}, nil, []tools.Tool{weatherTool})
	require.NoError(t, err)
	require.NotNil(t, res.FunctionCall)
	assert.Equal(t, "get_weather_data", res.FunctionCall.Function.Name)
	assert.Empty(t, res.Content)

	args, err := res.FunctionCall.Args()
	require.NoError(t, err)
	assert.Equal(t, "Barcelona", args["location"])
	assert.Equal(t, 2.0, args["forecast_days"])
}

func TestGenerateAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	})

	_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hola"}}, nil, nil)
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "API key not valid", apiErr.Message)
}

func TestGenerateInvalidResponseFormat(t *testing.T) {
	for name, body := range map[string]string{
		"no candidates": `{"candidates":[]}`,
		"no parts":      `{"candidates":[{"content":{"parts":[]}}]}`,
		"not json":      `<html>`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hola"}}, nil, nil)
			assert.True(t, errors.Is(err, ErrInvalidResponseFormat))
		})
	}
}

func TestTransportErrorDoesNotExposeKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/v1/models"
	srv.Close()

	c, err := NewGeminiClient("SECRET-KEY-123", "gemini-1.5-flash", base)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hola"}}, nil, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.NotContains(t, err.Error(), "key=")
	assert.Contains(t, err.Error(), "gemini-1.5-flash")

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestTransportErrorKeepsContextCause(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, []Message{{Role: RoleUser, Content: "hola"}}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "test-key")
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient("", "", "")
	assert.Error(t, err)

	c, err := NewGeminiClient("k", "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, c.Model())
	assert.Equal(t, DefaultGeminiBaseURL, c.BaseURL())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 3, EstimateTokens("hola mundo"))
	assert.Equal(t, 4, EstimateTokens("hace mucho calor"))
	assert.Equal(t, 6, EstimateTokens("Hace 25 grados en Madrid!"), "digits are not words")
}

func TestExtractJSON(t *testing.T) {
	type intent struct {
		Location     string `json:"location"`
		QueryType    string `json:"query_type"`
		ForecastDays int    `json:"forecast_days"`
	}

	tests := []struct {
		name string
		in   string
		ok   bool
		loc  string
	}{
		{"bare", `{"location":"Madrid","query_type":"current"}`, true, "Madrid"},
		{"fenced", "```json\n{\"location\":\"Lima\",\"query_type\":\"forecast\",\"forecast_days\":3}\n```", true, "Lima"},
		{"embedded", `Claro, aquí está: {"location":"Quito"} espero que sirva`, true, "Quito"},
		{"prose only", "No sé de qué ciudad hablas", false, ""},
		{"empty", "  ", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got intent
			assert.Equal(t, tt.ok, ExtractJSON(tt.in, &got))
			assert.Equal(t, tt.loc, got.Location)
		})
	}
}
