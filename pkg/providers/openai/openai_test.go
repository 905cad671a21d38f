package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-loctree-translator/pkg/providers"
)

func chatFixture(content string) ChatResponse {
	resp := ChatResponse{ID: "test-id", Model: "deepseek-chat"}
	resp.Choices = []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	}{
		{Index: 0, Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"},
	}
	resp.Usage.PromptTokens = 10
	resp.Usage.CompletionTokens = 5
	resp.Usage.TotalTokens = 15
	return resp
}

func TestProviderChat(t *testing.T) {
	var captured ChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture(`[{"id": "E001", "text": "堂吉诃德"}]`))
	}))
	defer server.Close()

	config := providers.DefaultConfig()
	config.APIKey = "test-api-key"
	config.APIEndpoint = server.URL
	config.Model = "deepseek-chat"
	config.Temperature = 0.7
	config.EnableThinking = true

	resp, err := New(config).Chat(context.Background(), &providers.Request{
		SystemPrompt: "翻译提示",
		UserContent:  `[{"id": "E001", "text": "ドンキホーテ"}]`,
	})
	require.NoError(t, err)

	assert.Equal(t, `[{"id": "E001", "text": "堂吉诃德"}]`, resp.Text)
	assert.Equal(t, "deepseek-chat", resp.Model)
	assert.Equal(t, 10, resp.TokensIn)
	assert.Equal(t, 5, resp.TokensOut)

	assert.Equal(t, "deepseek-chat", captured.Model)
	assert.InDelta(t, 0.7, captured.Temperature, 1e-9)
	assert.Equal(t, 8192, captured.MaxTokens)
	assert.True(t, captured.Thinking)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "翻译提示", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestProviderChatThinkingOmitted(t *testing.T) {
	var rawBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rawBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("ok"))
	}))
	defer server.Close()

	config := providers.DefaultConfig()
	config.APIEndpoint = server.URL
	config.Model = "gpt-4o"

	_, err := New(config).Chat(context.Background(), &providers.Request{SystemPrompt: "s", UserContent: "u"})
	require.NoError(t, err)

	_, present := rawBody["thinking"]
	assert.False(t, present)
}

func TestProviderErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiErr := APIError{}
		apiErr.ErrorInfo.Message = "Invalid API key"
		apiErr.ErrorInfo.Type = "invalid_request_error"
		apiErr.ErrorInfo.Code = "invalid_api_key"

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(apiErr)
	}))
	defer server.Close()

	config := providers.DefaultConfig()
	config.APIKey = "invalid-key"
	config.APIEndpoint = server.URL
	config.Model = "deepseek-chat"

	_, err := New(config).Chat(context.Background(), &providers.Request{SystemPrompt: "s", UserContent: "u"})
	require.Error(t, err)

	var provErr *providers.Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "Invalid API key", provErr.Message)
	assert.Equal(t, http.StatusUnauthorized, provErr.Status)
	assert.False(t, provErr.IsRetryable())
}

func TestProviderServerErrorRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	config := providers.DefaultConfig()
	config.APIEndpoint = server.URL
	config.Model = "m"

	_, err := New(config).Chat(context.Background(), &providers.Request{SystemPrompt: "s", UserContent: "u"})
	require.Error(t, err)

	var provErr *providers.Error
	require.ErrorAs(t, err, &provErr)
	assert.True(t, provErr.IsRetryable())
}

func TestCompletionsURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"https://gw.example.com/v1/chat/completions", "https://gw.example.com/v1/chat/completions"},
		{"https://gw.example.com/v1/chat/completions/", "https://gw.example.com/v1/chat/completions"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, completionsURL(tt.endpoint), tt.endpoint)
	}
}

func TestSDKProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "test-id",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "译文"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	config := providers.DefaultConfig()
	config.APIKey = "test-api-key"
	config.APIEndpoint = server.URL
	config.Model = "gpt-4o-mini"

	resp, err := NewSDK(config).Chat(context.Background(), &providers.Request{
		SystemPrompt: "翻译提示",
		UserContent:  "[]",
	})
	require.NoError(t, err)

	assert.Equal(t, "译文", resp.Text)
	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, 3, resp.TokensOut)
}
