package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nerdneilsfield/go-loctree-translator/pkg/providers"
)

// Provider 直接走 HTTP 的 OpenAI 兼容提供商。
// 保留完整的载荷控制，支持部分端点的 thinking 扩展字段。
type Provider struct {
	config     providers.Config
	httpClient *http.Client
}

// New 创建新的OpenAI提供商
func New(config providers.Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "https://api.openai.com/v1"
	}

	return &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name 获取提供商名称
func (p *Provider) Name() string {
	return "openai"
}

// Chat 执行一次聊天补全
func (p *Provider) Chat(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	chatReq := ChatRequest{
		Model: p.config.Model,
		Messages: []Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserContent},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		Thinking:    p.config.EnableThinking,
	}

	resp, err := p.chat(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, providers.NewError("empty_response", "no choices returned")
	}

	return &providers.Response{
		Text:      resp.Choices[0].Message.Content,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

// chat 执行聊天请求
func (p *Provider) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", completionsURL(p.config.APIEndpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	for k, v := range p.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var apiErr APIError
		if json.Unmarshal(errBody, &apiErr) == nil && apiErr.ErrorInfo.Message != "" {
			return nil, &providers.Error{
				Code:    apiErr.ErrorInfo.Code,
				Message: apiErr.ErrorInfo.Message,
				Status:  resp.StatusCode,
			}
		}
		return nil, &providers.Error{
			Code:    "http_error",
			Message: fmt.Sprintf("API error: %s", resp.Status),
			Status:  resp.StatusCode,
		}
	}

	defer resp.Body.Close()

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &chatResp, nil
}

// completionsURL 端点路径已含 /chat/completions 时原样使用，否则补上
func completionsURL(endpoint string) string {
	trimmed := strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(trimmed, "/chat/completions") {
		return trimmed
	}
	return trimmed + "/chat/completions"
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Thinking    bool      `json:"thinking,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// ChatResponse 聊天响应
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// APIError API错误
type APIError struct {
	ErrorInfo struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return e.ErrorInfo.Message
}
