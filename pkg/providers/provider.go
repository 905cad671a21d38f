package providers

import (
	"context"
	"time"
)

// Config 聊天端点配置
type Config struct {
	// API配置
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// 模型参数
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	EnableThinking bool    `json:"enable_thinking,omitempty"`

	// 超时（单次请求；重试由调用方负责）
	Timeout time.Duration `json:"timeout"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Temperature: 0.3,
		MaxTokens:   8192,
		Timeout:     5 * time.Minute,
		Headers:     make(map[string]string),
	}
}

// Request 一次聊天补全请求
type Request struct {
	// SystemPrompt 策略提示词加术语指令
	SystemPrompt string `json:"system_prompt"`
	// UserContent 待翻译内容（JSON 数组文本）
	UserContent string `json:"user_content"`
}

// Response 聊天补全响应
type Response struct {
	Text      string `json:"text"`
	Model     string `json:"model,omitempty"`
	TokensIn  int    `json:"tokens_in,omitempty"`
	TokensOut int    `json:"tokens_out,omitempty"`
}

// Provider 聊天端点接口。实现不做内部重试，
// 重试与退避统一由派发器掌握。
type Provider interface {
	// Chat 执行一次聊天补全
	Chat(ctx context.Context, req *Request) (*Response, error)

	// Name 获取提供商名称
	Name() string
}

// Error 提供商错误
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// IsRetryable 判断错误是否可重试
func (e *Error) IsRetryable() bool {
	if e.Status == 429 || e.Status >= 500 {
		return true
	}
	switch e.Code {
	case "rate_limit", "timeout", "server_error":
		return true
	default:
		return false
	}
}

// NewError 创建提供商错误
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}
