package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nerdneilsfield/go-loctree-translator/pkg/providers"
)

// SDKProvider 基于官方 SDK 的提供商，
// 用于不需要 thinking 扩展字段的标准端点。
type SDKProvider struct {
	config providers.Config
	client openai.Client
}

var _ providers.Provider = (*SDKProvider)(nil)

// NewSDK 创建基于官方SDK的提供商
func NewSDK(config providers.Config) *SDKProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}

	if config.APIEndpoint != "" {
		// SDK 自己拼 chat/completions 路径
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(strings.TrimRight(config.APIEndpoint, "/"), "/chat/completions")))
	}

	for k, v := range config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &SDKProvider{
		config: config,
		client: openai.NewClient(opts...),
	}
}

// Name 获取提供商名称
func (p *SDKProvider) Name() string {
	return "openai-sdk"
}

// Chat 执行一次聊天补全
func (p *SDKProvider) Chat(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserContent),
		},
		Model: openai.ChatModel(p.config.Model),
	}

	if p.config.Temperature > 0 {
		params.Temperature = openai.Float(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.config.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, providers.NewError("empty_response", "no choices returned")
	}

	return &providers.Response{
		Text:      completion.Choices[0].Message.Content,
		Model:     completion.Model,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
	}, nil
}
