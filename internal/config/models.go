package config

import (
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"

	"github.com/nerdneilsfield/go-loctree-translator/internal/jsonio"
)

// KeyringService 是保存 API Key 时使用的服务名
const KeyringService = "loctree"

// 模型接入方式
const (
	// APITypeOpenAI 直接构造 HTTP 请求，支持 thinking 扩展字段
	APITypeOpenAI = "openai"
	// APITypeOpenAISDK 走官方 openai-go SDK
	APITypeOpenAISDK = "openai-sdk"
)

// ModelConfig 单个模型的接入配置
type ModelConfig struct {
	Name           string  `json:"-"`
	APIKey         string  `json:"api_key"`
	BaseURL        string  `json:"base_url"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	EnableThinking bool    `json:"enable_thinking"`
	APIType        string  `json:"api_type"`
	MaxTokens      int     `json:"max_tokens"`
}

type modelsFile struct {
	Models map[string]ModelConfig `json:"models"`
}

// LoadModels 加载模型注册表
// 注册表不走 viper：viper 的键不区分大小写，会弄乱模型名
func LoadModels(path string) (map[string]ModelConfig, error) {
	var file modelsFile
	if err := jsonio.DecodeFile(path, &file); err != nil {
		return nil, err
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("模型注册表为空: %s", path)
	}

	models := make(map[string]ModelConfig, len(file.Models))
	for name, m := range file.Models {
		m.Name = name
		if m.APIType == "" {
			m.APIType = APITypeOpenAI
		}
		if m.APIType != APITypeOpenAI && m.APIType != APITypeOpenAISDK {
			return nil, fmt.Errorf("模型 %s 的 api_type 无效: %s", name, m.APIType)
		}
		if m.BaseURL == "" {
			return nil, fmt.Errorf("模型 %s 缺少 base_url", name)
		}
		if m.Model == "" {
			return nil, fmt.Errorf("模型 %s 缺少 model 字段", name)
		}
		if m.MaxTokens <= 0 {
			m.MaxTokens = 8192
		}
		models[name] = m
	}
	return models, nil
}

// ResolveAPIKey 返回模型的 API Key
// 配置里留空时从系统钥匙串取，账户名即模型名
func ResolveAPIKey(m ModelConfig) (string, error) {
	if m.APIKey != "" {
		return m.APIKey, nil
	}
	key, err := keyring.Get(KeyringService, m.Name)
	if err != nil {
		return "", fmt.Errorf("模型 %s 未配置 api_key 且钥匙串中没有记录: %w", m.Name, err)
	}
	return key, nil
}

// StoreAPIKey 把 API Key 写入系统钥匙串
func StoreAPIKey(modelName, key string) error {
	return keyring.Set(KeyringService, modelName, key)
}

// DeleteAPIKey 从系统钥匙串删除模型的 API Key
func DeleteAPIKey(modelName string) error {
	return keyring.Delete(KeyringService, modelName)
}

// ModelNames 返回按名称排序的模型名列表
func ModelNames(models map[string]ModelConfig) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
