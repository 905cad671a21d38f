package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nerdneilsfield/go-loctree-translator/internal/jsonio"
)

// terminologyFile JSON/TOML 形态都带 terminology 包装键
type terminologyFile struct {
	Terminology map[string]string `json:"terminology" toml:"terminology" yaml:"terminology"`
}

// LoadTerminology 加载术语表，按扩展名区分 JSON/YAML/TOML
// JSON 与 YAML 同时接受 {"terminology": {...}} 包装和扁平映射两种写法
func LoadTerminology(path string) (map[string]string, error) {
	data, err := jsonio.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		var wrapped terminologyFile
		if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Terminology) > 0 {
			return wrapped.Terminology, nil
		}
		var flat map[string]string
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("解析术语表失败 %s: %w", path, err)
		}
		return flat, nil
	case ".yaml", ".yml":
		var wrapped terminologyFile
		if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Terminology) > 0 {
			return wrapped.Terminology, nil
		}
		var flat map[string]string
		if err := yaml.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("解析术语表失败 %s: %w", path, err)
		}
		return flat, nil
	case ".toml":
		var wrapped terminologyFile
		if err := toml.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("解析术语表失败 %s: %w", path, err)
		}
		return wrapped.Terminology, nil
	default:
		return nil, fmt.Errorf("不支持的术语表格式 %s", ext)
	}
}

// LoadDefaultTerminology 加载默认术语表，文件不存在时返回空映射
func LoadDefaultTerminology(path string) (map[string]string, error) {
	terms, err := LoadTerminology(path)
	if err != nil {
		if isNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return terms, nil
}
