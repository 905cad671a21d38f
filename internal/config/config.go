package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FilePaths 输入输出及字体目录
type FilePaths struct {
	InputDir  string `mapstructure:"input_dir"`
	OutputDir string `mapstructure:"output_dir"`
	FontDir   string `mapstructure:"font_dir"`
}

// TranslationSettings 翻译运行参数
type TranslationSettings struct {
	OriginLanguage   string `mapstructure:"origin_language"`
	TargetLanguage   string `mapstructure:"target_language"`
	MaxWorkers       int    `mapstructure:"max_workers"`
	MaxCharsPerBatch int    `mapstructure:"max_chars_per_batch"`
	MaxRetries       int    `mapstructure:"max_retries"`
	// 单次请求的超时秒数，重试不共享
	Timeout               int      `mapstructure:"timeout"`
	StripFilenamePrefixes []string `mapstructure:"strip_filename_prefixes"`
}

// Options 行为开关
type Options struct {
	ConfirmBeforeTranslation bool `mapstructure:"confirm_before_translation"`
	KeepBackupFiles          bool `mapstructure:"keep_backup_files"`
}

// ConfigFiles 外部注册表文件，相对 config.json 所在目录解析
type ConfigFiles struct {
	Models             string `mapstructure:"models"`
	TranslationConfigs string `mapstructure:"translation_configs"`
	DefaultTerminology string `mapstructure:"default_terminology"`
	Blacklist          string `mapstructure:"blacklist"`
}

// Config 汇总 config.json 的全部配置
type Config struct {
	FilePaths           FilePaths           `mapstructure:"file_paths"`
	TranslationSettings TranslationSettings `mapstructure:"translation_settings"`
	Options             Options             `mapstructure:"options"`
	ConfigFiles         ConfigFiles         `mapstructure:"config_files"`
	Debug               bool                `mapstructure:"debug"`

	// config.json 所在目录，相对路径都从这里出发
	BaseDir string `mapstructure:"-"`
}

// LoadConfig 从文件加载配置，环境变量 LOCTREE_* 可覆盖单项
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("json")
	}

	v.SetEnvPrefix("LOCTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件时退回默认值，其余错误直接失败
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.BaseDir = filepath.Dir(used)
	} else {
		config.BaseDir = "."
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults 设置与原工具一致的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("file_paths.input_dir", "input")
	v.SetDefault("file_paths.output_dir", "output")
	v.SetDefault("file_paths.font_dir", "Font")

	v.SetDefault("translation_settings.origin_language", "jp")
	v.SetDefault("translation_settings.target_language", "zh-cn")
	v.SetDefault("translation_settings.max_workers", 4)
	v.SetDefault("translation_settings.max_chars_per_batch", 2200)
	v.SetDefault("translation_settings.max_retries", 3)
	v.SetDefault("translation_settings.timeout", 60)
	v.SetDefault("translation_settings.strip_filename_prefixes", []string{"KR_", "JP_", "EN_"})

	v.SetDefault("options.confirm_before_translation", true)
	v.SetDefault("options.keep_backup_files", true)

	v.SetDefault("config_files.models", "models.json")
	v.SetDefault("config_files.translation_configs", "translation_configs.json")
	v.SetDefault("config_files.default_terminology", "terminology.json")
	v.SetDefault("config_files.blacklist", "BlackList.json")

	v.SetDefault("debug", false)
}

// Validate 检查数值参数的合法范围
func (c *Config) Validate() error {
	ts := c.TranslationSettings
	if ts.MaxWorkers < 1 {
		return fmt.Errorf("translation_settings.max_workers 必须大于 0，当前为 %d", ts.MaxWorkers)
	}
	if ts.MaxCharsPerBatch < 1 {
		return fmt.Errorf("translation_settings.max_chars_per_batch 必须大于 0，当前为 %d", ts.MaxCharsPerBatch)
	}
	if ts.MaxRetries < 0 {
		return fmt.Errorf("translation_settings.max_retries 不能为负数，当前为 %d", ts.MaxRetries)
	}
	if ts.Timeout < 1 {
		return fmt.Errorf("translation_settings.timeout 必须大于 0，当前为 %d", ts.Timeout)
	}
	if ts.OriginLanguage == "" {
		return fmt.Errorf("translation_settings.origin_language 不能为空")
	}
	if ts.TargetLanguage == "" {
		return fmt.Errorf("translation_settings.target_language 不能为空")
	}
	return nil
}

// ResolvePath 把相对路径解析到 config.json 所在目录
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// InputRoot 返回源语言目录 <input_dir>/<origin_language>
func (c *Config) InputRoot() string {
	return filepath.Join(c.ResolvePath(c.FilePaths.InputDir), c.TranslationSettings.OriginLanguage)
}

// OutputRoot 返回目标语言目录 <output_dir>/<target_language>
func (c *Config) OutputRoot() string {
	return filepath.Join(c.ResolvePath(c.FilePaths.OutputDir), c.TranslationSettings.TargetLanguage)
}
