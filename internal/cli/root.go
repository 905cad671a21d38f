package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
	"github.com/nerdneilsfield/go-loctree-translator/internal/logger"
)

var (
	// 命令行标志变量
	cfgFile   string // 配置文件路径
	debugMode bool   // 启用调试日志
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loctree",
		Short: "loctree 是面向游戏本地化 JSON 树的增量翻译工具",
		Long: `loctree 扫描游戏本地化 JSON 目录树，只把新增或改动的文本段交给大模型翻译，
未变动的段落沿用上一次的译文。支持术语表替换、按文件模式分派翻译策略、
黑名单过滤、备份转储恢复和翻译历史统计。

常用流程:
  # 增量翻译 input/<源语言> 到 output/<目标语言>
  loctree update

  # 先看看会翻哪些内容
  loctree update --dry-run

  # 从备份转储恢复译文
  loctree load backup/translation_result_backup_20260314_092653.json

  # 检查配置互相引用是否一致
  loctree validate`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.json", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试日志")

	rootCmd.AddCommand(NewUpdateCommand())
	rootCmd.AddCommand(NewLoadCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewKeysCommand())
	rootCmd.AddCommand(NewWatchCommand())

	return rootCmd
}

// loadEnv 按 --config 加载配置并初始化日志
func loadEnv() (*config.Config, *zap.Logger, error) {
	log := logger.NewLogger(debugMode)

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, log, fmt.Errorf("加载配置失败: %w", err)
	}
	if cfg.Debug && !debugMode {
		log = logger.NewLogger(true)
	}
	return cfg, log, nil
}
