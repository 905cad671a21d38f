package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
)

// NewValidateCommand 创建 validate 命令
func NewValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "检查模型、策略、术语表之间的引用一致性",
		Long: `validate 逐个加载 config.json 引用的模型表、翻译策略、默认术语表和黑名单，
再交叉校验策略与模型注册表：引用了未注册模型算错误，优先级撞车、
缺术语表、API Key 为空、模型没人引用只算警告。

Examples:
  loctree validate
  loctree -c conf/config.json validate`,
		Args: cobra.NoArgs,
		RunE: runValidateCommand,
	}
	return validateCmd
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	models, err := config.LoadModels(cfg.ResolvePath(cfg.ConfigFiles.Models))
	if err != nil {
		return fmt.Errorf("加载模型配置失败: %w", err)
	}
	defaultTerms, err := config.LoadDefaultTerminology(cfg.ResolvePath(cfg.ConfigFiles.DefaultTerminology))
	if err != nil {
		return fmt.Errorf("加载默认术语表失败: %w", err)
	}
	strategies, err := config.LoadStrategies(cfg.ResolvePath(cfg.ConfigFiles.TranslationConfigs), cfg.ResolvePath, defaultTerms)
	if err != nil {
		return fmt.Errorf("加载翻译策略失败: %w", err)
	}
	if _, err := config.LoadBlacklist(cfg.ResolvePath(cfg.ConfigFiles.Blacklist)); err != nil {
		return fmt.Errorf("加载黑名单失败: %w", err)
	}

	out := cmd.OutOrStdout()
	problems := config.ValidateRegistry(strategies, models)
	if len(problems) == 0 {
		color.New(color.FgGreen, color.Bold).Fprintf(out, "配置检查通过：%d 个模型，%d 条策略。\n",
			len(models), len(strategies))
		return nil
	}

	for _, problem := range problems {
		switch problem.Severity {
		case "error":
			fmt.Fprintf(out, "%s %s\n", color.RedString("[错误]"), problem.Message)
		default:
			fmt.Fprintf(out, "%s %s\n", color.YellowString("[警告]"), problem.Message)
		}
	}

	if config.HasErrors(problems) {
		return fmt.Errorf("配置校验未通过，共 %d 条问题", len(problems))
	}
	fmt.Fprintf(out, "配置可用，共 %d 条警告。\n", len(problems))
	return nil
}
