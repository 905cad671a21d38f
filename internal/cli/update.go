package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nerdneilsfield/go-loctree-translator/internal/pipeline"
)

var (
	// update 命令的标志
	assumeYes  bool // 跳过翻译前确认
	dryRun     bool // 预演模式
	logBackups bool // 派发前转储备份
)

// NewUpdateCommand 创建 update 命令
func NewUpdateCommand() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "增量翻译输入树中新增或改动的文本",
		Long: `update 扫描 <input_dir>/<origin_language> 下的 JSON 文件，对照输出树的状态清单
找出新增或改动的文本段，经术语替换后分批交给配置的模型翻译，再写回
<output_dir>/<target_language>，目录结构与源树一致。

Examples:
  # 正常增量更新
  loctree update

  # 跳过交互确认（CI 或脚本里用）
  loctree update --yes

  # 只统计不派发
  loctree update --dry-run

  # 派发前把增量、全量原文和旧译各转储一份
  loctree update --log-backups`,
		Args: cobra.NoArgs,
		RunE: runUpdateCommand,
	}

	updateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "跳过翻译前确认")
	updateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "只做扫描与分批，不调用模型")
	updateCmd.Flags().BoolVar(&logBackups, "log-backups", false, "派发前把增量/全量/旧译转储到 backup/")

	return updateCmd
}

func runUpdateCommand(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Close()
	}()

	summary, runErr := p.Run(cmd.Context(), pipeline.RunOptions{
		Yes:         assumeYes,
		DryRun:      dryRun,
		LogBackups:  logBackups,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
		Stdin:       cmd.InOrStdin(),
		Stdout:      cmd.OutOrStdout(),
	})
	if summary != nil {
		pipeline.RenderSummary(cmd.OutOrStdout(), summary)
	}
	if runErr != nil {
		return fmt.Errorf("翻译运行失败: %w", runErr)
	}
	return nil
}
