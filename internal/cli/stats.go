package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-loctree-translator/internal/stats"
)

var (
	// stats 命令的标志
	recentLimit int // 显示最近几次运行
)

// NewStatsCommand 创建 stats 命令
func NewStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "查看翻译运行历史与累计统计",
		Long: `stats 读取工作目录下的 ` + stats.DefaultFileName + `，
展示最近的运行记录（时间、语言对、单元数、token 消耗、状态）和累计数据。

Examples:
  # 最近 10 次运行
  loctree stats

  # 最近 30 次
  loctree stats --limit 30`,
		Args: cobra.NoArgs,
		RunE: runStatsCommand,
	}

	statsCmd.Flags().IntVar(&recentLimit, "limit", stats.DefaultRecentRuns, "显示最近几次运行")
	return statsCmd
}

func runStatsCommand(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	db, err := stats.Open(cfg.ResolvePath(stats.DefaultFileName), log)
	if err != nil {
		return fmt.Errorf("打开统计数据库失败: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	records, err := db.RecentRuns(recentLimit)
	if err != nil {
		return err
	}
	totals, err := db.AggregateTotals()
	if err != nil {
		return err
	}

	stats.RenderRuns(cmd.OutOrStdout(), records, totals)
	return nil
}
