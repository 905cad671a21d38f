package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-loctree-translator/internal/pipeline"
)

// NewLoadCommand 创建 load 命令
func NewLoadCommand() *cobra.Command {
	loadCmd := &cobra.Command{
		Use:   "load <dump>",
		Short: "把备份转储中的译文写回输出树",
		Long: `load 读取一份备份转储（update --log-backups 写到 backup/ 下的 JSON），
把其中成功的译文按身份对回当前源树并写入输出树。
源里已不存在的条目自动跳过，命中的条目照常记入状态清单，
下次 update 不会重翻。

Examples:
  loctree load backup/translation_result_backup_20260314_092653.json`,
		Args: cobra.ExactArgs(1),
		RunE: runLoadCommand,
	}
	return loadCmd
}

func runLoadCommand(cmd *cobra.Command, args []string) error {
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

	summary, loadErr := p.Load(args[0])
	if summary != nil {
		pipeline.RenderSummary(cmd.OutOrStdout(), summary)
	}
	if loadErr != nil {
		return fmt.Errorf("载入转储失败: %w", loadErr)
	}
	return nil
}
