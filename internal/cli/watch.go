package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/pipeline"
)

var (
	// watch 命令的标志
	watchDebounce time.Duration // 事件去抖窗口
)

// NewWatchCommand 创建 watch 命令
func NewWatchCommand() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "监视输入树变动并自动增量翻译",
		Long: `watch 监视 <input_dir>/<origin_language> 下的所有目录，文件变动停歇一个
去抖窗口后自动执行一次增量更新（相当于 loctree update --yes）。
启动时先跑一轮，追平监视前积累的改动。Ctrl+C 退出。

Examples:
  loctree watch
  loctree watch --debounce 5s`,
		Args: cobra.NoArgs,
		RunE: runWatchCommand,
	}

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "变动停歇多久后触发更新")
	return watchCmd
}

func runWatchCommand(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监视器失败: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	root := cfg.InputRoot()
	if err := watchTree(watcher, root); err != nil {
		return err
	}
	log.Info("watching input tree",
		zap.String("root", root),
		zap.Duration("debounce", watchDebounce))

	ctx := cmd.Context()
	runOnce := func() {
		p, err := pipeline.New(cfg, log)
		if err != nil {
			log.Error("初始化流水线失败", zap.Error(err))
			return
		}
		defer func() {
			_ = p.Close()
		}()

		summary, runErr := p.Run(ctx, pipeline.RunOptions{Yes: true})
		if summary != nil {
			pipeline.RenderSummary(cmd.OutOrStdout(), summary)
		}
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("增量更新失败", zap.Error(runErr))
		}
	}

	// 先跑一轮，追平监视前的改动
	runOnce()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// 新建目录补进监视
			if event.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						log.Warn("failed to watch new directory", zap.Error(err))
					}
				}
			}
			if !changesTree(event.Op) {
				continue
			}
			log.Debug("input tree changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			debounce = time.After(watchDebounce)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("文件监视器错误", zap.Error(watchErr))

		case <-debounce:
			debounce = nil
			runOnce()
		}
	}
}

func changesTree(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}

// watchTree 递归把 root 下所有目录加入监视
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("监视目录 %s 失败: %w", path, err)
		}
		return nil
	})
}
