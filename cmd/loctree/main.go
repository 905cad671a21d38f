package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/cli"
	"github.com/nerdneilsfield/go-loctree-translator/internal/logger"
)

// Version information
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Ctrl+C 取消正在进行的运行，已完成的文件保持落盘
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.NewLogger(false)
	defer func() {
		_ = log.Sync()
	}()

	rootCmd := cli.NewRootCommand(Version, Commit, BuildDate)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("执行命令失败", zap.Error(err))
		os.Exit(1)
	}
}
