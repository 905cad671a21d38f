package progress

import (
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Bar 批次翻译进度条，非交互环境退化为日志输出
type Bar struct {
	mu        sync.Mutex
	bar       *pterm.ProgressbarPrinter
	logger    *zap.Logger
	title     string
	completed int
	startTime time.Time
}

// Start 创建进度条，interactive 为 false 时只记日志
func Start(title string, total int, interactive bool, logger *zap.Logger) *Bar {
	b := &Bar{
		logger:    logger,
		title:     title,
		startTime: time.Now(),
	}

	if total <= 0 || !interactive {
		return b
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		WithRemoveWhenDone(false).
		Start()
	if err != nil {
		logger.Debug("progress bar unavailable, falling back to logs", zap.Error(err))
		return b
	}
	b.bar = bar

	return b
}

// Advance 推进进度，签名与派发器的进度回调一致
func (b *Bar) Advance(completed, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delta := completed - b.completed
	if delta <= 0 {
		return
	}
	b.completed = completed

	if b.bar == nil {
		b.logger.Info("translation progress",
			zap.Int("completed", completed),
			zap.Int("total", total))
		return
	}

	b.bar.UpdateTitle(b.titleWithETA(completed, total))
	b.bar.Add(delta)
}

// Stop 结束进度条
func (b *Bar) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		b.bar.Stop()
		b.bar = nil
	}
}

func (b *Bar) titleWithETA(completed, total int) string {
	if completed <= 0 || completed >= total {
		return b.title
	}

	elapsed := time.Since(b.startTime)
	perBatch := elapsed / time.Duration(completed)
	remaining := perBatch * time.Duration(total-completed)

	return pterm.Sprintf("%s (剩余约 %s)", b.title, formatETA(remaining))
}

func formatETA(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return pterm.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return pterm.Sprintf("%dm%02ds", m, s)
	}
	return pterm.Sprintf("%ds", s)
}

// Interactive 判断标准输出是否连接终端
func Interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
