package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
	"github.com/nerdneilsfield/go-loctree-translator/internal/stats"
)

// RunSummary 一次运行的汇总
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	// Canceled 用户在确认门放弃
	Canceled bool

	FilesScanned     int
	FilesWritten     int
	FilesFailed      int
	FilesBlacklisted int
	FilesUnmatched   int
	FilesMalformed   int

	UnitsTotal       int
	UnitsWork        int
	UnitsPassThrough int
	UnitsTranslated  int
	UnitsFallback    int

	Batches   int
	Retries   int
	TokensIn  int
	TokensOut int

	// 工作集替换后文本的规模
	WorkBytes     int
	WorkGraphemes int
}

func (s *RunSummary) toRunRecord(cfg *config.Config, status string) *stats.RunRecord {
	return &stats.RunRecord{
		ID:               s.RunID,
		StartedAt:        s.StartedAt,
		Duration:         s.Duration,
		OriginLanguage:   cfg.TranslationSettings.OriginLanguage,
		TargetLanguage:   cfg.TranslationSettings.TargetLanguage,
		FilesScanned:     s.FilesScanned,
		FilesWritten:     s.FilesWritten,
		UnitsTotal:       s.UnitsTotal,
		UnitsTranslated:  s.UnitsTranslated,
		UnitsPassThrough: s.UnitsPassThrough,
		UnitsFallback:    s.UnitsFallback,
		Batches:          s.Batches,
		Retries:          s.Retries,
		TokensIn:         int64(s.TokensIn),
		TokensOut:        int64(s.TokensOut),
		Status:           status,
	}
}

// RenderSummary 把运行汇总渲染成表格写入 w
func RenderSummary(w io.Writer, s *RunSummary) {
	heading := color.New(color.FgCyan, color.Bold)
	switch {
	case s.Canceled:
		heading.Fprintln(w, "运行已取消")
	case s.DryRun:
		heading.Fprintln(w, "预演完成（未派发）")
	default:
		heading.Fprintln(w, "运行完成")
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRow(table.Row{"项", "值"})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"运行 ID", s.RunID})
	tw.AppendRow(table.Row{"耗时", s.Duration.Round(time.Millisecond).String()})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"扫描文件", s.FilesScanned})
	tw.AppendRow(table.Row{"写出文件", s.FilesWritten})
	if s.FilesFailed > 0 {
		tw.AppendRow(table.Row{"写出失败", color.RedString("%d", s.FilesFailed)})
	}
	if s.FilesBlacklisted > 0 {
		tw.AppendRow(table.Row{"黑名单跳过", s.FilesBlacklisted})
	}
	if s.FilesUnmatched > 0 {
		tw.AppendRow(table.Row{"无策略跳过", s.FilesUnmatched})
	}
	if s.FilesMalformed > 0 {
		tw.AppendRow(table.Row{"解析失败", color.RedString("%d", s.FilesMalformed)})
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"单元总数", s.UnitsTotal})
	tw.AppendRow(table.Row{"工作集", fmt.Sprintf("%d（%d 字节 / %d 字符）", s.UnitsWork, s.WorkBytes, s.WorkGraphemes)})
	tw.AppendRow(table.Row{"沿用旧译", s.UnitsPassThrough})
	if !s.DryRun && !s.Canceled {
		tw.AppendRow(table.Row{"翻译成功", s.UnitsTranslated})
		if s.UnitsFallback > 0 {
			tw.AppendRow(table.Row{"回退原文", color.YellowString("%d", s.UnitsFallback)})
		}
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"批次", s.Batches})
	if !s.DryRun && !s.Canceled {
		tw.AppendRow(table.Row{"重试", s.Retries})
		tw.AppendRow(table.Row{"Tokens 输入/输出", fmt.Sprintf("%d / %d", s.TokensIn, s.TokensOut)})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
