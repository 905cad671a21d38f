package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderRuns 把运行历史渲染成表格写入 w
func RenderRuns(w io.Writer, records []*RunRecord, totals *Totals) {
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintln(w, "翻译运行历史")

	if len(records) == 0 {
		fmt.Fprintln(w, "暂无运行记录。")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"时间", "语言", "文件", "翻译", "沿用", "回退", "批次", "重试", "Tokens", "耗时", "状态"})
	for _, r := range records {
		tw.AppendRow(table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%s→%s", r.OriginLanguage, r.TargetLanguage),
			fmt.Sprintf("%d/%d", r.FilesWritten, r.FilesScanned),
			r.UnitsTranslated,
			r.UnitsPassThrough,
			r.UnitsFallback,
			r.Batches,
			r.Retries,
			fmt.Sprintf("%d/%d", r.TokensIn, r.TokensOut),
			formatRunDuration(r.Duration),
			statusLabel(r.Status),
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()

	if totals != nil && totals.Runs > 0 {
		fmt.Fprintf(w, "累计 %d 次运行，翻译 %d 个单元，消耗 tokens %d/%d，总耗时 %s\n",
			totals.Runs, totals.UnitsTranslated, totals.TokensIn, totals.TokensOut,
			formatRunDuration(totals.TotalDuration))
	}
}

func statusLabel(status string) string {
	switch status {
	case StatusCompleted:
		return color.GreenString("完成")
	case StatusFailed:
		return color.RedString("失败")
	case StatusInterrupted:
		return color.YellowString("中断")
	default:
		return status
	}
}

func formatRunDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
