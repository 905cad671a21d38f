package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
	"github.com/nerdneilsfield/go-loctree-translator/internal/stats"
)

func sampleSummary() *RunSummary {
	return &RunSummary{
		RunID:            "run-1234",
		StartedAt:        time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Duration:         90 * time.Second,
		FilesScanned:     12,
		FilesWritten:     3,
		UnitsTotal:       480,
		UnitsWork:        120,
		UnitsPassThrough: 355,
		UnitsTranslated:  115,
		UnitsFallback:    5,
		Batches:          8,
		Retries:          2,
		TokensIn:         15000,
		TokensOut:        9000,
		WorkBytes:        6200,
		WorkGraphemes:    2100,
	}
}

func TestRenderSummary(t *testing.T) {
	t.Run("完成时输出全量表格", func(t *testing.T) {
		var buf bytes.Buffer
		RenderSummary(&buf, sampleSummary())

		out := buf.String()
		assert.Contains(t, out, "运行完成")
		assert.Contains(t, out, "run-1234")
		assert.Contains(t, out, "120（6200 字节 / 2100 字符）")
		assert.Contains(t, out, "翻译成功")
		assert.Contains(t, out, "回退原文")
		assert.Contains(t, out, "15000 / 9000")
	})

	t.Run("预演不显示派发结果", func(t *testing.T) {
		s := sampleSummary()
		s.DryRun = true
		s.UnitsTranslated = 0
		s.UnitsFallback = 0

		var buf bytes.Buffer
		RenderSummary(&buf, s)

		out := buf.String()
		assert.Contains(t, out, "预演完成（未派发）")
		assert.NotContains(t, out, "翻译成功")
		assert.NotContains(t, out, "Tokens")
	})

	t.Run("取消有独立标题", func(t *testing.T) {
		s := sampleSummary()
		s.Canceled = true

		var buf bytes.Buffer
		RenderSummary(&buf, s)
		assert.Contains(t, buf.String(), "运行已取消")
	})
}

func TestToRunRecord(t *testing.T) {
	cfg := &config.Config{}
	cfg.TranslationSettings.OriginLanguage = "jp"
	cfg.TranslationSettings.TargetLanguage = "zh-cn"

	record := sampleSummary().toRunRecord(cfg, stats.StatusCompleted)

	assert.Equal(t, "run-1234", record.ID)
	assert.Equal(t, 90*time.Second, record.Duration)
	assert.Equal(t, "jp", record.OriginLanguage)
	assert.Equal(t, "zh-cn", record.TargetLanguage)
	assert.Equal(t, 115, record.UnitsTranslated)
	assert.Equal(t, int64(15000), record.TokensIn)
	assert.Equal(t, int64(9000), record.TokensOut)
	assert.Equal(t, stats.StatusCompleted, record.Status)
}
