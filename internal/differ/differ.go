package differ

import (
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
)

// Plan 一次增量翻译的工作划分
type Plan struct {
	// Work 需要送去翻译的单元（新增、源文本变化或译文丢失）
	Work []extractor.Unit
	// PassThrough 沿用既有译文的单元
	PassThrough []extractor.Unit
}

// Differ 对比提取结果与状态清单，划分工作集
type Differ struct {
	manifest *Manifest
	logger   *zap.Logger
}

func New(manifest *Manifest, logger *zap.Logger) *Differ {
	return &Differ{manifest: manifest, logger: logger}
}

// Diff 划分工作集。existing 是既有输出树中各单元的译文（以身份为键）。
// 单元沿用旧译文，当且仅当清单记录的源哈希与当前源文本一致，
// 且译文仍在输出树里；其余一律进工作集。
func (d *Differ) Diff(result *extractor.Result, existing map[string]string) *Plan {
	plan := &Plan{}

	for _, file := range result.Files {
		for _, unit := range file.Units {
			identity := unit.Identity()
			record := d.manifest.Lookup(identity)

			switch {
			case record == nil || record.SourceHash != HashText(unit.SourceText):
				plan.Work = append(plan.Work, unit)
			default:
				if _, ok := existing[identity]; ok {
					plan.PassThrough = append(plan.PassThrough, unit)
					continue
				}
				// 清单认识它但译文不在输出树里，重新翻译
				d.logger.Debug("recorded translation missing from output, requeued",
					zap.String("unit", identity))
				plan.Work = append(plan.Work, unit)
			}
		}
	}

	d.logger.Info("computed incremental plan",
		zap.Int("work", len(plan.Work)),
		zap.Int("pass_through", len(plan.PassThrough)))

	return plan
}
