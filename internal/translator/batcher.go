package translator

import (
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
	"github.com/nerdneilsfield/go-loctree-translator/internal/terminology"
)

// Batch 同一策略下、受字节预算约束的一组单元
type Batch struct {
	Strategy *config.Strategy
	Units    []terminology.SubstitutedUnit
	// Bytes 各单元文本的 UTF-8 字节数之和
	Bytes int
}

// BuildBatches 按策略分组并贪心装箱。预算按 UTF-8 字节数计，
// 单个超预算的单元独占一个批次。组内保持提取顺序，
// 位置对齐回退依赖这一点。
func BuildBatches(units []terminology.SubstitutedUnit, strategies []config.Strategy, maxBytes int, logger *zap.Logger) []*Batch {
	byName := make(map[string]*config.Strategy, len(strategies))
	for i := range strategies {
		byName[strategies[i].Name] = &strategies[i]
	}

	// 按首次出现顺序分组
	var order []string
	groups := make(map[string][]terminology.SubstitutedUnit)
	for _, su := range units {
		name := su.Unit.StrategyName
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], su)
	}

	var batches []*Batch
	for _, name := range order {
		strategy, ok := byName[name]
		if !ok {
			logger.Error("strategy missing from registry, units skipped",
				zap.String("strategy", name),
				zap.Int("units", len(groups[name])))
			continue
		}

		var current *Batch
		for _, su := range groups[name] {
			size := len(su.Text)

			if size > maxBytes {
				if current != nil {
					batches = append(batches, current)
					current = nil
				}
				logger.Warn("oversized unit forms singleton batch",
					zap.String("unit", su.Unit.Identity()),
					zap.Int("bytes", size),
					zap.Int("budget", maxBytes))
				batches = append(batches, &Batch{Strategy: strategy, Units: []terminology.SubstitutedUnit{su}, Bytes: size})
				continue
			}

			if current != nil && current.Bytes+size > maxBytes {
				batches = append(batches, current)
				current = nil
			}
			if current == nil {
				current = &Batch{Strategy: strategy}
			}
			current.Units = append(current.Units, su)
			current.Bytes += size
		}
		if current != nil {
			batches = append(batches, current)
		}
	}

	logger.Info("batches built",
		zap.Int("units", len(units)),
		zap.Int("batches", len(batches)),
		zap.Int("budget_bytes", maxBytes))

	return batches
}
