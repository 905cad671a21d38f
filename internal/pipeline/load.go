package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/differ"
	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
	"github.com/nerdneilsfield/go-loctree-translator/internal/translator"
	"github.com/nerdneilsfield/go-loctree-translator/internal/writer"
)

// Load 把一份翻译结果转储重新写进输出树。
// 转储按身份对到当前源树的单元上，源里已不存在的条目跳过；
// 命中的条目照常更新状态清单，下次 update 不会重翻。
func (p *Pipeline) Load(dumpPath string) (*RunSummary, error) {
	summary := &RunSummary{StartedAt: time.Now()}
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	entries, err := ReadDump(dumpPath)
	if err != nil {
		return summary, err
	}

	ext := extractor.New(p.strategies, p.blacklist, p.cfg.TranslationSettings.StripFilenamePrefixes, p.logger)
	result, err := ext.ExtractTree(p.cfg.InputRoot())
	if err != nil {
		return summary, err
	}
	summary.FilesScanned = len(result.Files)
	summary.UnitsTotal = result.TotalUnits()

	manifest, err := differ.LoadManifest(p.cfg.OutputRoot(), p.logger)
	if err != nil {
		return summary, err
	}
	w := writer.New(p.cfg.OutputRoot(), manifest, p.cfg.Options.KeepBackupFiles, p.logger)
	existing := w.LoadExistingValues(result.Files)

	unitsByIdentity := make(map[string]extractor.Unit, summary.UnitsTotal)
	for _, file := range result.Files {
		for _, unit := range file.Units {
			unitsByIdentity[unit.Identity()] = unit
		}
	}

	var results []translator.Result
	skipped := 0
	for _, entry := range entries {
		if !entry.Success || entry.Text == "" {
			skipped++
			continue
		}
		unit, ok := unitsByIdentity[entry.Identity]
		if !ok {
			p.logger.Debug("dump entry has no matching unit in source tree",
				zap.String("identity", entry.Identity))
			skipped++
			continue
		}
		results = append(results, translator.Result{Unit: unit, Text: entry.Text, Success: true})
	}
	summary.UnitsTranslated = len(results)

	writeSummary := w.WriteFiles(result.Files, results, existing)
	summary.FilesWritten = writeSummary.FilesWritten
	summary.FilesFailed = len(writeSummary.Failures)
	if err := manifest.Save(); err != nil {
		return summary, err
	}

	if err := w.CopyFontDir(p.cfg.ResolvePath(p.cfg.FilePaths.FontDir)); err != nil {
		p.logger.Warn("font directory copy failed", zap.Error(err))
	}

	p.logger.Info("dump loaded",
		zap.String("dump", dumpPath),
		zap.Int("entries", len(entries)),
		zap.Int("applied", len(results)),
		zap.Int("skipped", skipped),
		zap.Int("files_written", summary.FilesWritten))

	return summary, nil
}
