package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/differ"
	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
	"github.com/nerdneilsfield/go-loctree-translator/internal/jsonio"
	"github.com/nerdneilsfield/go-loctree-translator/internal/translator"
)

// DumpEntry 备份转储中的一个翻译单元
type DumpEntry struct {
	Identity   string `json:"identity"`
	SourceText string `json:"source_text,omitempty"`
	Text       string `json:"text,omitempty"`
	Success    bool   `json:"success,omitempty"`
}

func (p *Pipeline) backupDir() string {
	return p.cfg.ResolvePath("backup")
}

// dumpPlanBackups 转储增量、全量原文和既有译文三份快照
func (p *Pipeline) dumpPlanBackups(result *extractor.Result, plan *differ.Plan, existing map[string]string) []string {
	stamp := time.Now()

	var origin []DumpEntry
	for _, file := range result.Files {
		for _, unit := range file.Units {
			origin = append(origin, DumpEntry{Identity: unit.Identity(), SourceText: unit.SourceText})
		}
	}

	delta := make([]DumpEntry, 0, len(plan.Work))
	for _, unit := range plan.Work {
		delta = append(delta, DumpEntry{Identity: unit.Identity(), SourceText: unit.SourceText})
	}

	old := make([]DumpEntry, 0, len(existing))
	for identity, text := range existing {
		old = append(old, DumpEntry{Identity: identity, Text: text, Success: true})
	}
	sort.Slice(old, func(i, j int) bool { return old[i].Identity < old[j].Identity })

	var paths []string
	for _, dump := range []struct {
		prefix  string
		entries []DumpEntry
	}{
		{"Delta", delta},
		{"Ori", origin},
		{"Old", old},
	} {
		path, err := writeDump(p.backupDir(), dump.prefix, dump.entries, stamp)
		if err != nil {
			p.logger.Warn("failed to write backup dump",
				zap.String("prefix", dump.prefix),
				zap.Error(err))
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func resultEntries(results []translator.Result) []DumpEntry {
	entries := make([]DumpEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, DumpEntry{
			Identity:   r.Unit.Identity(),
			SourceText: r.Unit.SourceText,
			Text:       r.Text,
			Success:    r.Success,
		})
	}
	return entries
}

// writeDump 把转储写到 <dir>/<prefix>_backup_<时间戳>.json
func writeDump(dir, prefix string, entries []DumpEntry, stamp time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建备份目录失败: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_backup_%s.json", prefix, stamp.Format("20060102_150405")))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("写入备份转储失败: %w", err)
	}
	return path, nil
}

// ReadDump 读取备份转储，load 命令用它做恢复
func ReadDump(path string) ([]DumpEntry, error) {
	data, err := jsonio.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []DumpEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("解析备份转储 %s 失败: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("备份转储 %s 为空", path)
	}
	return entries, nil
}

// removeDumps 运行成功后按 keep_backup_files=false 清掉本次转储
func removeDumps(paths []string, logger *zap.Logger) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove backup dump",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		logger.Debug("backup dump removed", zap.String("path", path))
	}
}
