package writer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/differ"
	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
	"github.com/nerdneilsfield/go-loctree-translator/internal/jsonio"
	"github.com/nerdneilsfield/go-loctree-translator/internal/translator"
)

// Writer 把翻译结果写回输出树。
// 输出在源文件字节上原位替换值，键序和排版随源文件走，
// 临时文件加改名保证不破坏旧文件。
type Writer struct {
	outputRoot  string
	manifest    *differ.Manifest
	keepBackups bool
	logger      *zap.Logger
}

// Summary 一次写出的统计
type Summary struct {
	FilesWritten int
	UnitsWritten int
	Failures     []*WriteError
}

func New(outputRoot string, manifest *differ.Manifest, keepBackups bool, logger *zap.Logger) *Writer {
	return &Writer{
		outputRoot:  outputRoot,
		manifest:    manifest,
		keepBackups: keepBackups,
		logger:      logger,
	}
}

// LoadExistingValues 读取既有输出树中各文件的译文，身份为键。
// 文件缺失或损坏按没有译文处理。
func (w *Writer) LoadExistingValues(files []*extractor.File) map[string]string {
	values := make(map[string]string)
	for _, file := range files {
		outPath := filepath.Join(w.outputRoot, filepath.FromSlash(file.RelPath))

		raw, err := jsonio.ReadFile(outPath)
		if err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("existing output unreadable, its units will be requeued",
					zap.String("file", outPath), zap.Error(err))
			}
			continue
		}
		if !gjson.ValidBytes(raw) {
			w.logger.Warn("existing output unreadable, its units will be requeued",
				zap.String("file", outPath))
			continue
		}

		for _, u := range extractor.Flatten(raw, file.RelPath) {
			values[u.Identity()] = u.SourceText
		}
	}
	return values
}

// WriteFiles 重建并写出所有含工作单元的文件。
// 成功写出的单元登记进状态清单：翻译成功的记录源哈希，
// 回退为原文的从清单剔除，下次运行重新翻译。
// 单个文件失败只记录，不影响其他文件。
func (w *Writer) WriteFiles(files []*extractor.File, results []translator.Result, existing map[string]string) *Summary {
	byIdentity := make(map[string]translator.Result, len(results))
	for _, r := range results {
		byIdentity[r.Unit.Identity()] = r
	}

	summary := &Summary{}
	for _, file := range files {
		work := 0
		values := make(map[string]string, len(file.Units))
		for i := range file.Units {
			identity := file.Units[i].Identity()
			if r, ok := byIdentity[identity]; ok {
				values[identity] = r.Text
				work++
				continue
			}
			if text, ok := existing[identity]; ok {
				values[identity] = text
			}
		}

		// 没有工作单元的文件保持原样
		if work == 0 {
			continue
		}

		if err := w.writeFile(file, values); err != nil {
			summary.Failures = append(summary.Failures, err)
			w.logger.Error("file write failed", zap.String("file", file.RelPath), zap.Error(err))
			continue
		}

		for i := range file.Units {
			unit := &file.Units[i]
			r, ok := byIdentity[unit.Identity()]
			if !ok {
				continue
			}
			if r.Success {
				w.manifest.Record(unit.Identity(), differ.HashText(unit.SourceText), file.Strategy.Model, unit.StrategyName)
			} else {
				w.manifest.Forget(unit.Identity())
			}
		}

		summary.FilesWritten++
		summary.UnitsWritten += work
	}

	w.logger.Info("output tree updated",
		zap.Int("files", summary.FilesWritten),
		zap.Int("units", summary.UnitsWritten),
		zap.Int("failures", len(summary.Failures)))

	return summary
}

func (w *Writer) writeFile(file *extractor.File, values map[string]string) *WriteError {
	data, _, err := extractor.Replace(file.Raw, file.Units, values)
	if err != nil {
		return &WriteError{Path: file.RelPath, Err: err}
	}

	dest := filepath.Join(w.outputRoot, filepath.FromSlash(file.RelPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &WriteError{Path: file.RelPath, Err: err}
	}

	if w.keepBackups {
		if err := w.backupPrevious(dest); err != nil {
			return &WriteError{Path: file.RelPath, Err: err}
		}
	}

	if err := writeAtomic(dest, data); err != nil {
		return &WriteError{Path: file.RelPath, Err: err}
	}
	return nil
}

// backupPrevious 把将被覆盖的旧文件另存为 <name>.bak-<时间戳>。
// 备份失败时放弃覆盖，宁可跳过也不丢旧译文。
func (w *Writer) backupPrevious(dest string) error {
	src, err := os.Open(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	backupPath := fmt.Sprintf("%s.bak-%s", dest, time.Now().Format("20060102-150405"))
	out, err := os.OpenFile(backupPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(backupPath)
		return err
	}
	return out.Close()
}

// writeAtomic 同目录临时文件写入后改名替换，尽力同步父目录
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	syncDir(dir)
	return nil
}

// syncDir 尽力同步目录元数据，失败不致命
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}

// CopyFontDir 把字体目录复制到输出树（已存在则跳过）
func (w *Writer) CopyFontDir(fontDir string) error {
	if fontDir == "" {
		return nil
	}
	info, err := os.Stat(fontDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}

	dest := filepath.Join(w.outputRoot, filepath.Base(fontDir))
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	err = filepath.WalkDir(fontDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(fontDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return fmt.Errorf("复制字体目录失败: %w", err)
	}

	w.logger.Info("font directory copied", zap.String("dest", dest))
	return nil
}
