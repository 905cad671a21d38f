package extractor

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
	"github.com/nerdneilsfield/go-loctree-translator/internal/jsonio"
)

// Unit 一条待翻译文本，身份是 (文件, id, 字段路径)
type Unit struct {
	ID           string
	FilePath     string // 剥离前缀后的斜杠分隔相对路径
	FieldName    string // 相对 id 块的字段路径，如 "name"、"lines.0.text"
	Path         string // 文档内的绝对 gjson 路径，写回时原位替换用
	SourceText   string
	StrategyName string
}

// Identity 返回清单键 文件#id#字段
func (u *Unit) Identity() string {
	return u.FilePath + "#" + u.ID + "#" + u.FieldName
}

// File 单个源文件的提取结果
// Raw 保留剥离 BOM 后的原始字节，写回阶段按单元路径替换值，其余字节不动
type File struct {
	RelPath    string // 输出侧相对路径（已剥离前缀）
	SourcePath string // 输入文件的实际路径
	Raw        []byte
	Strategy   *config.Strategy
	Pattern    *config.FilePattern
	Units      []Unit
}

// Result 整棵输入树的提取结果
type Result struct {
	Files       []*File
	Blacklisted []string
	Unmatched   []string
	Failed      []*ExtractionError
}

// TotalUnits 返回提取出的单元总数
func (r *Result) TotalUnits() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Units)
	}
	return n
}

// Extractor 遍历输入树，把 id 块压平成翻译单元
type Extractor struct {
	strategies []config.Strategy
	blacklist  *config.Blacklist
	prefixes   []string
	logger     *zap.Logger
}

// New 创建提取器，strategies 需已按优先级排序
func New(strategies []config.Strategy, blacklist *config.Blacklist, prefixes []string, logger *zap.Logger) *Extractor {
	return &Extractor{
		strategies: strategies,
		blacklist:  blacklist,
		prefixes:   prefixes,
		logger:     logger,
	}
}

// ExtractTree 遍历 root 下的全部 *.json 并提取翻译单元
// 单个文件的解析失败只记录不中断
func (e *Extractor) ExtractTree(root string) (*Result, error) {
	result := &Result{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rawRel := filepath.ToSlash(rel)
		outRel := e.stripPrefixes(rawRel)

		if e.blacklist.Matches(rawRel) || e.blacklist.Matches(outRel) {
			result.Blacklisted = append(result.Blacklisted, rawRel)
			e.logger.Debug("file blacklisted", zap.String("file", rawRel))
			return nil
		}

		matches := config.MatchStrategyAll(outRel, e.strategies)
		if len(matches) == 0 {
			result.Unmatched = append(result.Unmatched, rawRel)
			e.logger.Warn("no strategy matched, file skipped", zap.String("file", rawRel))
			return nil
		}
		if len(matches) > 1 && matches[0].Strategy.Priority == matches[1].Strategy.Priority {
			e.logger.Warn("multiple strategies matched at equal priority, first listed wins",
				zap.String("file", rawRel),
				zap.String("chosen", matches[0].Strategy.Name),
				zap.String("shadowed", matches[1].Strategy.Name))
		}
		match := matches[0]

		file, extErr := e.extractFile(path, outRel, &match)
		if extErr != nil {
			result.Failed = append(result.Failed, extErr)
			e.logger.Warn("file extraction failed, skipping",
				zap.String("file", rawRel), zap.Error(extErr))
			return nil
		}

		result.Files = append(result.Files, file)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历输入目录失败 %s: %w", root, err)
	}

	e.logger.Info("extraction finished",
		zap.Int("files", len(result.Files)),
		zap.Int("units", result.TotalUnits()),
		zap.Int("blacklisted", len(result.Blacklisted)),
		zap.Int("unmatched", len(result.Unmatched)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// extractFile 读取单个文件并压平其中的 id 块
func (e *Extractor) extractFile(path, outRel string, match *config.StrategyMatch) (*File, *ExtractionError) {
	raw, err := jsonio.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	if !gjson.ValidBytes(raw) {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("不是有效的 JSON")}
	}

	file := &File{
		RelPath:    outRel,
		SourcePath: path,
		Raw:        raw,
		Strategy:   match.Strategy,
		Pattern:    match.Pattern,
	}

	walker := docWalker{
		filePath:      outRel,
		strategyName:  match.Strategy.Name,
		extractFields: toSet(match.Pattern.ExtractFields),
	}
	walker.walk(gjson.ParseBytes(raw), "", "", nil)

	seen := make(map[string]bool, len(walker.units))
	for i := range walker.units {
		id := walker.units[i].Identity()
		if seen[id] {
			e.logger.Warn("duplicate unit identity in file",
				zap.String("file", outRel), zap.String("identity", id))
		}
		seen[id] = true
	}

	file.Units = walker.units
	return file, nil
}

// stripPrefixes 反复剥离文件名上的语言前缀（KR_ JP_ EN_ …）
func (e *Extractor) stripPrefixes(relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	base := filepath.Base(relPath)

	for {
		stripped := false
		for _, prefix := range e.prefixes {
			if strings.HasPrefix(base, prefix) {
				base = base[len(prefix):]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}

	if dir == "." {
		return base
	}
	return dir + "/" + base
}

// docWalker 按文档顺序深度优先遍历并收集 id 作用域内的文本叶子
// 内层 id 块接管其下叶子的归属
type docWalker struct {
	filePath      string
	strategyName  string
	extractFields map[string]bool
	units         []Unit
}

func (w *docWalker) walk(node gjson.Result, docPath, ownerID string, pathFromID []string) {
	switch {
	case node.IsObject():
		if id, ok := scalarID(node.Get("id")); ok {
			ownerID = id
			pathFromID = nil
		}
		node.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if k == "id" {
				return true
			}
			w.walkField(value, childPath(docPath, escapeKey(k)), k, ownerID, append(pathFromID, k))
			return true
		})
	case node.IsArray():
		for i, item := range node.Array() {
			seg := strconv.Itoa(i)
			w.walk(item, childPath(docPath, seg), ownerID, append(pathFromID, seg))
		}
	}
}

// walkField 处理字典里的一个键值，extract_fields 生效时只收集点名的键
func (w *docWalker) walkField(value gjson.Result, valuePath, key, ownerID string, pathFromID []string) {
	if value.Type == gjson.String {
		s := value.Str
		if ownerID == "" || strings.TrimSpace(s) == "" {
			return
		}
		if len(w.extractFields) > 0 && !w.extractFields[key] {
			return
		}
		w.units = append(w.units, Unit{
			ID:           ownerID,
			FilePath:     w.filePath,
			FieldName:    strings.Join(pathFromID, "."),
			Path:         valuePath,
			SourceText:   s,
			StrategyName: w.strategyName,
		})
		return
	}
	w.walk(value, valuePath, ownerID, pathFromID)
}

// scalarID 把 id 值规整为字符串，接受字符串与数字
func scalarID(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		if v.Str == "" {
			return "", false
		}
		return v.Str, true
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64), true
	default:
		return "", false
	}
}

func childPath(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + "." + seg
}

// escapeKey 转义键里的 gjson 路径特殊字符
func escapeKey(key string) string {
	if !strings.ContainsAny(key, `.\*?|#@`) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`.\*?|#@`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toSet(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
