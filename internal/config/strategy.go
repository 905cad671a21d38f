package config

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/nerdneilsfield/go-loctree-translator/internal/jsonio"
)

// FilePattern 策略的文件匹配规则
// extract_fields 非空时只提取列出的字段，否则提取 id 块下的全部文本字段
type FilePattern struct {
	Pattern       string   `json:"pattern"`
	ExtractFields []string `json:"extract_fields,omitempty"`

	re *regexp.Regexp
}

// Matches 检查相对路径（斜杠分隔）或其文件名是否命中该模式
func (fp *FilePattern) Matches(relPath string) bool {
	if fp.re == nil {
		return false
	}
	return fp.re.MatchString(relPath) || fp.re.MatchString(path.Base(relPath))
}

// Strategy 翻译策略：把一类文件绑定到模型、提示词与术语表
type Strategy struct {
	Name            string        `json:"name"`
	Priority        int           `json:"priority"`
	FilePatterns    []FilePattern `json:"file_patterns"`
	Model           string        `json:"model"`
	PromptFile      string        `json:"prompt_file"`
	TerminologyFile string        `json:"terminology_file,omitempty"`

	// 由 LoadStrategies 填充
	PromptText  string            `json:"-"`
	Terminology map[string]string `json:"-"`
}

type strategiesFile struct {
	TranslationStrategies []Strategy `json:"translation_strategies"`
}

// LoadStrategies 加载策略注册表：编译匹配模式、读入提示词文件和术语表，
// 并按优先级升序排好（同优先级保持配置顺序）
// resolve 把注册表中的相对路径解析到配置目录
func LoadStrategies(strategyPath string, resolve func(string) string, defaultTerminology map[string]string) ([]Strategy, error) {
	var file strategiesFile
	if err := jsonio.DecodeFile(strategyPath, &file); err != nil {
		return nil, err
	}
	if len(file.TranslationStrategies) == 0 {
		return nil, fmt.Errorf("策略注册表为空: %s", strategyPath)
	}

	strategies := file.TranslationStrategies
	for i := range strategies {
		s := &strategies[i]
		if s.Name == "" {
			return nil, fmt.Errorf("策略 #%d 缺少 name", i)
		}
		if len(s.FilePatterns) == 0 {
			return nil, fmt.Errorf("策略 %s 没有 file_patterns", s.Name)
		}
		for j := range s.FilePatterns {
			fp := &s.FilePatterns[j]
			re, err := globToRegexp(fp.Pattern)
			if err != nil {
				return nil, fmt.Errorf("策略 %s 的模式 %q 无法编译: %w", s.Name, fp.Pattern, err)
			}
			fp.re = re
		}

		if s.PromptFile != "" {
			data, err := jsonio.ReadFile(resolve(s.PromptFile))
			if err != nil {
				return nil, fmt.Errorf("策略 %s 的提示词文件读取失败: %w", s.Name, err)
			}
			s.PromptText = strings.TrimSpace(string(data))
		}
		if s.PromptText == "" {
			return nil, fmt.Errorf("策略 %s 没有可用的提示词", s.Name)
		}

		if s.TerminologyFile != "" {
			terms, err := LoadTerminology(resolve(s.TerminologyFile))
			if err != nil {
				return nil, fmt.Errorf("策略 %s 的术语表加载失败: %w", s.Name, err)
			}
			s.Terminology = terms
		} else {
			s.Terminology = defaultTerminology
		}
	}

	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].Priority < strategies[j].Priority
	})

	return strategies, nil
}

// StrategyMatch 命中结果：策略与命中的具体模式
type StrategyMatch struct {
	Strategy *Strategy
	Pattern  *FilePattern
}

// MatchStrategy 返回第一个命中的策略，策略列表需已按优先级排序
// 纯函数，未命中返回 nil
func MatchStrategy(relPath string, strategies []Strategy) *StrategyMatch {
	for i := range strategies {
		s := &strategies[i]
		for j := range s.FilePatterns {
			if s.FilePatterns[j].Matches(relPath) {
				return &StrategyMatch{Strategy: s, Pattern: &s.FilePatterns[j]}
			}
		}
	}
	return nil
}

// MatchStrategyAll 返回所有命中的策略，用于同优先级冲突告警
func MatchStrategyAll(relPath string, strategies []Strategy) []StrategyMatch {
	var matches []StrategyMatch
	for i := range strategies {
		s := &strategies[i]
		for j := range s.FilePatterns {
			if s.FilePatterns[j].Matches(relPath) {
				matches = append(matches, StrategyMatch{Strategy: s, Pattern: &s.FilePatterns[j]})
				break
			}
		}
	}
	return matches
}

// globToRegexp 把 fnmatch 风格的通配模式翻译成正则
// * 可以跨越路径分隔符，匹配不区分大小写
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("模式不能为空")
	}

	var b strings.Builder
	b.WriteString("(?i)^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '[':
			j := i + 1
			if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				// 未闭合的 [ 按字面量处理
				b.WriteString(regexp.QuoteMeta("["))
			} else {
				set := pattern[i+1 : j]
				set = strings.ReplaceAll(set, `\`, `\\`)
				if strings.HasPrefix(set, "!") {
					set = "^" + set[1:]
				}
				b.WriteString("[" + set + "]")
				i = j
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	return regexp.Compile(b.String())
}
