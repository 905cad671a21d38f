package terminology

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
)

// SubstitutedUnit 预替换后的单元，Applied 保留已落地的目标词供回查
type SubstitutedUnit struct {
	Unit    extractor.Unit
	Text    string
	Applied []string
}

type term struct {
	source string
	target string
	// ascii 词需要词界约束，CJK 词直接子串替换
	re *regexp2.Regexp
}

// Substituter 按最长词优先做术语预替换
type Substituter struct {
	terms  []term
	logger *zap.Logger
}

var asciiWordRe = regexp.MustCompile(`^[A-Za-z0-9_ .'-]+$`)

// NewSubstituter 编译术语表。键按长度降序排列，
// 短词是长词子串时不会截胡。
func NewSubstituter(terminology map[string]string, logger *zap.Logger) (*Substituter, error) {
	sources := make([]string, 0, len(terminology))
	for src := range terminology {
		if strings.TrimSpace(src) == "" {
			continue
		}
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool {
		if len(sources[i]) != len(sources[j]) {
			return len(sources[i]) > len(sources[j])
		}
		return sources[i] < sources[j]
	})

	terms := make([]term, 0, len(sources))
	for _, src := range sources {
		entry := term{source: src, target: terminology[src]}
		if asciiWordRe.MatchString(src) {
			re, err := regexp2.Compile(`(?<![A-Za-z0-9_])`+regexp2.Escape(src)+`(?![A-Za-z0-9_])`, regexp2.IgnoreCase)
			if err != nil {
				return nil, err
			}
			entry.re = re
		}
		terms = append(terms, entry)
	}

	return &Substituter{terms: terms, logger: logger}, nil
}

// Apply 对工作集做预替换
func (s *Substituter) Apply(units []extractor.Unit) ([]SubstitutedUnit, error) {
	out := make([]SubstitutedUnit, 0, len(units))
	for _, unit := range units {
		text, applied, err := s.substitute(unit.SourceText)
		if err != nil {
			return nil, err
		}
		if len(applied) > 0 {
			s.logger.Debug("terminology applied",
				zap.String("unit", unit.Identity()),
				zap.Strings("terms", applied))
		}
		out = append(out, SubstitutedUnit{Unit: unit, Text: text, Applied: applied})
	}
	return out, nil
}

func (s *Substituter) substitute(text string) (string, []string, error) {
	var applied []string
	for _, t := range s.terms {
		if t.re != nil {
			matched, err := t.re.MatchString(text)
			if err != nil {
				return "", nil, err
			}
			if !matched {
				continue
			}
			text, err = t.re.Replace(text, t.target, -1, -1)
			if err != nil {
				return "", nil, err
			}
			applied = append(applied, t.target)
			continue
		}
		if strings.Contains(text, t.source) {
			text = strings.ReplaceAll(text, t.source, t.target)
			applied = append(applied, t.target)
		}
	}
	return text, applied, nil
}

// Len 返回术语条数
func (s *Substituter) Len() int {
	return len(s.terms)
}
