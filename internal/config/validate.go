package config

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Problem 配置校验发现的问题
type Problem struct {
	Severity string // error 或 warning
	Message  string
}

// ValidateRegistry 交叉校验策略与模型注册表
// error 级问题会让 update 拒绝启动，warning 只提示
func ValidateRegistry(strategies []Strategy, models map[string]ModelConfig) []Problem {
	var problems []Problem

	modelNames := ModelNames(models)
	seenPriority := make(map[int]string)
	referenced := make(map[string]bool, len(strategies))

	for i := range strategies {
		s := &strategies[i]

		referenced[s.Model] = true
		if _, ok := models[s.Model]; !ok {
			msg := fmt.Sprintf("策略 %s 引用了未注册的模型 %q", s.Name, s.Model)
			if suggestion := SuggestName(s.Model, modelNames); suggestion != "" {
				msg += fmt.Sprintf("，是否想用 %q？", suggestion)
			}
			problems = append(problems, Problem{Severity: "error", Message: msg})
		}

		if prev, ok := seenPriority[s.Priority]; ok {
			problems = append(problems, Problem{
				Severity: "warning",
				Message: fmt.Sprintf("策略 %s 与 %s 的优先级相同（%d），按配置顺序先到先得",
					prev, s.Name, s.Priority),
			})
		} else {
			seenPriority[s.Priority] = s.Name
		}

		if len(s.Terminology) == 0 && s.TerminologyFile == "" {
			problems = append(problems, Problem{
				Severity: "warning",
				Message:  fmt.Sprintf("策略 %s 没有术语表，术语一致性无法保证", s.Name),
			})
		}
	}

	for _, name := range modelNames {
		if models[name].APIKey == "" {
			problems = append(problems, Problem{
				Severity: "warning",
				Message:  fmt.Sprintf("模型 %s 未在配置中提供 api_key，运行时将从系统钥匙串读取", name),
			})
		}
		if !referenced[name] {
			problems = append(problems, Problem{
				Severity: "warning",
				Message:  fmt.Sprintf("模型 %s 没有被任何策略引用，不会为它建立客户端", name),
			})
		}
	}

	return problems
}

// SuggestName 在候选名单里找与输入最接近的一个，拿不准时返回空串
func SuggestName(input string, candidates []string) string {
	if input == "" || len(candidates) == 0 {
		return ""
	}

	// 子序列命中优先，能抓住少打了字的情况
	if ranks := fuzzy.RankFindNormalizedFold(input, candidates); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(input, c)
		if bestDist == -1 || d < bestDist {
			best, bestDist = c, d
		}
	}

	// 编辑距离太大就不乱猜
	limit := utf8.RuneCountInString(input) / 2
	if limit < 2 {
		limit = 2
	}
	if bestDist > limit {
		return ""
	}
	return best
}

// HasErrors 判断问题列表中是否存在 error 级问题
func HasErrors(problems []Problem) bool {
	for _, p := range problems {
		if p.Severity == "error" {
			return true
		}
	}
	return false
}
