package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type wireItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// BuildSystemPrompt 拼装策略提示词与术语指令。
// 术语已在派发前替换进原文，指令要求译文原样保留。
func BuildSystemPrompt(batch *Batch) string {
	prompt := batch.Strategy.PromptText

	terms := appliedTerms(batch)
	if len(terms) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n以下术语已按对照表预先替换，为最终定稿，译文必须原样保留：")
	b.WriteString(strings.Join(terms, "、"))
	return b.String()
}

// BuildUserContent 把批次单元编码为 {id, text} 的 JSON 数组
func BuildUserContent(batch *Batch) (string, error) {
	items := make([]wireItem, 0, len(batch.Units))
	for _, su := range batch.Units {
		items = append(items, wireItem{ID: su.Unit.Identity(), Text: su.Text})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", fmt.Errorf("编码批次内容失败: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func appliedTerms(batch *Batch) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, su := range batch.Units {
		for _, term := range su.Applied {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)
	return terms
}
