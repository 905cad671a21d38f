package translator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/extractor"
)

// Result 单个单元的翻译结果。Success 为假时 Text 即原文。
type Result struct {
	Unit    extractor.Unit
	Text    string
	Success bool
}

var thinkingTagRe = regexp2.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`, 0)

type wireItemIn struct {
	ID   interface{} `json:"id"`
	Text *string     `json:"text"`
}

// AlignResponse 把模型响应严格对齐回批次单元。
// 先剥离推理标签与代码围栏，取最外层 JSON 数组；
// 元素全部带 id 时要求 id 集合与批次完全一致，
// 全部不带 id 且数量相等时按位置对齐，其余一律判错。
func AlignResponse(raw string, batch *Batch, logger *zap.Logger) ([]Result, error) {
	cleaned, err := stripReasoning(raw)
	if err != nil {
		return nil, fmt.Errorf("剥离推理标签失败: %w", err)
	}
	cleaned = stripCodeFences(cleaned)

	payload, ok := outerArray(cleaned)
	if !ok {
		return nil, &AlignmentError{Reason: "响应中找不到 JSON 数组"}
	}

	var items []wireItemIn
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, &AlignmentError{Reason: fmt.Sprintf("解析 JSON 数组失败: %v", err)}
	}

	if len(items) == 0 {
		return nil, &AlignmentError{Reason: "响应数组为空"}
	}

	withID := 0
	for i, item := range items {
		if item.Text == nil {
			return nil, &AlignmentError{Reason: fmt.Sprintf("第 %d 个元素缺少 text 字段", i+1)}
		}
		if *item.Text == "" {
			return nil, &AlignmentError{Reason: fmt.Sprintf("第 %d 个元素的 text 为空", i+1)}
		}
		if wireID(item.ID) != "" {
			withID++
		}
	}

	var results []Result
	switch {
	case withID == len(items):
		results, err = alignByID(items, batch)
	case withID == 0 && len(items) == len(batch.Units):
		results = alignByPosition(items, batch)
	case withID == 0:
		err = &AlignmentError{Reason: fmt.Sprintf("元素均无 id 且数量不符（响应 %d，批次 %d）", len(items), len(batch.Units))}
	default:
		err = &AlignmentError{Reason: fmt.Sprintf("仅 %d/%d 个元素带 id", withID, len(items))}
	}
	if err != nil {
		return nil, err
	}

	checkTerminology(results, batch, logger)
	return results, nil
}

func alignByID(items []wireItemIn, batch *Batch) ([]Result, error) {
	texts := make(map[string]string, len(items))
	for _, item := range items {
		id := wireID(item.ID)
		if _, dup := texts[id]; dup {
			return nil, &AlignmentError{Reason: fmt.Sprintf("id 重复: %s", id)}
		}
		texts[id] = *item.Text
	}

	results := make([]Result, 0, len(batch.Units))
	for _, su := range batch.Units {
		identity := su.Unit.Identity()
		text, ok := texts[identity]
		if !ok {
			return nil, &AlignmentError{Reason: fmt.Sprintf("缺少单元: %s", identity)}
		}
		delete(texts, identity)
		results = append(results, Result{Unit: su.Unit, Text: text, Success: true})
	}

	if len(texts) > 0 {
		extras := make([]string, 0, len(texts))
		for id := range texts {
			extras = append(extras, id)
		}
		sort.Strings(extras)
		return nil, &AlignmentError{Reason: "多出未知 id: " + strings.Join(extras, ", ")}
	}
	return results, nil
}

func alignByPosition(items []wireItemIn, batch *Batch) []Result {
	results := make([]Result, 0, len(batch.Units))
	for i, su := range batch.Units {
		results = append(results, Result{Unit: su.Unit, Text: *items[i].Text, Success: true})
	}
	return results
}

func checkTerminology(results []Result, batch *Batch, logger *zap.Logger) {
	for i, su := range batch.Units {
		for _, term := range su.Applied {
			if !strings.Contains(results[i].Text, term) {
				logger.Warn("terminology missing from translation",
					zap.String("unit", su.Unit.Identity()),
					zap.String("term", term))
			}
		}
	}
}

func stripReasoning(text string) (string, error) {
	out, err := thinkingTagRe.Replace(text, "", -1, -1)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// stripCodeFences 去掉 markdown 代码围栏行，保留围栏内的内容
func stripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func outerArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func wireID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
