package extractor

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Flatten 不经策略过滤，展开文档里 id 作用域下的全部文本叶子。
// 写回阶段用它读取既有输出文件中的译文。
func Flatten(raw []byte, filePath string) []Unit {
	w := docWalker{filePath: filePath}
	w.walk(gjson.ParseBytes(raw), "", "", nil)
	return w.units
}

// Replace 按单元路径原位替换值，文档其余字节原样保留。
// values 以 Identity 为键，返回实际替换的数量。
func Replace(raw []byte, units []Unit, values map[string]string) ([]byte, int, error) {
	out := raw
	applied := 0
	for i := range units {
		u := &units[i]
		text, ok := values[u.Identity()]
		if !ok {
			continue
		}
		next, err := sjson.SetBytes(out, u.Path, text)
		if err != nil {
			return nil, 0, fmt.Errorf("替换 %s 失败: %w", u.Identity(), err)
		}
		out = next
		applied++
	}
	return out, applied, nil
}
