package jsonio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// 游戏侧导出的本地化文件可能带 UTF-8 BOM，读取时统一剥离。
// 写出不在这里做：输出直接在源字节上替换值，排版随源文件走。

// ReadFile 读取文件内容并剥离 UTF-8 BOM
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := xunicode.UTF8BOM.NewDecoder()
	data, err := io.ReadAll(transform.NewReader(f, dec))
	if err != nil {
		return nil, fmt.Errorf("读取文件失败 %s: %w", path, err)
	}
	return data, nil
}

// DecodeFile 读取 JSON 文件并反序列化到 v，容忍 BOM
func DecodeFile(path string, v interface{}) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 JSON 失败 %s: %w", path, err)
	}
	return nil
}
