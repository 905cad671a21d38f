package extractor

import "fmt"

// ExtractionError 源文件无法解析，文件被跳过，运行继续
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("提取失败 %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
