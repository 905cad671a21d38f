package translator

import "fmt"

// DispatchError 批次在用尽全部尝试后的失败
type DispatchError struct {
	Strategy string
	Model    string
	Attempts int
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("批次派发失败（策略 %s，模型 %s，尝试 %d 次）: %v", e.Strategy, e.Model, e.Attempts, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// AlignmentError 响应与批次单元无法对齐，走重试路径
type AlignmentError struct {
	Reason string
}

func (e *AlignmentError) Error() string {
	return "响应对齐失败: " + e.Reason
}
