package aggregator

import "fmt"

// SchemaError 快照表结构不符合要求（列数不足或 C 列表头不是 SN）
type SchemaError struct {
	Location string
	Columns  int
	Expected string
	Found    string
}

func (e *SchemaError) Error() string {
	if e.Columns < 3 {
		return fmt.Sprintf("%s must contain at least 3 columns (A-C), found %d", e.Location, e.Columns)
	}
	return fmt.Sprintf("Column C header must be '%s' in %s, found '%s'", e.Expected, e.Location, e.Found)
}

// SourceLoadError 快照来源无法读取或解析
type SourceLoadError struct {
	Location string
	Err      error
}

func (e *SourceLoadError) Error() string {
	return fmt.Sprintf("failed to load snapshot %s: %v", e.Location, e.Err)
}

func (e *SourceLoadError) Unwrap() error {
	return e.Err
}
