package exporter

import "fmt"

// ExportError 目标文件无法写入
type ExportError struct {
	Location string
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to export %s: %v", e.Location, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
