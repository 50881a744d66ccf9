// Package exporter 将序列号历史与运行日志持久化为表格文件。
package exporter

import (
	"fmt"
	"path/filepath"
	"strings"

	"invhistory/internal/model"
)

// Options 导出选项
type Options struct {
	// IncludeRunLog 是否写入运行日志；历史表始终写入
	IncludeRunLog bool
	// Compression parquet 压缩方式: zstd/snappy/gzip/none
	Compression string
}

// Sink 导出目标
type Sink interface {
	Export(path string, table model.HistoryTable, runLog []model.RunLogEntry) error
}

// ForPath 按扩展名选择导出格式
func ForPath(path string, opts Options) (Sink, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return NewWorkbook(opts), nil
	case ".parquet":
		return NewParquet(opts), nil
	default:
		return nil, &ExportError{
			Location: path,
			Err:      fmt.Errorf("unsupported output format %q (want .xlsx or .parquet)", filepath.Ext(path)),
		}
	}
}

// historyRow 按 HistoryColumns 顺序展开一条记录
func historyRow(e model.HistoryEntry) []any {
	row := make([]any, 0, len(model.HistoryColumns))
	row = append(row, e.Serial, e.FirstSeen, e.LastSeen)
	for _, v := range e.FirstFields {
		row = append(row, v.Interface())
	}
	for _, v := range e.LastFields {
		row = append(row, v.Interface())
	}
	return row
}
