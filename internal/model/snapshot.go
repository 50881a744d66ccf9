package model

import (
	"sort"
	"time"
)

const (
	// FieldCount 每行携带的载荷列数（A-G）
	FieldCount = 7
	// SerialColumnIndex 序列号列位置（C 列，从 0 开始）
	SerialColumnIndex = 2
	// SerialColumnHeader 序列号列要求的表头
	SerialColumnHeader = "SN"
)

// Fields A-G 七列载荷
type Fields [FieldCount]Value

// SnapshotSource 一个带日期的快照来源
type SnapshotSource struct {
	Location string    `json:"location"`
	Date     time.Time `json:"snapshotDate"`
}

// SnapshotTable 读取器返回的单个快照表
type SnapshotTable struct {
	Location string
	Headers  []string
	Rows     [][]Value
}

// SnapshotRow 折叠过程中的单行记录
type SnapshotRow struct {
	Serial string
	Fields Fields
}

// RowFields 取一行的前 7 列，不足时补缺失值
func RowFields(row []Value) Fields {
	var f Fields
	copy(f[:], row)
	return f
}

// SortSourcesByDate 按快照日期升序稳定排序，返回新切片
func SortSourcesByDate(sources []SnapshotSource) []SnapshotSource {
	ordered := make([]SnapshotSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	return ordered
}

// Date 构造 UTC 零点的日历日期
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
