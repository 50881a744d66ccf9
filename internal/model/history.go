package model

import "time"

// HistoryEntry 单个序列号的首末出现记录
type HistoryEntry struct {
	Serial      string    `json:"sn"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
	FirstFields Fields    `json:"-"`
	LastFields  Fields    `json:"-"`
}

// HistoryTable 按序列号升序排列的汇总结果
type HistoryTable []HistoryEntry

// Find 按序列号查找
func (t HistoryTable) Find(serial string) (HistoryEntry, bool) {
	for _, e := range t {
		if e.Serial == serial {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

// HistoryColumns 导出表头
var HistoryColumns = []string{
	"sn",
	"first_seen",
	"last_seen",
	"first_col_a",
	"first_col_b",
	"first_col_c",
	"first_col_d",
	"first_col_e",
	"first_col_f",
	"first_col_g",
	"last_col_a",
	"last_col_b",
	"last_col_c",
	"last_col_d",
	"last_col_e",
	"last_col_f",
	"last_col_g",
}

// RunLogEntry 运行日志：哪个来源以哪个日期参与了汇总
type RunLogEntry struct {
	Position     int       `json:"position"`
	Location     string    `json:"source"`
	SnapshotDate time.Time `json:"snapshotDate"`
}

// RunLogColumns 运行日志表头
var RunLogColumns = []string{"position", "source", "snapshot_date"}

// BuildRunLog 按时间顺序生成运行日志
func BuildRunLog(sources []SnapshotSource) []RunLogEntry {
	ordered := SortSourcesByDate(sources)
	out := make([]RunLogEntry, 0, len(ordered))
	for i, s := range ordered {
		out = append(out, RunLogEntry{
			Position:     i + 1,
			Location:     s.Location,
			SnapshotDate: s.Date,
		})
	}
	return out
}
