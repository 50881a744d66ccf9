// Package aggregator 将按日期排列的库存快照折叠为按序列号去重的首末出现记录。
package aggregator

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"invhistory/internal/model"
)

// Reader 快照读取器
type Reader interface {
	ReadSnapshot(location string) (*model.SnapshotTable, error)
}

// Stats 单次汇总的统计信息
type Stats struct {
	Sources     int `json:"sources"`
	RowsRead    int `json:"rowsRead"`
	BlankSerial int `json:"blankSerialRows"`
	Serials     int `json:"serials"`
}

// Aggregator 序列号历史汇总器
type Aggregator struct {
	reader      Reader
	concurrency int
	logger      zerolog.Logger
}

// Option 汇总器选项
type Option func(*Aggregator)

// WithReadConcurrency 并发预读快照的数量；折叠本身始终串行
func WithReadConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger.With().Str("component", "aggregator").Logger()
	}
}

// New 创建汇总器
func New(reader Reader, opts ...Option) *Aggregator {
	a := &Aggregator{
		reader:      reader,
		concurrency: 1,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate 汇总所有来源，返回按序列号升序的历史表
func (a *Aggregator) Aggregate(sources []model.SnapshotSource) (model.HistoryTable, error) {
	table, _, err := a.AggregateWithStats(sources)
	return table, err
}

// AggregateWithStats 同 Aggregate，并返回统计信息。
// 任一来源失败时整体失败，不返回部分结果。
func (a *Aggregator) AggregateWithStats(sources []model.SnapshotSource) (model.HistoryTable, Stats, error) {
	ordered := model.SortSourcesByDate(sources)

	next := func(i int) (*model.SnapshotTable, error) {
		return a.load(ordered[i])
	}
	if a.concurrency > 1 && len(ordered) > 1 {
		var stop func()
		next, stop = a.prefetch(ordered)
		defer stop()
	}

	acc := newAccumulator()
	for i, src := range ordered {
		snapshot, err := next(i)
		if err != nil {
			return nil, Stats{}, err
		}
		if err := validateSchema(src.Location, snapshot.Headers); err != nil {
			return nil, Stats{}, err
		}

		before := acc.stats
		acc.fold(src.Date, snapshot.Rows)
		a.logger.Debug().
			Str("source", src.Location).
			Str("date", src.Date.Format("2006-01-02")).
			Int("rows", acc.stats.RowsRead-before.RowsRead).
			Int("serials", len(acc.bySerial)).
			Msg("snapshot folded")
	}

	table := acc.table()
	stats := acc.stats
	stats.Sources = len(ordered)
	stats.Serials = len(table)
	return table, stats, nil
}

func (a *Aggregator) load(src model.SnapshotSource) (*model.SnapshotTable, error) {
	snapshot, err := a.reader.ReadSnapshot(src.Location)
	if err != nil {
		return nil, &SourceLoadError{Location: src.Location, Err: err}
	}
	if snapshot == nil {
		snapshot = &model.SnapshotTable{Location: src.Location}
	}
	return snapshot, nil
}

// validateSchema 至少 3 列，且 C 列表头必须为 SN
func validateSchema(location string, headers []string) error {
	if len(headers) <= model.SerialColumnIndex {
		return &SchemaError{
			Location: location,
			Columns:  len(headers),
			Expected: model.SerialColumnHeader,
		}
	}
	if found := headers[model.SerialColumnIndex]; found != model.SerialColumnHeader {
		return &SchemaError{
			Location: location,
			Columns:  len(headers),
			Expected: model.SerialColumnHeader,
			Found:    found,
		}
	}
	return nil
}

// accumulator 折叠过程中的序列号映射，只属于一次汇总
type accumulator struct {
	bySerial map[string]*model.HistoryEntry
	stats    Stats
}

func newAccumulator() *accumulator {
	return &accumulator{bySerial: make(map[string]*model.HistoryEntry)}
}

func (acc *accumulator) fold(date time.Time, rows [][]model.Value) {
	for _, raw := range rows {
		acc.stats.RowsRead++
		row, ok := toRow(raw)
		if !ok {
			acc.stats.BlankSerial++
			continue
		}

		entry, seen := acc.bySerial[row.Serial]
		if !seen {
			acc.bySerial[row.Serial] = &model.HistoryEntry{
				Serial:      row.Serial,
				FirstSeen:   date,
				LastSeen:    date,
				FirstFields: row.Fields,
				LastFields:  row.Fields,
			}
			continue
		}
		entry.LastSeen = date
		entry.LastFields = row.Fields
	}
}

func (acc *accumulator) table() model.HistoryTable {
	out := make(model.HistoryTable, 0, len(acc.bySerial))
	for _, e := range acc.bySerial {
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Serial < out[j].Serial
	})
	return out
}

func toRow(raw []model.Value) (model.SnapshotRow, bool) {
	if len(raw) <= model.SerialColumnIndex {
		return model.SnapshotRow{}, false
	}
	serial, ok := raw[model.SerialColumnIndex].SerialKey()
	if !ok {
		return model.SnapshotRow{}, false
	}
	return model.SnapshotRow{Serial: serial, Fields: model.RowFields(raw)}, true
}
