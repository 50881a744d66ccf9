package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"invhistory/internal/model"
)

// historyRecord 序列号历史的 parquet 行；日期为自 1970-01-01 起的天数
type historyRecord struct {
	SN        string  `parquet:"sn"`
	FirstSeen int32   `parquet:"first_seen,date"`
	LastSeen  int32   `parquet:"last_seen,date"`
	FirstColA *string `parquet:"first_col_a,optional"`
	FirstColB *string `parquet:"first_col_b,optional"`
	FirstColC *string `parquet:"first_col_c,optional"`
	FirstColD *string `parquet:"first_col_d,optional"`
	FirstColE *string `parquet:"first_col_e,optional"`
	FirstColF *string `parquet:"first_col_f,optional"`
	FirstColG *string `parquet:"first_col_g,optional"`
	LastColA  *string `parquet:"last_col_a,optional"`
	LastColB  *string `parquet:"last_col_b,optional"`
	LastColC  *string `parquet:"last_col_c,optional"`
	LastColD  *string `parquet:"last_col_d,optional"`
	LastColE  *string `parquet:"last_col_e,optional"`
	LastColF  *string `parquet:"last_col_f,optional"`
	LastColG  *string `parquet:"last_col_g,optional"`
}

// runLogRecord 运行日志的 parquet 行
type runLogRecord struct {
	Position     int32  `parquet:"position"`
	Source       string `parquet:"source"`
	SnapshotDate int32  `parquet:"snapshot_date,date"`
}

// Parquet parquet 导出器：历史写入 path，运行日志写入同目录的 <name>_runlog.parquet
type Parquet struct {
	opts Options
}

// NewParquet 创建 parquet 导出器
func NewParquet(opts Options) *Parquet {
	return &Parquet{opts: opts}
}

// RunLogPath 运行日志文件路径
func RunLogPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_runlog" + ext
}

// Export 写入 parquet 文件
func (p *Parquet) Export(path string, table model.HistoryTable, runLog []model.RunLogEntry) error {
	compression, err := compressionOption(p.opts.Compression)
	if err != nil {
		return &ExportError{Location: path, Err: err}
	}

	records := make([]historyRecord, 0, len(table))
	for _, e := range table {
		records = append(records, toHistoryRecord(e))
	}
	if err := writeParquet(path, records, compression); err != nil {
		return &ExportError{Location: path, Err: err}
	}

	if !p.opts.IncludeRunLog {
		return nil
	}
	logPath := RunLogPath(path)
	logRecords := make([]runLogRecord, 0, len(runLog))
	for _, entry := range runLog {
		logRecords = append(logRecords, runLogRecord{
			Position:     int32(entry.Position),
			Source:       entry.Location,
			SnapshotDate: epochDays(entry.SnapshotDate),
		})
	}
	if err := writeParquet(logPath, logRecords, compression); err != nil {
		// 两个文件要么都在，要么都不在
		_ = os.Remove(path)
		return &ExportError{Location: logPath, Err: err}
	}
	return nil
}

// writeParquet 先写同目录临时文件，成功后再重命名到 path
func writeParquet[T any](path string, records []T, compression parquet.WriterOption) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := file.Name()
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	var zero T
	writer := parquet.NewWriter(file, parquet.SchemaOf(zero), compression)
	for i := range records {
		if err := writer.Write(&records[i]); err != nil {
			return fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func compressionOption(name string) (parquet.WriterOption, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "none":
		return parquet.Compression(&parquet.Uncompressed), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}

func toHistoryRecord(e model.HistoryEntry) historyRecord {
	return historyRecord{
		SN:        e.Serial,
		FirstSeen: epochDays(e.FirstSeen),
		LastSeen:  epochDays(e.LastSeen),
		FirstColA: optionalString(e.FirstFields[0]),
		FirstColB: optionalString(e.FirstFields[1]),
		FirstColC: optionalString(e.FirstFields[2]),
		FirstColD: optionalString(e.FirstFields[3]),
		FirstColE: optionalString(e.FirstFields[4]),
		FirstColF: optionalString(e.FirstFields[5]),
		FirstColG: optionalString(e.FirstFields[6]),
		LastColA:  optionalString(e.LastFields[0]),
		LastColB:  optionalString(e.LastFields[1]),
		LastColC:  optionalString(e.LastFields[2]),
		LastColD:  optionalString(e.LastFields[3]),
		LastColE:  optionalString(e.LastFields[4]),
		LastColF:  optionalString(e.LastFields[5]),
		LastColG:  optionalString(e.LastFields[6]),
	}
}

func optionalString(v model.Value) *string {
	if v.IsEmpty() {
		return nil
	}
	s := v.String()
	return &s
}

func epochDays(t time.Time) int32 {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int32(midnight.Unix() / 86400)
}
