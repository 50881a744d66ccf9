package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"invhistory/internal/model"
)

// 运行状态
const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("run not found")

// Run 一次汇总运行的记录
type Run struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	OutputPath   string     `json:"outputPath"`
	SourceCount  int        `json:"sourceCount"`
	SerialCount  int        `json:"serialCount"`
	RowsRead     int        `json:"rowsRead"`
	BlankRows    int        `json:"blankRows"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// RunResult 完成运行时写入的统计
type RunResult struct {
	SerialCount int
	RowsRead    int
	BlankRows   int
}

// CreateRun 创建运行记录并写入参与的来源（按时间顺序）
func (s *Store) CreateRun(id, outputPath string, runLog []model.RunLogEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin run tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO runs (id, status, output_path, source_count)
		VALUES (?, ?, ?, ?)
	`, id, StatusProcessing, outputPath, len(runLog)); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for _, entry := range runLog {
		if _, err := tx.Exec(`
			INSERT INTO run_sources (run_id, position, location, snapshot_date)
			VALUES (?, ?, ?, ?)
		`, id, entry.Position, entry.Location, entry.SnapshotDate.Format("2006-01-02")); err != nil {
			return fmt.Errorf("failed to record run source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// CompleteRun 标记运行成功
func (s *Store) CompleteRun(id string, result RunResult) error {
	res, err := s.db.Exec(`
		UPDATE runs SET
			status = ?,
			serial_count = ?,
			rows_read = ?,
			blank_rows = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, StatusDone, result.SerialCount, result.RowsRead, result.BlankRows, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return expectOneRow(res)
}

// FailRun 标记运行失败
func (s *Store) FailRun(id, message string) error {
	res, err := s.db.Exec(`
		UPDATE runs SET
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, StatusFailed, message, id)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return expectOneRow(res)
}

const runColumns = `id, status, output_path, source_count, serial_count, rows_read, blank_rows, error_message, started_at, completed_at`

// GetRun 查询单次运行
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run failed: %w", err)
	}
	return run, nil
}

// ListRuns 按开始时间倒序列出最近的运行
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs failed: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run failed: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs failed: %w", err)
	}
	return out, nil
}

// ListRunSources 查询运行的来源日志
func (s *Store) ListRunSources(runID string) ([]model.RunLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT position, location, snapshot_date
		FROM run_sources
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run sources failed: %w", err)
	}
	defer rows.Close()

	var out []model.RunLogEntry
	for rows.Next() {
		var (
			entry model.RunLogEntry
			date  string
		)
		if err := rows.Scan(&entry.Position, &entry.Location, &date); err != nil {
			return nil, fmt.Errorf("scan run source failed: %w", err)
		}
		entry.SnapshotDate, err = time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("invalid stored snapshot date %q: %w", date, err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run sources failed: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*Run, error) {
	var (
		run       Run
		completed sql.NullTime
	)
	if err := sc.Scan(
		&run.ID, &run.Status, &run.OutputPath, &run.SourceCount, &run.SerialCount,
		&run.RowsRead, &run.BlankRows, &run.ErrorMessage, &run.StartedAt, &completed,
	); err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
