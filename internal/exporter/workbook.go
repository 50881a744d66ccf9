package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"invhistory/internal/model"
)

const (
	// HistorySheet 序列号历史工作表
	HistorySheet = "Serial History"
	// RunLogSheet 运行日志工作表
	RunLogSheet = "Run Log"

	dateFormat     = "yyyy-mm-dd"
	dateTimeFormat = "yyyy-mm-dd hh:mm:ss"
)

// Workbook xlsx 导出器
type Workbook struct {
	opts Options
}

// NewWorkbook 创建 xlsx 导出器
func NewWorkbook(opts Options) *Workbook {
	return &Workbook{opts: opts}
}

// Export 写入工作簿到 path
func (w *Workbook) Export(path string, table model.HistoryTable, runLog []model.RunLogEntry) error {
	f, err := w.Build(table, runLog)
	if err != nil {
		return &ExportError{Location: path, Err: err}
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &ExportError{Location: path, Err: err}
	}
	if err := f.SaveAs(path); err != nil {
		return &ExportError{Location: path, Err: err}
	}
	return nil
}

// Build 生成内存中的工作簿
func (w *Workbook) Build(table model.HistoryTable, runLog []model.RunLogEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), HistorySheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	rows := make([][]any, 0, len(table))
	for _, e := range table {
		rows = append(rows, historyRow(e))
	}
	if err := writeSheet(f, HistorySheet, model.HistoryColumns, rows, styles); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("写入 %s 失败: %w", HistorySheet, err)
	}
	if err := setColWidths(f, HistorySheet, []colWidth{{"A", "A", 22}, {"B", "C", 12}, {"D", "Q", 14}}); err != nil {
		_ = f.Close()
		return nil, err
	}

	if w.opts.IncludeRunLog {
		if _, err := f.NewSheet(RunLogSheet); err != nil {
			_ = f.Close()
			return nil, err
		}
		logRows := make([][]any, 0, len(runLog))
		for _, entry := range runLog {
			logRows = append(logRows, []any{entry.Position, entry.Location, entry.SnapshotDate})
		}
		if err := writeSheet(f, RunLogSheet, model.RunLogColumns, logRows, styles); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("写入 %s 失败: %w", RunLogSheet, err)
		}
		if err := setColWidths(f, RunLogSheet, []colWidth{{"A", "A", 10}, {"B", "B", 60}, {"C", "C", 14}}); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

type colWidth struct {
	from, to string
	width    float64
}

func setColWidths(f *excelize.File, sheet string, widths []colWidth) error {
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			return fmt.Errorf("设置 %s 列宽失败: %w", sheet, err)
		}
	}
	return nil
}

type sheetStyles struct {
	header   int
	date     int
	dateTime int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return sheetStyles{}, err
	}
	format := dateFormat
	date, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return sheetStyles{}, err
	}
	dtFormat := dateTimeFormat
	dateTime, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dtFormat})
	if err != nil {
		return sheetStyles{}, err
	}
	return sheetStyles{header: header, date: date, dateTime: dateTime}, nil
}

// writeSheet 写入表头与数据，日期单元格设置日期格式，冻结首行并开启筛选
func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, styles sheetStyles) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, styles.header); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
		if err := styleDateCells(f, sheet, i+2, row, styles); err != nil {
			return err
		}
	}
	lastRow := len(rows) + 1

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	lastCell, err := excelize.CoordinatesToCellName(len(headers), lastRow)
	if err != nil {
		return err
	}
	return f.AutoFilter(sheet, "A1:"+lastCell, nil)
}

func styleDateCells(f *excelize.File, sheet string, rowNum int, row []any, styles sheetStyles) error {
	for col, v := range row {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		style := styles.date
		if model.HasClock(t) {
			style = styles.dateTime
		}
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}
