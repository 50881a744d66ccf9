package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"invhistory/internal/model"
)

// XLSXReader 快照读取器：读取单个工作簿的一张表
type XLSXReader struct {
	// Sheet 为空时读取第一张表
	Sheet string
}

// NewXLSXReader 创建读取器
func NewXLSXReader(sheet string) *XLSXReader {
	return &XLSXReader{Sheet: strings.TrimSpace(sheet)}
}

// ReadSnapshot 读取表头与数据行
func (r *XLSXReader) ReadSnapshot(location string) (*model.SnapshotTable, error) {
	f, err := excelize.OpenFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return r.readWorkbook(f, location)
}

func (r *XLSXReader) readWorkbook(f *excelize.File, location string) (*model.SnapshotTable, error) {
	sheet := r.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	table := &model.SnapshotTable{Location: location}
	if len(rows) == 0 {
		return table, nil
	}

	table.Headers = rows[0]
	width := len(table.Headers)

	dec, err := newCellDecoder(f, sheet)
	if err != nil {
		return nil, err
	}

	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		raw := rows[rowIdx]
		n := width
		if len(raw) > n {
			n = len(raw)
		}
		values := make([]model.Value, n)
		blank := true
		for colIdx, text := range raw {
			v, err := dec.value(colIdx+1, rowIdx+1, text)
			if err != nil {
				return nil, err
			}
			if !v.IsEmpty() {
				blank = false
			}
			values[colIdx] = v
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, values)
	}

	return table, nil
}

// cellDecoder 按单元格类型与数字格式还原标量值
type cellDecoder struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	// 样式索引 -> 是否为日期格式
	dateStyles map[int]bool
}

func newCellDecoder(f *excelize.File, sheet string) (*cellDecoder, error) {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook properties: %w", err)
	}
	return &cellDecoder{
		f:          f,
		sheet:      sheet,
		date1904:   props.Date1904 != nil && *props.Date1904,
		dateStyles: make(map[int]bool),
	}, nil
}

func (d *cellDecoder) value(col, row int, text string) (model.Value, error) {
	if text == "" {
		return model.Empty(), nil
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return model.Value{}, err
	}
	cellType, err := d.f.GetCellType(d.sheet, cell)
	if err != nil {
		return model.Value{}, fmt.Errorf("failed to read cell %s: %w", cell, err)
	}

	switch cellType {
	case excelize.CellTypeBool:
		return model.BoolValue(text == "1" || strings.EqualFold(text, "true")), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return model.StringValue(text), nil
		}
		isDate, err := d.isDateCell(cell)
		if err != nil {
			return model.Value{}, err
		}
		if !isDate {
			return model.NumberValue(n), nil
		}
		t, err := excelize.ExcelDateToTime(n, d.date1904)
		if err != nil {
			return model.NumberValue(n), nil
		}
		return model.DateValue(t), nil
	default:
		return model.StringValue(text), nil
	}
}

func (d *cellDecoder) isDateCell(cell string) (bool, error) {
	idx, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil {
		return false, fmt.Errorf("failed to read style of cell %s: %w", cell, err)
	}
	if idx == 0 {
		return false, nil
	}
	if isDate, ok := d.dateStyles[idx]; ok {
		return isDate, nil
	}

	style, err := d.f.GetStyle(idx)
	if err != nil {
		return false, fmt.Errorf("failed to read style %d: %w", idx, err)
	}
	isDate := isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	d.dateStyles[idx] = isDate
	return isDate, nil
}
