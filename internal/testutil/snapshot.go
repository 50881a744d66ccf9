// Package testutil 测试用快照工作簿构造工具
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// StandardHeaders A-G 标准表头，C 列为 SN
var StandardHeaders = []string{"A", "B", "SN", "D", "E", "F", "G"}

// WriteWorkbook 在 path 写入一个单表工作簿，首行为表头
func WriteWorkbook(t testing.TB, path string, headers []string, rows [][]any) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("write row %d: %v", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook %s: %v", path, err)
	}
}

// WriteSnapshot 在 dir 下写入标准表头的快照，返回路径
func WriteSnapshot(t testing.TB, dir, name string, rows [][]any) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteWorkbook(t, path, StandardHeaders, rows)
	return path
}

// Row 按 A-G 构造一行
func Row(a, b, sn, d, e, f, g any) []any {
	return []any{a, b, sn, d, e, f, g}
}
