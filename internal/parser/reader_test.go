package parser_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invhistory/internal/model"
	"invhistory/internal/parser"
	"invhistory/internal/testutil"
)

func TestXLSXReader_ReadsHeadersAndTypedValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.WriteSnapshot(t, dir, "2024-01-01_Raw_Data.xlsx", [][]any{
		testutil.Row("A1", 42, "SN1", 3.5, true, nil, "G1"),
		testutil.Row(nil, nil, nil, nil, nil, nil, nil),
		testutil.Row("A2", "B2", " SN2 ", "D2", "E2", "F2", "G2"),
	})

	table, err := parser.NewXLSXReader("").ReadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, testutil.StandardHeaders, table.Headers)
	require.Equal(t, path, table.Location)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	require.Equal(t, model.StringValue("A1"), first[0])
	require.Equal(t, model.NumberValue(42), first[1])
	require.Equal(t, model.StringValue("SN1"), first[2])
	require.Equal(t, model.NumberValue(3.5), first[3])
	require.Equal(t, model.BoolValue(true), first[4])
	require.True(t, first[5].IsEmpty())

	second := table.Rows[1]
	key, ok := second[2].SerialKey()
	require.True(t, ok)
	require.Equal(t, "SN2", key)
}

func TestXLSXReader_PadsShortRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.xlsx")
	testutil.WriteWorkbook(t, path, testutil.StandardHeaders, [][]any{{"A1", "B1", "SN1"}})

	table, err := parser.NewXLSXReader("").ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	require.Len(t, table.Rows[0], len(testutil.StandardHeaders))
	require.True(t, table.Rows[0][6].IsEmpty())
}

func TestXLSXReader_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0o644))

	_, err := parser.NewXLSXReader("").ReadSnapshot(path)
	require.Error(t, err)
}

func TestXLSXReader_MissingSheet(t *testing.T) {
	t.Parallel()

	path := testutil.WriteSnapshot(t, t.TempDir(), "s.xlsx", [][]any{testutil.Row("A", "B", "SN1", "D", "E", "F", "G")})

	_, err := parser.NewXLSXReader("Inventory").ReadSnapshot(path)
	require.Error(t, err)
}

func TestXLSXReader_DateCellsKeepDates(t *testing.T) {
	t.Parallel()

	received := time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)
	audited := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	path := testutil.WriteSnapshot(t, t.TempDir(), "dates.xlsx", [][]any{
		testutil.Row(received, "B1", "SN1", audited, 45275, nil, "G1"),
	})

	table, err := parser.NewXLSXReader("").ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	require.Equal(t, model.KindDate, row[0].Kind)
	require.True(t, row[0].Time.Equal(received), "got %s", row[0].Time)
	require.Equal(t, "2023-12-15", row[0].String())

	require.Equal(t, model.KindDate, row[3].Kind)
	require.True(t, row[3].Time.Equal(audited), "got %s", row[3].Time)
	require.Equal(t, "2024-01-02 12:00:00", row[3].String())

	// 无日期格式的数字保持数值
	require.Equal(t, model.NumberValue(45275), row[4])
}

func TestXLSXReader_CustomNumberFormats(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []any{"A", "B", "SN"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	row := []any{45275, 45275.5, "SN1"}
	require.NoError(t, f.SetSheetRow(sheet, "A2", &row))

	dateFmt := "yyyy/mm/dd"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "A2", "A2", dateStyle))

	numFmt := `0.00"d"`
	numStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "B2", "B2", numStyle))

	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := parser.NewXLSXReader("").ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	require.Equal(t, model.KindDate, table.Rows[0][0].Kind)
	require.Equal(t, "2023-12-15", table.Rows[0][0].String())
	require.Equal(t, model.NumberValue(45275.5), table.Rows[0][1])
}
