package imports

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func xlsxFixture(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestCanonicalHeader(t *testing.T) {
	require.Equal(t, HeaderSKU, CanonicalHeader(" SKU *"))
	require.Equal(t, HeaderPickingQuantity, CanonicalHeader("PICKINGBINQUANTITY"))
	require.Equal(t, HeaderFolder, CanonicalHeader("primaryFolderName"))
	require.Equal(t, HeaderFolder, CanonicalHeader("Folder"))
	require.Equal(t, HeaderPickingQuantity, CanonicalHeader("quantity"))
	require.Equal(t, HeaderPickingFolder, CanonicalHeader("PickingBinFolderName"))
	require.Equal(t, HeaderRetailPrice, CanonicalHeader("price"))
	require.Equal(t, HeaderName, CanonicalHeader("\ufeffname"))
	require.Empty(t, CanonicalHeader("colour"))
}

func TestParseCSV(t *testing.T) {
	data := []byte("\xef\xbb\xbfSKU *,Name *,Quantity,Colour\n\nA-1,Widget,5,red\n , , ,\nB-2,\"Gadget, large\",x\n")
	rows, err := ParseTable("items.csv", data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, 1, rows[0].Row)
	require.Equal(t, "A-1", rows[0].Get(HeaderSKU))
	require.Equal(t, "5", rows[0].Get(HeaderPickingQuantity))
	require.NotContains(t, rows[0].Values, "colour")

	require.Equal(t, 2, rows[1].Row)
	require.Equal(t, "Gadget, large", rows[1].Get(HeaderName))
}

func TestParseEmptyTable(t *testing.T) {
	_, err := ParseTable("empty.csv", []byte("sku,name\n"))
	require.ErrorIs(t, err, ErrEmptyTable)

	_, err = ParseTable("blank.csv", []byte("\n\n"))
	require.ErrorIs(t, err, ErrEmptyTable)

	_, err = ParseTable("unknown.csv", []byte("foo,bar\n1,2\n"))
	require.ErrorIs(t, err, ErrEmptyTable)
}

func TestParseXLSX(t *testing.T) {
	data := xlsxFixture(t, [][]any{
		{"sku", "name", "pickingBinQuantity", "overstockQuantity", "folderName"},
		{"A-1", "Widget", 4, 1, "Back"},
		{},
		{"B-2", "Gadget", 0, 0, ""},
	})
	rows, err := ParseTable("items.xlsx", data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "4", rows[0].Get(HeaderPickingQuantity))
	require.Equal(t, "Back", rows[0].Get(HeaderFolder))
	require.Equal(t, "B-2", rows[1].Get(HeaderSKU))
	require.Equal(t, 2, rows[1].Row)
}

func TestDetectFormat(t *testing.T) {
	format, err := DetectFormat("items.xlsx", xlsxFixture(t, [][]any{{"sku"}}))
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, format)

	format, err = DetectFormat("items.csv", []byte("sku,name\nA,B\n"))
	require.NoError(t, err)
	require.Equal(t, FormatCSV, format)

	_, err = DetectFormat("photo.png", []byte("\x89PNG\r\n\x1a\n"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
