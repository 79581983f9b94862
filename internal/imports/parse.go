package imports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// Format is a supported spreadsheet encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat sniffs the content first and falls back on the file extension.
func DetectFormat(name string, data []byte) (Format, error) {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		switch {
		case mt.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
			return FormatXLSX, nil
		case mt.Is("application/vnd.ms-excel"):
			return FormatXLS, nil
		case mt.Is("text/csv"):
			return FormatCSV, nil
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// ParseTable reads the first sheet of data. The first non-blank row is the header; blank rows
// are skipped and do not consume a row number. Columns with unknown headers are dropped.
func ParseTable(name string, data []byte) ([]RawRow, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}
	var grid [][]string
	switch format {
	case FormatCSV:
		grid, err = readCSV(data)
	case FormatXLSX:
		grid, err = readXLSX(data)
	case FormatXLS:
		grid, err = readXLS(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, format, err)
	}
	return rowsFromGrid(grid)
}

func rowsFromGrid(grid [][]string) ([]RawRow, error) {
	headerAt := -1
	for i, cells := range grid {
		if !blank(cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyTable
	}
	headers := make([]string, len(grid[headerAt]))
	known := 0
	for i, h := range grid[headerAt] {
		headers[i] = CanonicalHeader(h)
		if headers[i] != "" {
			known++
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("%w: no recognised columns in header", ErrEmptyTable)
	}

	var rows []RawRow
	for _, cells := range grid[headerAt+1:] {
		if blank(cells) {
			continue
		}
		values := make(map[string]string, known)
		for i, cell := range cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if _, dup := values[headers[i]]; dup && strings.TrimSpace(cell) == "" {
				continue
			}
			values[headers[i]] = cell
		}
		rows = append(rows, RawRow{Row: len(rows) + 1, Values: values})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}
	return rows, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyTable
	}
	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
