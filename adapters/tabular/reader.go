// Package tabular reads columns out of CSV and Excel files.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"colsense/domain/core"
	"colsense/domain/mapping"
	"colsense/ports"
)

// Reader handles both CSV and XLSX files, dispatching on extension.
type Reader struct{}

var _ ports.ColumnReader = Reader{}

func NewReader() Reader { return Reader{} }

// ReadColumns loads the file and pivots rows into per-header value columns,
// preserving header order. Short rows pad missing cells with "".
func (r Reader) ReadColumns(path string) ([]mapping.Column, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return r.readCSV(path)
	case ".xlsx", ".xlsm":
		return r.readExcel(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func (r Reader) readCSV(path string) ([]mapping.Column, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, core.ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		rows = append(rows, row)
	}

	return pivot(headers, rows)
}

func (r Reader) readExcel(path string) ([]mapping.Column, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.ErrNoColumns
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, core.ErrNoColumns
	}

	return pivot(rows[0], rows[1:])
}

func pivot(headers []string, rows [][]string) ([]mapping.Column, error) {
	kept := make([]int, 0, len(headers))
	columns := make([]mapping.Column, 0, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		kept = append(kept, i)
		columns = append(columns, mapping.Column{
			Name:   name,
			Values: make([]string, 0, len(rows)),
		})
	}
	if len(columns) == 0 {
		return nil, core.ErrNoColumns
	}

	for _, row := range rows {
		for c, src := range kept {
			var cell string
			if src < len(row) {
				cell = row[src]
			}
			columns[c].Values = append(columns[c].Values, cell)
		}
	}
	return columns, nil
}
