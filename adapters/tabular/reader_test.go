package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"colsense/domain/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadColumns_CSV(t *testing.T) {
	path := writeFile(t, "sales.csv", "Order Date,Sales_Amount,Region\n2024-01-15,$100.00,North\n2024-01-16,$250.00,South\n")

	columns, err := NewReader().ReadColumns(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	if columns[0].Name != "Order Date" || columns[2].Name != "Region" {
		t.Errorf("header order not preserved: %q, %q", columns[0].Name, columns[2].Name)
	}
	if len(columns[1].Values) != 2 || columns[1].Values[1] != "$250.00" {
		t.Errorf("values not pivoted correctly: %v", columns[1].Values)
	}
}

func TestReadColumns_CSVShortRowsPad(t *testing.T) {
	path := writeFile(t, "ragged.csv", "A,B,C\n1,2,3\n4,5\n6\n")

	columns, err := NewReader().ReadColumns(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := columns[2].Values; len(got) != 3 || got[1] != "" || got[2] != "" {
		t.Errorf("short rows must pad with empty cells, got %v", got)
	}
}

func TestReadColumns_CSVSkipsBlankHeaders(t *testing.T) {
	path := writeFile(t, "blank.csv", "A,,C\n1,2,3\n")

	columns, err := NewReader().ReadColumns(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(columns) != 2 {
		t.Fatalf("blank headers must be dropped, got %d columns", len(columns))
	}
	if columns[1].Name != "C" || columns[1].Values[0] != "3" {
		t.Errorf("values must track their surviving header, got %+v", columns[1])
	}
}

func TestReadColumns_EmptyCSV(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	_, err := NewReader().ReadColumns(path)
	if !errors.Is(err, core.ErrNoColumns) {
		t.Errorf("expected ErrNoColumns, got %v", err)
	}
}

func TestReadColumns_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "data.parquet", "xx")
	if _, err := NewReader().ReadColumns(path); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestReadColumns_MissingFile(t *testing.T) {
	if _, err := NewReader().ReadColumns(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadColumns_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Order Date", "Sales_Amount"},
		{"2024-01-15", "$100.00"},
		{"2024-01-16", "$250.00"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	columns, err := NewReader().ReadColumns(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(columns))
	}
	if columns[0].Name != "Order Date" || len(columns[0].Values) != 2 {
		t.Errorf("unexpected first column: %+v", columns[0])
	}
	if columns[1].Values[0] != "$100.00" {
		t.Errorf("unexpected cell value: %q", columns[1].Values[0])
	}
}
