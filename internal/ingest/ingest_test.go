package ingest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
)

func TestReadCSVSniffsDelimiter(t *testing.T) {
	for _, tc := range []struct {
		name, doc string
	}{
		{"comma.csv", "id,age,q1\n1,34,4\n2,29,\n"},
		{"semi.csv", "id;age;q1\n1;34;4\n2;29;\n"},
		{"tabs.tsv", "id\tage\tq1\n1\t34\t4\n2\t29\t\n"},
		{"quoted.csv", "\"id;x\",age,q1\n1,34,4\n2,29,NA\n"},
	} {
		ds, err := ReadFrom(tc.name, strings.NewReader(tc.doc), Options{})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if ds.Len() != 2 || len(ds.Header()) != 3 {
			t.Fatalf("%s: got %s header %v", tc.name, ds, ds.Header())
		}
		if n, _ := ds.MissingCount("q1"); n != 1 {
			t.Fatalf("%s: missing q1 = %d", tc.name, n)
		}
	}
}

func TestReadCSVNormalizesHeader(t *testing.T) {
	doc := "\ufeffname,,name,name\nann,1,2,3\n"
	ds, err := ReadFrom("x.csv", strings.NewReader(doc), Options{})
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	want := []string{"name", "column_2", "name_2", "name_3"}
	got := ds.Header()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header = %v, want %v", got, want)
		}
	}
}

func TestReadCSVTrailingEmptyCells(t *testing.T) {
	ds, err := ReadFrom("x.csv", strings.NewReader("a,b\n1,2,,\n3\n"), Options{})
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d", ds.Len())
	}
	if c, _ := ds.Cell(1, "b"); c.Valid {
		t.Fatalf("short row should be padded with a missing cell")
	}
	if _, err := ReadFrom("x.csv", strings.NewReader("a,b\n1,2,3\n"), Options{}); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Fatalf("wide row: %v", err)
	}
}

func TestReadLimits(t *testing.T) {
	doc := "a,b\n" + strings.Repeat("1,2\n", 100)
	if _, err := ReadFrom("big.csv", strings.NewReader(doc), Options{MaxBytes: 64}); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := ReadFrom("notes.docx", strings.NewReader("x"), Options{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"respondent_id", "age", "q1_rating", "completion_time"},
		{1, 34, 4, 245},
		{},
		{2, 29, nil, 10},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	if err := f.SetSheetRow("Other", "A1", &[]any{"x"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	if err := os.WriteFile(path, workbook(t), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := ReadFile(path, Options{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if ds.Len() != 2 || ds.Header()[3] != "completion_time" {
		t.Fatalf("got %s header %v", ds, ds.Header())
	}
	if c, _ := ds.Cell(1, "q1_rating"); c.Valid {
		t.Fatalf("empty xlsx cell should be missing, got %q", c.Raw)
	}
	if c, _ := ds.Cell(0, "age"); c.Raw != "34" {
		t.Fatalf("age = %q", c.Raw)
	}

	other, err := ReadFile(path, Options{Sheet: "Other"})
	if err != nil || other.Len() != 0 || other.Header()[0] != "x" {
		t.Fatalf("sheet Other: %v %v", other, err)
	}
	if _, err := ReadFile(path, Options{Sheet: "Missing"}); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Fatalf("unknown sheet: %v", err)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds, err := ReadFrom("x.csv", strings.NewReader("id,comment\n1,\"hello, world\"\n2,NA\n"), Options{})
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if got := buf.String(); got != "id,comment\n1,\"hello, world\"\n2,\n" {
		t.Fatalf("csv = %q", got)
	}
	path := filepath.Join(t.TempDir(), "out", "clean.csv")
	if err := WriteCSVFile(path, ds); err != nil {
		t.Fatalf("WriteCSVFile: %v", err)
	}
	again, err := ReadFile(path, Options{})
	if err != nil || again.Len() != 2 {
		t.Fatalf("re-read: %v %v", again, err)
	}
}
