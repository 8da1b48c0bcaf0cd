package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Read takes the first row of the chosen sheet as the header.
func (xlsxReader) Read(data []byte, opt Options) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.New(apperr.InvalidParameter, "workbook has no sheets")
	}
	sheet := sheets[0]
	if opt.Sheet != "" {
		idx, err := f.GetSheetIndex(opt.Sheet)
		if err != nil || idx < 0 {
			return nil, apperr.New(apperr.InvalidParameter, "no sheet named %q (have %s)", opt.Sheet, strings.Join(sheets, ", "))
		}
		sheet = opt.Sheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return dataset.FromHeader(nil, nil)
	}
	var records [][]string
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		records = append(records, row)
	}
	return buildDataset(rows[0], records)
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
