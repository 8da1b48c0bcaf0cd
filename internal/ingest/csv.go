package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
	"github.com/KaramelBytes/surveyloom-cli/internal/utils"
)

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvReader) Read(data []byte, opt Options) (*dataset.Dataset, error) {
	data = trimBOM(data)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dataset.FromHeader(nil, nil)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		records = append(records, rec)
	}
	return buildDataset(header, records)
}

// sniffDelimiter picks whichever of ',', ';' and tab occurs most often, outside
// quotes, on the header line. Ties go to the comma.
func sniffDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	counts := map[rune]int{}
	quoted := false
	for _, c := range line {
		switch c {
		case '"':
			quoted = !quoted
		case ',', ';', '\t':
			if !quoted {
				counts[c]++
			}
		}
	}
	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// WriteCSV writes the header and every row; missing cells are written empty.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(ds.Records()); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteCSVFile writes ds to path atomically.
func WriteCSVFile(path string, ds *dataset.Dataset) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}
