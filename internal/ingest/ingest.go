// Package ingest turns uploaded survey files into datasets and writes cleaned
// datasets back out. Formats register a Reader; ReadFile and ReadFrom pick one
// by file name.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// DefaultMaxBytes is the upload limit enforced when Options.MaxBytes is zero.
const DefaultMaxBytes = 50 << 20

// Options controls ingestion.
type Options struct {
	// MaxBytes rejects larger inputs; 0 means DefaultMaxBytes.
	MaxBytes int64
	// Delimiter for CSV. If 0, sniffed among ',', ';', '\t'.
	Delimiter rune
	// Sheet selects an XLSX worksheet by name; empty means the first sheet.
	Sheet string
}

// Reader parses one file format into a Dataset whose columns are untyped.
type Reader interface {
	CanRead(filename string) bool
	Read(data []byte, opt Options) (*dataset.Dataset, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// ErrUnsupported indicates a format no reader handles.
var ErrUnsupported = errors.New("unsupported file format")

// ErrTooLarge indicates the input exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("file exceeds upload limit")

func (o Options) limit() int64 {
	if o.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return o.MaxBytes
}

// ReadFile reads a CSV, TSV or XLSX file from disk.
func ReadFile(path string, opt Options) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return ReadFrom(filepath.Base(path), f, opt)
}

// ReadFrom reads r, choosing the reader from name's extension.
func ReadFrom(name string, r io.Reader, opt Options) (*dataset.Dataset, error) {
	var reader Reader
	for _, p := range registry {
		if p.CanRead(name) {
			reader = p
			break
		}
	}
	if reader == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}
	max := opt.limit()
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w (%d MB)", ErrTooLarge, max>>20)
	}
	return reader.Read(data, opt)
}

// buildDataset names blank or repeated header cells, trims records wider than
// the header when the extra cells are empty, and builds the Dataset.
func buildDataset(header []string, records [][]string) (*dataset.Dataset, error) {
	names := normalizeHeader(header)
	for i, rec := range records {
		for len(rec) > len(names) && strings.TrimSpace(rec[len(rec)-1]) == "" {
			rec = rec[:len(rec)-1]
		}
		records[i] = rec
	}
	return dataset.FromHeader(names, records)
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		base := name
		for seen[name] > 0 {
			seen[base]++
			name = base + "_" + strconv.Itoa(seen[base])
		}
		seen[name]++
		out[i] = name
	}
	return out
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\ufeff"))
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}
