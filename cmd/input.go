package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
	"github.com/KaramelBytes/surveyloom-cli/internal/ingest"
	"github.com/KaramelBytes/surveyloom-cli/internal/pipeline"
)

// inputFlags are shared by every command that reads a survey file.
type inputFlags struct {
	delimiter string
	sheet     string
	job       string

	// seed overrides the job's cleaning seed when seedSet is true
	seed    int64
	seedSet bool
}

func (f *inputFlags) options() (ingest.Options, error) {
	opt := ingest.Options{Sheet: f.sheet}
	if cfg != nil {
		opt.MaxBytes = cfg.MaxUploadBytes()
	}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	return opt, nil
}

func (f *inputFlags) read(path string) (*dataset.Dataset, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	return ingest.ReadFile(path, opt)
}

// loadJob reads --job, or builds a skeleton with the suggested schema when
// no job file was given.
func (f *inputFlags) loadJob(ds *dataset.Dataset) (*pipeline.Job, error) {
	if f.job == "" {
		return pipeline.NewJob(ds, cleaningDefaults()), nil
	}
	j, err := pipeline.LoadJob(f.job, cleaningDefaults())
	if err != nil {
		return nil, err
	}
	if len(j.Schema) == 0 {
		j.Schema = dataset.SuggestSchema(ds.Header())
	}
	return j, nil
}

func cleaningDefaults() cleaning.Config {
	if cfg == nil {
		return cleaning.DefaultConfig()
	}
	return cfg.Cleaning
}

// cleanFile reads path, applies the job's schema and runs cleaning, returning
// the session positioned at Cleaned.
func cleanFile(ctx context.Context, path string, in *inputFlags) (*pipeline.Session, *pipeline.Job, error) {
	ds, err := in.read(path)
	if err != nil {
		return nil, nil, err
	}
	job, err := in.loadJob(ds)
	if err != nil {
		return nil, nil, err
	}
	if in.seedSet {
		job.Cleaning.Seed = in.seed
	}
	s := pipeline.NewSession(filepath.Base(path), ds, logger)
	if err := s.ConfigureSchema(job.Schema); err != nil {
		return nil, nil, err
	}
	sum, err := s.RunCleaning(ctx, job.Cleaning)
	if err != nil {
		if sum != nil {
			printSummary(sum)
		}
		return nil, nil, err
	}
	return s, job, nil
}

// signalContext is cancelled on Ctrl-C so long cleaning runs stop between modules.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printSummary(sum *cleaning.Summary) {
	for _, r := range sum.Results {
		line := fmt.Sprintf("  %-16s %4d → %-4d", r.Module, r.RowsBefore, r.RowsAfter)
		if r.Method != "" {
			line += " [" + r.Method + "]"
		}
		if r.CellsAffected > 0 {
			line += fmt.Sprintf(" cells changed: %d", r.CellsAffected)
		}
		fmt.Println(line)
	}
	switch {
	case sum.Cancelled:
		fmt.Printf("⚠ Cleaning cancelled after %d module(s)\n", len(sum.Results))
	case sum.FailedModule != "":
		fmt.Printf("✗ Cleaning stopped at %s\n", sum.FailedModule)
	default:
		fmt.Printf("✓ Cleaned %d → %d rows (%d removed)\n", sum.OriginalRows, sum.ProcessedRows, sum.TotalRemoved())
	}
}

// defaultOutput names a sibling of path: survey.xlsx -> survey_<suffix>.<ext>.
func defaultOutput(path, suffix, ext string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + "_" + suffix + ext
}
