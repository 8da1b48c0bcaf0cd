package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
	"github.com/KaramelBytes/surveyloom-cli/internal/utils"
)

// Job is a YAML description of a batch run: the schema to apply, the cleaning
// configuration and optionally weight edits for the CLI.
type Job struct {
	Schema   map[string]dataset.ColumnSpec `yaml:"schema"`
	Cleaning cleaning.Config               `yaml:"cleaning"`
	// Weights, if set, is applied as a suggestion after entering weighting.
	Weights map[string]float64 `yaml:"weights,omitempty"`
	// Locked columns are locked after any suggestion is applied.
	Locked []string `yaml:"locked,omitempty"`
}

// NewJob builds a job skeleton for a dataset: the suggested schema plus the
// given cleaning defaults.
func NewJob(ds *dataset.Dataset, defaults cleaning.Config) *Job {
	return &Job{Schema: dataset.SuggestSchema(ds.Header()), Cleaning: defaults}
}

// LoadJob reads a job file. Cleaning fields the file leaves out keep the
// values in defaults.
func LoadJob(path string, defaults cleaning.Config) (*Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	j := &Job{Cleaning: defaults}
	if err := yaml.Unmarshal(b, j); err != nil {
		return nil, fmt.Errorf("parse job %s: %w", path, err)
	}
	return j, nil
}

// Save writes the job as YAML.
func (j *Job) Save(path string) error {
	b, err := j.Marshal()
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

// Marshal renders the job as YAML. Map keys come out sorted.
func (j *Job) Marshal() ([]byte, error) {
	b, err := yaml.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return b, nil
}
