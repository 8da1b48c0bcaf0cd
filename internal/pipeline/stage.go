package pipeline

import (
	"strings"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
)

// Stage is a step of the wizard, in the only order they may be completed.
type Stage int

const (
	StageUploaded Stage = iota
	StageSchemaConfigured
	StageCleaned
	StageWeighted
	StageVisualized
	StageReported
)

var stageNames = []string{"uploaded", "schema_configured", "cleaned", "weighted", "visualized", "reported"}

// Stages lists every stage in order.
var Stages = []Stage{StageUploaded, StageSchemaConfigured, StageCleaned, StageWeighted, StageVisualized, StageReported}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// ParseStage accepts the names produced by String, case-insensitively.
func ParseStage(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range stageNames {
		if s == n {
			return Stage(i), nil
		}
	}
	return 0, apperr.New(apperr.InvalidParameter, "unknown stage").WithValue(name)
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
