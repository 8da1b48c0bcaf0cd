// Package pipeline sequences one survey through schema configuration,
// cleaning and weighting, keeping every stage's output so the caller can step
// back and re-run a stage. Visualization and reporting are done elsewhere;
// the session only records that they happened.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
	"github.com/KaramelBytes/surveyloom-cli/internal/weights"
)

// Run is one cleaning invocation. A cancelled or failed run keeps the
// modules that completed.
type Run struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Config     cleaning.Config   `json:"config"`
	Summary    *cleaning.Summary `json:"summary"`
	Error      string            `json:"error,omitempty"`
}

func (r *Run) clone() *Run {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Summary = r.Summary.Clone()
	cp.Config = r.Config.Clone()
	return &cp
}

// Session owns the state of one survey as it moves through the stages.
// A Session is not safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time
	Name      string

	logger  *zap.Logger
	cleaner *cleaning.Engine

	current   Stage
	completed map[Stage]bool
	stale     map[Stage]bool

	raw        *dataset.Dataset
	configured *dataset.Dataset
	schema     map[string]dataset.ColumnSpec

	cleaned   *cleaning.Summary
	lastRun   *Run
	engine    *weights.Engine
	engineFor *cleaning.Summary
	committed weights.Vector
}

// NewSession starts a session on an uploaded dataset.
func NewSession(name string, ds *dataset.Dataset, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Name:      name,
		logger:    logger.With(zap.String("session", id)),
		current:   StageUploaded,
		completed: map[Stage]bool{StageUploaded: true},
		stale:     map[Stage]bool{},
		raw:       ds,
	}
	s.cleaner = cleaning.NewEngine(s.logger)
	s.logger.Info("session created", zap.String("name", name), zap.Int("rows", ds.Len()), zap.Int("columns", len(ds.Columns())))
	return s
}

// Stage is the stage the session is positioned at.
func (s *Session) Stage() Stage { return s.current }

// Completed reports whether a stage has output, fresh or stale.
func (s *Session) Completed(st Stage) bool { return s.completed[st] }

// Stale reports whether a stage's output predates a re-run of an earlier stage.
func (s *Session) Stale(st Stage) bool { return s.stale[st] }

// Raw is the uploaded dataset.
func (s *Session) Raw() *dataset.Dataset { return s.raw }

// require fails with StageOrder unless st has fresh output.
func (s *Session) require(st Stage) error {
	if !s.completed[st] {
		return apperr.New(apperr.StageOrder, "stage %s has not been completed", st)
	}
	if s.stale[st] {
		return apperr.New(apperr.StageOrder, "stage %s is out of date and must be re-run", st)
	}
	return nil
}

// complete records fresh output for st, positions the session there and marks
// every later stage that already has output as stale.
func (s *Session) complete(st Stage) {
	s.completed[st] = true
	delete(s.stale, st)
	for _, later := range Stages[st+1:] {
		if s.completed[later] {
			s.stale[later] = true
		}
	}
	from := s.current
	s.current = st
	s.logger.Info("stage complete", zap.Stringer("from", from), zap.Stringer("to", st))
}

// GoTo moves back to a completed stage. Nothing is discarded.
func (s *Session) GoTo(st Stage) error {
	if st > s.current {
		return apperr.New(apperr.StageOrder, "cannot jump forward from %s to %s", s.current, st)
	}
	if !s.completed[st] {
		return apperr.New(apperr.StageOrder, "stage %s has not been completed", st)
	}
	s.logger.Info("navigate", zap.Stringer("from", s.current), zap.Stringer("to", st))
	s.current = st
	return nil
}

// SuggestedSchema guesses types and roles from the uploaded column names.
func (s *Session) SuggestedSchema() map[string]dataset.ColumnSpec {
	return dataset.SuggestSchema(s.raw.Header())
}

// Schema returns the configured schema, or nil before configuration.
func (s *Session) Schema() map[string]dataset.ColumnSpec {
	if s.schema == nil {
		return nil
	}
	out := make(map[string]dataset.ColumnSpec, len(s.schema))
	for k, v := range s.schema {
		out[k] = v
	}
	return out
}

// ConfigureSchema applies column types and roles to the uploaded dataset.
func (s *Session) ConfigureSchema(specs map[string]dataset.ColumnSpec) error {
	ds, err := s.raw.Configure(specs)
	if err != nil {
		return err
	}
	s.configured = ds
	s.schema = make(map[string]dataset.ColumnSpec, len(ds.Columns()))
	for _, c := range ds.Columns() {
		s.schema[c.Name] = dataset.ColumnSpec{Type: c.Type, Role: c.Role}
	}
	s.complete(StageSchemaConfigured)
	return nil
}

// Configured is the dataset with the schema applied.
func (s *Session) Configured() *dataset.Dataset { return s.configured }

// RunCleaning runs the cleaning engine on the configured dataset. On success
// the session advances to Cleaned. On cancellation or a module error the
// partial run is kept as LastRun but the stage does not advance.
func (s *Session) RunCleaning(ctx context.Context, cfg cleaning.Config) (*cleaning.Summary, error) {
	if err := s.require(StageSchemaConfigured); err != nil {
		return nil, err
	}
	run := &Run{ID: uuid.NewString(), StartedAt: time.Now().UTC(), Config: cfg.Clone()}
	s.logger.Info("cleaning run started", zap.String("run", run.ID), zap.Int64("seed", cfg.Seed))
	sum, err := s.cleaner.Run(ctx, s.configured, cfg)
	run.FinishedAt = time.Now().UTC()
	run.Summary = sum
	if err != nil {
		run.Error = err.Error()
		if sum != nil {
			s.lastRun = run
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("cleaning run cancelled", zap.String("run", run.ID))
		}
		return sum, err
	}
	s.lastRun = run
	s.cleaned = sum
	s.complete(StageCleaned)
	return sum, nil
}

// LastRun is the most recent cleaning run, complete or not.
func (s *Session) LastRun() *Run { return s.lastRun }

// Cleaning is the summary of the last successful run.
func (s *Session) Cleaning() *cleaning.Summary { return s.cleaned }

// Processed is the dataset produced by the last successful cleaning run.
func (s *Session) Processed() *dataset.Dataset {
	if s.cleaned == nil {
		return nil
	}
	return s.cleaned.Output
}

// EnterWeighting starts a weight engine with an equal split over the response
// columns of the cleaned dataset. Entering again starts over.
func (s *Session) EnterWeighting() (*weights.Engine, error) {
	if err := s.require(StageCleaned); err != nil {
		return nil, err
	}
	e, err := weights.NewEngine(s.cleaned.Output.ColumnsByRole(dataset.RoleResponse))
	if err != nil {
		return nil, err
	}
	s.engine = e
	s.engineFor = s.cleaned
	s.logger.Info("weighting entered", zap.Strings("columns", e.Columns()))
	return e, nil
}

// Weights returns the active weight engine.
func (s *Session) Weights() (*weights.Engine, error) {
	if s.engine == nil {
		return nil, apperr.New(apperr.StageOrder, "weighting has not been entered")
	}
	return s.engine, nil
}

// CommitWeights checks the total guard and, if it holds, records the vector
// and advances to Weighted. A failed guard keeps the engine state as is.
func (s *Session) CommitWeights() (weights.Vector, error) {
	if err := s.require(StageCleaned); err != nil {
		return nil, err
	}
	e, err := s.Weights()
	if err != nil {
		return nil, err
	}
	if s.engineFor != s.cleaned {
		return nil, apperr.New(apperr.StageOrder, "weights were set up for an earlier cleaning run; enter weighting again")
	}
	if err := e.CheckTotal(); err != nil {
		return nil, err
	}
	s.committed = e.Weights()
	s.complete(StageWeighted)
	return s.committed.Clone(), nil
}

// Committed is the vector recorded by the last CommitWeights.
func (s *Session) Committed() weights.Vector {
	if s.committed == nil {
		return nil
	}
	return s.committed.Clone()
}

// MarkVisualized records that the visualization collaborator consumed the
// weighted output.
func (s *Session) MarkVisualized() error {
	if err := s.require(StageWeighted); err != nil {
		return err
	}
	s.complete(StageVisualized)
	return nil
}

// MarkReported records that a report was produced.
func (s *Session) MarkReported() error {
	if err := s.require(StageVisualized); err != nil {
		return err
	}
	s.complete(StageReported)
	return nil
}

// Snapshot is the view handed to visualization and report collaborators. It
// holds copies, so changes to it never reach the session.
type Snapshot struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Stage     Stage             `json:"stage"`
	Completed []Stage           `json:"completed"`
	Stale     []Stage           `json:"stale"`
	Rows      int               `json:"rows"`
	Processed *dataset.Dataset  `json:"-"`
	Cleaning  *cleaning.Summary `json:"cleaning,omitempty"`
	LastRun   *Run              `json:"last_run,omitempty"`
	Weights   *weights.State    `json:"weights,omitempty"`
	Committed weights.Vector    `json:"committed,omitempty"`
}

// Snapshot captures the session for collaborators.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		Name:      s.Name,
		Stage:     s.current,
		Completed: []Stage{},
		Stale:     []Stage{},
		Rows:      s.raw.Len(),
		Processed: s.Processed(),
		Cleaning:  s.cleaned.Clone(),
		LastRun:   s.lastRun.clone(),
		Committed: s.Committed(),
	}
	for _, st := range Stages {
		if s.completed[st] {
			snap.Completed = append(snap.Completed, st)
		}
		if s.stale[st] {
			snap.Stale = append(snap.Stale, st)
		}
	}
	if s.engine != nil {
		st := s.engine.State()
		snap.Weights = &st
	}
	return snap
}
