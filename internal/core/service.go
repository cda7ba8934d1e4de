package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/surveyimport/internal/logging"
)

// HistoryTimeout bounds how long recording a finished run may take.
var HistoryTimeout = 5 * time.Second

// DefaultRetainFinished is how long a finished run stays queryable.
const DefaultRetainFinished = 30 * time.Minute

var (
	// ErrRunNotFound is returned for unknown, evicted or reset runs.
	ErrRunNotFound = errors.New("import run not found")

	// ErrMissingSurveyID is returned when the survey identifier is blank.
	ErrMissingSurveyID = errors.New("Please enter a Survey Hash ID")

	// ErrMissingFile is returned when no file was supplied.
	ErrMissingFile = errors.New("Please select a CSV file")

	// ErrNotOverridable is returned when proceed-anyway is requested for a
	// file that is missing its NPS column.
	ErrNotOverridable = errors.New("import cannot proceed: the file is missing required columns")

	// ErrRunBusy is returned when proceed-anyway is requested for a run that
	// is not waiting on a validation decision.
	ErrRunBusy = errors.New("import run is not awaiting a decision")
)

// ServiceConfig configures a Service. Zero values select defaults.
type ServiceConfig struct {
	RowDelay       time.Duration
	MaxConcurrent  int
	MaxWait        time.Duration
	RetainFinished time.Duration
	Observer       Observer
	History        HistoryStore
}

// Service owns every import run in the process.
type Service struct {
	processor *Processor
	limiter   *ImportLimiter
	history   HistoryStore
	retain    time.Duration

	mu   sync.RWMutex
	runs map[string]*importRun
}

type importRun struct {
	tracker *Tracker
	ip      string
	agent   string
}

// NewService creates a Service that submits through gw.
func NewService(gw Gateway, cfg ServiceConfig) *Service {
	retain := cfg.RetainFinished
	if retain <= 0 {
		retain = DefaultRetainFinished
	}
	return &Service{
		processor: NewProcessor(gw, ProcessorConfig{RowDelay: cfg.RowDelay, Observer: cfg.Observer}),
		limiter:   NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		history:   cfg.History,
		retain:    retain,
		runs:      make(map[string]*importRun),
	}
}

// StartImport parses and validates a file. A clean file starts processing in
// the background and the returned snapshot is in PhaseProcessing. A file with
// validation errors is retained in PhaseValidationFailed for ProceedAnyway.
func (s *Service) StartImport(ctx context.Context, surveyID, fileName string, r io.Reader) (Status, error) {
	surveyID = strings.TrimSpace(surveyID)
	if surveyID == "" {
		return Status{}, ErrMissingSurveyID
	}
	if r == nil {
		return Status{}, ErrMissingFile
	}

	table, err := ParseTabular(fileName, r)
	if err != nil {
		return Status{}, fmt.Errorf("parse %s: %w", fileName, err)
	}
	if len(table.Rows) == 0 && ValidateHeaders(table.Headers) == nil {
		return Status{}, ErrEmptyFile
	}

	run := &importRun{
		tracker: NewTracker(uuid.NewString(), surveyID, fileName),
		ip:      IPAddressFromContext(ctx),
		agent:   UserAgentFromContext(ctx),
	}
	t := run.tracker
	t.setRows(table.Rows)
	t.update(func(st *Status) { st.Phase = PhaseValidating })

	log := logging.WithFields(ctx, "run_id", t.RunID(), "survey_id", surveyID)
	if table.ReplacedBytes > 0 {
		log.Warn("invalid UTF-8 replaced in upload", "file", fileName, "bytes", table.ReplacedBytes)
	}

	if verrs := ValidateCSV(table.Headers, table.Rows); len(verrs) > 0 {
		t.update(func(st *Status) {
			st.Phase = PhaseValidationFailed
			st.ValidationErrors = verrs
		})
		s.register(run)
		log.Info("import validation failed", "file", fileName, "rows", len(table.Rows), "errors", len(verrs))
		return t.Snapshot(), nil
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Status{}, err
	}
	s.register(run)
	log.Info("import validated", "file", fileName, "rows", len(table.Rows))

	return s.launch(ctx, run, false), nil
}

// ProceedAnyway processes a run that failed row validation, skipping every
// row without a usable NPS score.
func (s *Service) ProceedAnyway(ctx context.Context, runID string) (Status, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return Status{}, err
	}

	snap := run.tracker.Snapshot()
	if snap.Phase != PhaseValidationFailed {
		return snap, ErrRunBusy
	}
	if !snap.CanProceedAnyway() {
		return snap, ErrNotOverridable
	}
	if !run.tracker.decide() {
		return snap, ErrRunBusy
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		run.tracker.undecide()
		return snap, err
	}
	return s.launch(ctx, run, true), nil
}

// launch starts a processing pass in the background. The caller holds a
// limiter slot, which the pass releases when it ends.
func (s *Service) launch(ctx context.Context, run *importRun, skipInvalid bool) Status {
	t := run.tracker
	if !t.claim() {
		s.limiter.Release()
		return t.Snapshot()
	}

	t.update(func(st *Status) {
		st.Phase = PhaseProcessing
		st.SkipInvalid = skipInvalid
	})
	snap := t.Snapshot()

	// Processing outlives the request that started it.
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer s.limiter.Release()
		defer t.release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import run", "run_id", snap.RunID, "panic", r)
				t.update(func(st *Status) {
					st.Phase = PhaseError
					st.ProcessingErrors = append(st.ProcessingErrors, "Import stopped unexpectedly")
					st.FinishedAt = timeNow().UTC()
				})
			}
			s.finish(run)
		}()

		s.processor.Process(runCtx, t, skipInvalid)
	}()

	return snap
}

// finish records the run and schedules its eviction.
func (s *Service) finish(run *importRun) {
	snap := run.tracker.Snapshot()

	if s.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), HistoryTimeout)
		defer cancel()
		if err := s.history.Record(ctx, summarize(snap, run.ip, run.agent)); err != nil {
			slog.Error("record import history failed", "run_id", snap.RunID, "error", err)
		}
	}

	time.AfterFunc(s.retain, func() {
		s.mu.Lock()
		if cur, ok := s.runs[snap.RunID]; ok && cur == run {
			delete(s.runs, snap.RunID)
		}
		s.mu.Unlock()
	})
}

// Reset abandons a run. Processing stops after the row in flight and the run
// is no longer queryable.
func (s *Service) Reset(runID string) error {
	s.mu.Lock()
	run, ok := s.runs[runID]
	if ok {
		delete(s.runs, runID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrRunNotFound
	}

	run.tracker.Abandon()
	slog.Info("import reset", "run_id", runID)
	return nil
}

// Status returns the current snapshot of a run.
func (s *Service) Status(runID string) (Status, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return Status{}, err
	}
	return run.tracker.Snapshot(), nil
}

// Subscribe streams snapshots of a run. The channel is closed when the run
// ends or is reset; cancel stops the subscription early.
func (s *Service) Subscribe(runID string) (<-chan Status, func(), error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := run.tracker.Subscribe()
	return ch, cancel, nil
}

// Await blocks until the run leaves the validating and processing phases,
// then returns its snapshot.
func (s *Service) Await(ctx context.Context, runID string) (Status, error) {
	ch, cancel, err := s.Subscribe(runID)
	if err != nil {
		return Status{}, err
	}
	defer cancel()

	var last Status
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case st, ok := <-ch:
			if !ok {
				return last, nil
			}
			last = st
			if st.Phase.IsTerminal() || st.Phase == PhaseValidationFailed {
				return last, nil
			}
		}
	}
}

// ActiveImports returns how many processing passes hold a limiter slot.
func (s *Service) ActiveImports() int {
	return s.limiter.Active()
}

// Shutdown waits for running passes to finish or ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) register(run *importRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.tracker.RunID()] = run
}

func (s *Service) lookup(runID string) (*importRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}
