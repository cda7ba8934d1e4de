package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/surveyimport/internal/logging"
)

// DefaultRowDelay is the pause after every submitted row.
const DefaultRowDelay = 50 * time.Millisecond

// UnauthorizedMessage replaces the platform's error text when credentials are
// rejected.
const UnauthorizedMessage = "You are unauthorized"

// Outcomes reported to Observer.AdditionalAnswer.
const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
	OutcomeEmpty     = "empty"
)

// Observer receives processing events, typically to feed metrics.
type Observer interface {
	RowSubmitted()
	RowFailed()
	RowSkipped()
	AdditionalAnswer(outcome string)
	DateFallback()
	RunFinished(phase Phase)
}

type nopObserver struct{}

func (nopObserver) RowSubmitted()           {}
func (nopObserver) RowFailed()              {}
func (nopObserver) RowSkipped()             {}
func (nopObserver) AdditionalAnswer(string) {}
func (nopObserver) DateFallback()           {}
func (nopObserver) RunFinished(Phase)       {}

// httpStatuser is implemented by gateway errors that carry the remote status.
type httpStatuser interface {
	HTTPStatus() int
}

// ProcessorConfig configures a Processor. Zero values select defaults.
type ProcessorConfig struct {
	RowDelay time.Duration
	Observer Observer
}

// Processor submits the rows of a run to the platform, one at a time.
type Processor struct {
	gateway  Gateway
	rowDelay time.Duration
	observer Observer
	sleep    func(time.Duration)
}

// NewProcessor creates a Processor bound to a gateway.
func NewProcessor(gw Gateway, cfg ProcessorConfig) *Processor {
	p := &Processor{
		gateway:  gw,
		rowDelay: cfg.RowDelay,
		observer: cfg.Observer,
		sleep:    time.Sleep,
	}
	if p.rowDelay <= 0 {
		p.rowDelay = DefaultRowDelay
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	return p
}

// Process runs one processing pass over the tracker's rows and returns the
// final snapshot.
//
// With skipInvalid set, rows without a usable NPS score are counted as
// processed and never submitted. A failed primary submission is recorded
// against its row and the pass moves on. Failed additional answers are only
// logged. The pass ends in PhaseError when every row failed its primary
// submission, PhaseComplete otherwise.
func (p *Processor) Process(ctx context.Context, t *Tracker, skipInvalid bool) Status {
	rows := t.Rows()
	snap := t.Snapshot()
	log := logging.WithFields(ctx, "run_id", snap.RunID, "survey_id", snap.SurveyID)

	t.update(func(s *Status) {
		s.Phase = PhaseProcessing
		s.TotalRows = len(rows)
		s.ProcessedRows = 0
		s.SkippedRows = 0
		s.SkipInvalid = skipInvalid
		s.ProcessingErrors = nil
	})

	log.Info("import processing started", "rows", len(rows), "skip_invalid", skipInvalid)
	start := time.Now()

	questions, err := p.gateway.FetchAdditionalQuestions(ctx, snap.SurveyID)
	if err != nil {
		log.Warn("could not fetch additional questions, continuing without them", "error", err)
		questions = nil
	}

	failures := 0
	for i, row := range rows {
		if t.Abandoned() {
			log.Info("import abandoned", "processed", i)
			p.observer.RunFinished(PhaseAbandoned)
			return t.Snapshot()
		}

		rowNum := i + 1

		if skipInvalid && !IsRowValid(row) {
			p.observer.RowSkipped()
			t.update(func(s *Status) {
				s.ProcessedRows++
				s.SkippedRows++
			})
			continue
		}

		payload, fellBack := buildAnswerPayload(row)
		if fellBack {
			log.Warn("unparseable date replaced with current time",
				"row", rowNum,
				"date", row.Field(ColumnDate),
				"inserted_at", payload.InsertedAt,
			)
			p.observer.DateFallback()
		}

		var rowErr string
		receipt, err := p.gateway.SubmitAnswer(ctx, snap.SurveyID, payload)
		if err != nil {
			failures++
			rowErr = RowErrorMessage(rowNum, err)
			p.observer.RowFailed()
			log.Info("row rejected", "row", rowNum, "message", rowErr)
			log.Debug("row rejected", "row", rowNum, "error", err)
		} else {
			p.observer.RowSubmitted()
			if receipt.ID != "" && len(questions) > 0 {
				p.submitAdditional(ctx, log, rowNum, receipt.ID, row, questions)
			}
		}

		t.update(func(s *Status) {
			s.ProcessedRows++
			if rowErr != "" {
				s.ProcessingErrors = append(s.ProcessingErrors, rowErr)
			}
		})

		p.sleep(p.rowDelay)
	}

	phase := PhaseComplete
	if len(rows) > 0 && failures == len(rows) {
		phase = PhaseError
	}

	if !t.finish(phase) {
		log.Info("import abandoned", "processed", len(rows))
		p.observer.RunFinished(PhaseAbandoned)
		return t.Snapshot()
	}
	p.observer.RunFinished(phase)

	final := t.Snapshot()
	log.Info("import processing finished",
		"status", phase,
		"processed", final.ProcessedRows,
		"skipped", final.SkippedRows,
		"errors", len(final.ProcessingErrors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return final
}

// submitAdditional sends every non-empty additional answer for one row.
// Each submission is independent; failures never reach the run's error list.
func (p *Processor) submitAdditional(ctx context.Context, log *slog.Logger, rowNum int, answerID string, row RawRow, questions []AdditionalQuestion) {
	for _, a := range GetAdditionalAnswers(row, questions) {
		if a.Answer.IsEmpty() {
			p.observer.AdditionalAnswer(OutcomeEmpty)
			continue
		}

		if err := p.gateway.SubmitAdditionalAnswer(ctx, answerID, a.QuestionID, a.Answer); err != nil {
			p.observer.AdditionalAnswer(OutcomeFailed)
			log.Warn("additional answer failed",
				"row", rowNum,
				"answer_id", answerID,
				"question_id", a.QuestionID,
				"position", a.Position,
				"error", err,
			)
			continue
		}
		p.observer.AdditionalAnswer(OutcomeSubmitted)
	}
}

// RowErrorMessage formats a primary submission failure for display.
// Rejected credentials are reported as "Row N: You are unauthorized".
func RowErrorMessage(rowNum int, err error) string {
	if isUnauthorized(err) {
		return fmt.Sprintf("Row %d: %s", rowNum, UnauthorizedMessage)
	}
	return fmt.Sprintf("Row %d: %s", rowNum, err.Error())
}

func isUnauthorized(err error) bool {
	var hs httpStatuser
	if errors.As(err, &hs) {
		return hs.HTTPStatus() == 401
	}
	return strings.Contains(err.Error(), "401")
}
