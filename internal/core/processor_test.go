package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(gw Gateway, obs Observer) *Processor {
	p := NewProcessor(gw, ProcessorConfig{Observer: obs})
	p.sleep = func(time.Duration) {}
	return p
}

func newTestTracker(rows ...RawRow) *Tracker {
	t := NewTracker("run-1", "survey-1", "answers.csv")
	t.setRows(rows)
	return t
}

func TestProcess_AllRowsSucceed(t *testing.T) {
	gw := &fakeGateway{}
	obs := newCountingObserver()
	tr := newTestTracker(
		RawRow{"NPS": "10", "Comment": "Great!", "Date": "07.01.2026 10:15", "customer_id": "123"},
		RawRow{"NPS": "3"},
	)

	final := newTestProcessor(gw, obs).Process(context.Background(), tr, false)

	assert.Equal(t, PhaseComplete, final.Phase)
	assert.Equal(t, 2, final.TotalRows)
	assert.Equal(t, 2, final.ProcessedRows)
	assert.Empty(t, final.ProcessingErrors)
	assert.Equal(t, 2, final.SuccessCount())
	assert.False(t, final.FinishedAt.IsZero())

	require.Len(t, gw.answers, 2)
	assert.Equal(t, AnswerPayload{
		AnswerScore: "10",
		Response:    "Great!",
		Properties:  map[string]string{"customer_id": "123"},
		InsertedAt:  "2026-01-07 10:15:00",
	}, gw.answers[0])
	assert.Equal(t, 1, gw.fetches, "questions are fetched once per run")

	assert.Equal(t, 2, obs.submitted)
	assert.Equal(t, []Phase{PhaseComplete}, obs.finished)
}

func TestProcess_AllRowsFail(t *testing.T) {
	gw := &fakeGateway{failScores: map[string]error{
		"5": errors.New("zenloop API error: 500 - boom"),
		"6": errors.New("zenloop API error: 500 - boom"),
	}}
	tr := newTestTracker(RawRow{"NPS": "5"}, RawRow{"NPS": "6"})

	final := newTestProcessor(gw, nil).Process(context.Background(), tr, false)

	assert.Equal(t, PhaseError, final.Phase)
	assert.Equal(t, 2, final.ProcessedRows)
	assert.Equal(t, []string{
		"Row 1: zenloop API error: 500 - boom",
		"Row 2: zenloop API error: 500 - boom",
	}, final.ProcessingErrors)
	assert.Equal(t, 0, final.SuccessCount())
}

func TestProcess_PartialFailureIsComplete(t *testing.T) {
	gw := &fakeGateway{failScores: map[string]error{
		"2": errors.New("zenloop API error: 422 - bad payload"),
	}}
	tr := newTestTracker(RawRow{"NPS": "1"}, RawRow{"NPS": "2"}, RawRow{"NPS": "3"})

	final := newTestProcessor(gw, nil).Process(context.Background(), tr, false)

	assert.Equal(t, PhaseComplete, final.Phase)
	assert.Equal(t, []string{"Row 2: zenloop API error: 422 - bad payload"}, final.ProcessingErrors)
	assert.Equal(t, final.ProcessedRows-len(final.ProcessingErrors), final.SuccessCount())
	assert.Equal(t, 2, final.SuccessCount())
	assert.Equal(t, []string{"1", "2", "3"}, gw.submittedScores(), "a failed row never aborts the run")
}

func TestProcess_UnauthorizedRewritten(t *testing.T) {
	gw := &fakeGateway{failScores: map[string]error{
		"4": errors.New("zenloop API error: 401 - Unauthorized"),
	}}
	tr := newTestTracker(RawRow{"NPS": "4"}, RawRow{"NPS": "8"})

	final := newTestProcessor(gw, nil).Process(context.Background(), tr, false)

	assert.Equal(t, []string{"Row 1: You are unauthorized"}, final.ProcessingErrors)
	assert.Equal(t, PhaseComplete, final.Phase)
}

type statusErr int

func (e statusErr) Error() string   { return "remote said no" }
func (e statusErr) HTTPStatus() int { return int(e) }

func TestRowErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "plain", err: errors.New("zenloop API error: 500 - x"), want: "Row 3: zenloop API error: 500 - x"},
		{name: "401 in text", err: errors.New("zenloop API error: 401 - nope"), want: "Row 3: You are unauthorized"},
		{name: "typed 401", err: statusErr(401), want: "Row 3: You are unauthorized"},
		{name: "typed 403", err: statusErr(403), want: "Row 3: remote said no"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RowErrorMessage(3, tt.err))
		})
	}
}

func TestProcess_SkipInvalid(t *testing.T) {
	gw := &fakeGateway{}
	obs := newCountingObserver()
	tr := newTestTracker(
		RawRow{"NPS": "9"},
		RawRow{"NPS": "15"},
		RawRow{"NPS": ""},
		RawRow{"NPS": "0", "Date": "not a date"},
	)

	final := newTestProcessor(gw, obs).Process(context.Background(), tr, true)

	assert.Equal(t, PhaseComplete, final.Phase)
	assert.Equal(t, 4, final.ProcessedRows)
	assert.Equal(t, 2, final.SkippedRows)
	assert.True(t, final.SkipInvalid)
	assert.Empty(t, final.ProcessingErrors)
	assert.Equal(t, []string{"9", "0"}, gw.submittedScores())

	assert.Equal(t, 2, obs.skipped)
	assert.Equal(t, 1, obs.fallbacks, "bad dates on the override path are reported")
}

func TestProcess_WithoutSkipInvalidSubmitsEverything(t *testing.T) {
	gw := &fakeGateway{}
	tr := newTestTracker(RawRow{"NPS": "15"})

	final := newTestProcessor(gw, nil).Process(context.Background(), tr, false)

	assert.Equal(t, []string{"15"}, gw.submittedScores())
	assert.Equal(t, 0, final.SkippedRows)
}

func TestProcess_AdditionalAnswers(t *testing.T) {
	gw := &fakeGateway{
		questions: []AdditionalQuestion{
			{ID: "q1", Position: 1},
			{ID: "q2", Position: 2},
			{ID: "q3", Position: 3},
		},
		failQuestions: map[string]bool{"q1": true},
	}
	obs := newCountingObserver()
	tr := newTestTracker(RawRow{
		"NPS":  "9",
		"[Q1]": "Yes",
		"[Q2]": "[{Red},{Blue}]",
	})

	final := newTestProcessor(gw, obs).Process(context.Background(), tr, false)

	assert.Equal(t, PhaseComplete, final.Phase)
	assert.Empty(t, final.ProcessingErrors, "dependent failures stay out of the error list")
	assert.Equal(t, []submittedAdditional{
		{AnswerID: "ans-1", QuestionID: "q1", Answer: AnswerValue{Single: "Yes"}},
		{AnswerID: "ans-1", QuestionID: "q2", Answer: AnswerValue{Multi: []string{"Red", "Blue"}, IsList: true}},
	}, gw.additionals, "failures do not stop later answers and empty answers are not sent")

	assert.Equal(t, 1, obs.additional[OutcomeFailed])
	assert.Equal(t, 1, obs.additional[OutcomeSubmitted])
	assert.Equal(t, 1, obs.additional[OutcomeEmpty])
}

func TestProcess_AdditionalAnswersNeedAnswerID(t *testing.T) {
	gw := &fakeGateway{
		questions: []AdditionalQuestion{{ID: "q1", Position: 1}},
		noID:      true,
	}
	tr := newTestTracker(RawRow{"NPS": "9", "[Q1]": "Yes"})

	newTestProcessor(gw, nil).Process(context.Background(), tr, false)

	assert.Empty(t, gw.additionals)
}

func TestProcess_QuestionFetchFailureIsNotFatal(t *testing.T) {
	gw := &fakeGateway{questionsErr: errors.New("zenloop API error: 503 - down")}
	tr := newTestTracker(RawRow{"NPS": "9", "[Q1]": "Yes"})

	final := newTestProcessor(gw, nil).Process(context.Background(), tr, false)

	assert.Equal(t, PhaseComplete, final.Phase)
	assert.Len(t, gw.answers, 1)
	assert.Empty(t, gw.additionals)
	assert.Empty(t, final.ProcessingErrors)
}

func TestProcess_ResetsCountsOnRerun(t *testing.T) {
	gw := &fakeGateway{failScores: map[string]error{"1": errors.New("nope")}}
	tr := newTestTracker(RawRow{"NPS": "1"}, RawRow{"NPS": "2"})
	p := newTestProcessor(gw, nil)

	p.Process(context.Background(), tr, false)
	final := p.Process(context.Background(), tr, false)

	assert.Equal(t, 2, final.ProcessedRows)
	assert.Len(t, final.ProcessingErrors, 1)
}

func TestProcess_PausesAfterSubmittedRowsOnly(t *testing.T) {
	gw := &fakeGateway{}
	tr := newTestTracker(RawRow{"NPS": "1"}, RawRow{"NPS": "x"}, RawRow{"NPS": "2"})

	p := NewProcessor(gw, ProcessorConfig{RowDelay: 7 * time.Millisecond})
	var pauses []time.Duration
	p.sleep = func(d time.Duration) { pauses = append(pauses, d) }

	p.Process(context.Background(), tr, true)

	assert.Equal(t, []time.Duration{7 * time.Millisecond, 7 * time.Millisecond}, pauses)
}

func TestProcess_DefaultRowDelay(t *testing.T) {
	p := NewProcessor(&fakeGateway{}, ProcessorConfig{})
	assert.Equal(t, DefaultRowDelay, p.rowDelay)
	assert.Greater(t, p.rowDelay, time.Duration(0))
}

func TestProcess_ProgressIsMonotonic(t *testing.T) {
	gw := &fakeGateway{}
	tr := newTestTracker(RawRow{"NPS": "1"}, RawRow{"NPS": "2"}, RawRow{"NPS": "3"})
	ch, cancel := tr.Subscribe()
	defer cancel()

	final := newTestProcessor(gw, nil).Process(context.Background(), tr, false)

	last := -1
	var phases []Phase
	for st := range ch {
		assert.GreaterOrEqual(t, st.ProcessedRows, last)
		last = st.ProcessedRows
		phases = append(phases, st.Phase)
	}

	assert.Equal(t, final.TotalRows, last)
	assert.Equal(t, PhaseComplete, phases[len(phases)-1])
}

func TestProcess_StopsWhenAbandoned(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	tr := newTestTracker(RawRow{"NPS": "1"}, RawRow{"NPS": "2"}, RawRow{"NPS": "3"})

	obs := newCountingObserver()
	done := make(chan Status)
	go func() {
		done <- newTestProcessor(gw, obs).Process(context.Background(), tr, false)
	}()

	gw.block <- struct{}{}
	tr.Abandon()
	close(gw.block)

	final := <-done
	assert.Equal(t, PhaseAbandoned, final.Phase)
	assert.False(t, final.FinishedAt.IsZero())
	assert.LessOrEqual(t, len(gw.submittedScores()), 2)
	assert.Equal(t, []Phase{PhaseAbandoned}, obs.finished)
}
