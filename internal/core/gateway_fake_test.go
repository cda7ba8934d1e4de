package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeGateway records every call and answers from per-row scripts.
type fakeGateway struct {
	mu sync.Mutex

	questions    []AdditionalQuestion
	questionsErr error

	// failScores makes SubmitAnswer fail for payloads with these scores.
	failScores map[string]error
	// noID makes SubmitAnswer succeed without an answer id.
	noID bool
	// failQuestions makes SubmitAdditionalAnswer fail for these question ids.
	failQuestions map[string]bool

	// block, when set, is received from before every SubmitAnswer returns.
	block chan struct{}

	answers     []AnswerPayload
	additionals []submittedAdditional
	fetches     int
}

type submittedAdditional struct {
	AnswerID   string
	QuestionID string
	Answer     AnswerValue
}

func (g *fakeGateway) SubmitAnswer(_ context.Context, _ string, payload AnswerPayload) (AnswerReceipt, error) {
	if g.block != nil {
		<-g.block
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.answers = append(g.answers, payload)
	if err, ok := g.failScores[payload.AnswerScore]; ok {
		return AnswerReceipt{}, err
	}
	if g.noID {
		return AnswerReceipt{}, nil
	}
	return AnswerReceipt{ID: fmt.Sprintf("ans-%d", len(g.answers))}, nil
}

func (g *fakeGateway) FetchAdditionalQuestions(context.Context, string) ([]AdditionalQuestion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	return g.questions, g.questionsErr
}

func (g *fakeGateway) SubmitAdditionalAnswer(_ context.Context, answerID, questionID string, answer AnswerValue) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.additionals = append(g.additionals, submittedAdditional{answerID, questionID, answer})
	if g.failQuestions[questionID] {
		return errors.New("zenloop API error: 422 - invalid option")
	}
	return nil
}

func (g *fakeGateway) submittedScores() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.answers))
	for i, a := range g.answers {
		out[i] = a.AnswerScore
	}
	return out
}

// countingObserver tallies Observer events.
type countingObserver struct {
	mu         sync.Mutex
	submitted  int
	failed     int
	skipped    int
	additional map[string]int
	fallbacks  int
	finished   []Phase
}

func newCountingObserver() *countingObserver {
	return &countingObserver{additional: make(map[string]int)}
}

func (o *countingObserver) RowSubmitted() { o.mu.Lock(); o.submitted++; o.mu.Unlock() }
func (o *countingObserver) RowFailed()    { o.mu.Lock(); o.failed++; o.mu.Unlock() }
func (o *countingObserver) RowSkipped()   { o.mu.Lock(); o.skipped++; o.mu.Unlock() }
func (o *countingObserver) DateFallback() { o.mu.Lock(); o.fallbacks++; o.mu.Unlock() }

func (o *countingObserver) AdditionalAnswer(outcome string) {
	o.mu.Lock()
	o.additional[outcome]++
	o.mu.Unlock()
}

func (o *countingObserver) RunFinished(phase Phase) {
	o.mu.Lock()
	o.finished = append(o.finished, phase)
	o.mu.Unlock()
}
