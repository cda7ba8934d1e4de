package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

type recordingGateway struct {
	mu     sync.Mutex
	scores []string
	err    error
}

func (g *recordingGateway) SubmitAnswer(_ context.Context, _ string, p core.AnswerPayload) (core.AnswerReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return core.AnswerReceipt{}, g.err
	}
	g.scores = append(g.scores, p.AnswerScore)
	return core.AnswerReceipt{}, nil
}

func (g *recordingGateway) FetchAdditionalQuestions(context.Context, string) ([]core.AdditionalQuestion, error) {
	return nil, nil
}

func (g *recordingGateway) SubmitAdditionalAnswer(context.Context, string, string, core.AnswerValue) error {
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newService(gw core.Gateway) *core.Service {
	return core.NewService(gw, core.ServiceConfig{RowDelay: time.Millisecond, MaxWait: time.Second})
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailed
}

func TestImportFile_Clean(t *testing.T) {
	gw := &recordingGateway{}
	var out bytes.Buffer

	err := importFile(context.Background(), newService(gw), &out, runOptions{
		surveyID: "survey-1",
		file:     writeFile(t, "answers.csv", "NPS,Comment\n9,good\n2,bad\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"9", "2"}, gw.scores)
	assert.Contains(t, out.String(), "Status:    complete")
	assert.Contains(t, out.String(), "2 total, 2 processed, 0 skipped, 2 succeeded")
}

func TestImportFile_ValidationStops(t *testing.T) {
	gw := &recordingGateway{}
	var out bytes.Buffer

	err := importFile(context.Background(), newService(gw), &out, runOptions{
		surveyID: "survey-1",
		file:     writeFile(t, "answers.csv", "NPS\n9\n11\n"),
	})
	require.Error(t, err)
	assert.Equal(t, exitValidation, exitCode(err))
	assert.Empty(t, gw.scores)
	assert.Contains(t, out.String(), "Row 2: NPS score '11' is invalid (must be a number 0-10)")
}

func TestImportFile_ProceedAnyway(t *testing.T) {
	gw := &recordingGateway{}
	var out bytes.Buffer

	err := importFile(context.Background(), newService(gw), &out, runOptions{
		surveyID:      "survey-1",
		file:          writeFile(t, "answers.csv", "NPS\n9\n11\n3\n"),
		proceedAnyway: true,
		jsonOutput:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"9", "3"}, gw.scores)
	assert.Contains(t, out.String(), `"skipped_rows": 1`)
}

func TestImportFile_MissingHeaderCannotProceed(t *testing.T) {
	err := importFile(context.Background(), newService(&recordingGateway{}), &bytes.Buffer{}, runOptions{
		surveyID:      "survey-1",
		file:          writeFile(t, "answers.csv", "Score\n9\n"),
		proceedAnyway: true,
	})
	require.Error(t, err)
	assert.Equal(t, exitValidation, exitCode(err))
}

func TestImportFile_AllRowsFail(t *testing.T) {
	gw := &recordingGateway{err: errors.New("zenloop API error: 500 - boom")}
	var out bytes.Buffer

	err := importFile(context.Background(), newService(gw), &out, runOptions{
		surveyID: "survey-1",
		file:     writeFile(t, "answers.csv", "NPS\n9\n"),
	})
	require.Error(t, err)
	assert.Equal(t, exitFailed, exitCode(err))
	assert.Contains(t, out.String(), "Row 1: zenloop API error: 500 - boom")
}

func TestImportFile_EmptyFile(t *testing.T) {
	err := importFile(context.Background(), newService(&recordingGateway{}), &bytes.Buffer{}, runOptions{
		surveyID: "survey-1",
		file:     writeFile(t, "answers.csv", "NPS\n"),
	})
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
	assert.Contains(t, err.Error(), "FILE002")
}

func TestTemplateCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"template"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, core.TemplateCSV(), out.String())
}

func TestRunCmd_RequiresFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--file", "x.csv"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "survey")
}

func TestUserError(t *testing.T) {
	err := userError(core.ErrMissingSurveyID)
	assert.Contains(t, err.Error(), "(Code: ")
	assert.ErrorIs(t, err, core.ErrMissingSurveyID)

	raw := errors.New("disk on fire")
	assert.Equal(t, raw, userError(raw))
}
