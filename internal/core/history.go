package core

import (
	"context"
	"time"
)

// RunSummary is the persisted record of a finished or abandoned import run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	SurveyID       string    `json:"survey_id"`
	FileName       string    `json:"file_name"`
	Phase          Phase     `json:"status"`
	TotalRows      int       `json:"total_rows"`
	ProcessedRows  int       `json:"processed_rows"`
	SkippedRows    int       `json:"skipped_rows"`
	ErrorCount     int       `json:"error_count"`
	SkipInvalid    bool      `json:"skip_invalid"`
	RequesterIP    string    `json:"requester_ip,omitempty"`
	RequesterAgent string    `json:"requester_agent,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// SuccessCount mirrors Status.SuccessCount.
func (r RunSummary) SuccessCount() int {
	return r.ProcessedRows - r.ErrorCount
}

// HistoryStore keeps run summaries.
type HistoryStore interface {
	Record(ctx context.Context, summary RunSummary) error
	Recent(ctx context.Context, limit int) ([]RunSummary, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// summarize builds the history record for a run snapshot.
func summarize(s Status, ip, agent string) RunSummary {
	finished := s.FinishedAt
	if finished.IsZero() {
		finished = timeNow().UTC()
	}
	return RunSummary{
		RunID:          s.RunID,
		SurveyID:       s.SurveyID,
		FileName:       s.FileName,
		Phase:          s.Phase,
		TotalRows:      s.TotalRows,
		ProcessedRows:  s.ProcessedRows,
		SkippedRows:    s.SkippedRows,
		ErrorCount:     len(s.ProcessingErrors),
		SkipInvalid:    s.SkipInvalid,
		RequesterIP:    ip,
		RequesterAgent: agent,
		StartedAt:      s.StartedAt,
		FinishedAt:     finished,
	}
}
