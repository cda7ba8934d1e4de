package core

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Reserved column names. Lookups against them are case-insensitive and ignore
// invisible characters and surrounding whitespace in the header.
const (
	ColumnNPS     = "NPS"
	ColumnComment = "Comment"
	ColumnDate    = "Date"
)

// RawRow maps a header name to its cell value, exactly as declared by the
// source file. A missing key means the row had no cell for that column.
type RawRow map[string]string

// Field returns the value of the named column.
// An exact key match wins; otherwise the first header (in sorted order) whose
// normalized form equals name case-insensitively is used.
func (r RawRow) Field(name string) string {
	if v, ok := r[name]; ok {
		return v
	}

	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.EqualFold(NormalizeHeader(k), name) {
			return r[k]
		}
	}
	return ""
}

// Table is the output of the tabular parser: the ordered header list and the
// ordered data rows.
type Table struct {
	Headers []string
	Rows    []RawRow

	// ReplacedBytes counts invalid UTF-8 bytes replaced while reading a CSV.
	ReplacedBytes int
}

// ValidationError describes one validation failure.
// Row is 1-based; 0 is reserved for header-level errors.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// IsStructural reports whether the error concerns the file layout rather than
// a single row. Structural errors cannot be overridden.
func (e ValidationError) IsStructural() bool {
	return e.Row == 0
}

// AnswerPayload is the wire format of a primary answer.
type AnswerPayload struct {
	AnswerScore string            `json:"answer_score"`
	Response    string            `json:"response"`
	Properties  map[string]string `json:"properties"`
	InsertedAt  string            `json:"inserted_at"`
}

// AdditionalQuestion is a supplementary survey question addressed by its
// 1-based position through a [Qn] column.
type AdditionalQuestion struct {
	ID       string   `json:"public_hash_id"`
	Question string   `json:"question"`
	Position int      `json:"position"`
	Type     string   `json:"type"`
	Options  []string `json:"options"`
}

// AnswerValue is either a single string or an ordered list of options.
// It marshals to a JSON string or a JSON array accordingly.
type AnswerValue struct {
	Single string
	Multi  []string
	IsList bool
}

// IsEmpty reports whether the answer carries nothing worth submitting.
func (v AnswerValue) IsEmpty() bool {
	if v.IsList {
		return len(v.Multi) == 0
	}
	return strings.TrimSpace(v.Single) == ""
}

// String returns a display form of the answer.
func (v AnswerValue) String() string {
	if v.IsList {
		return "[" + strings.Join(v.Multi, ", ") + "]"
	}
	return v.Single
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		if v.Multi == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Multi)
	}
	return json.Marshal(v.Single)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = AnswerValue{Multi: list, IsList: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = AnswerValue{Single: s}
	return nil
}

// AdditionalAnswer pairs a remote question id with the parsed cell value.
type AdditionalAnswer struct {
	QuestionID string
	Position   int
	Answer     AnswerValue
}

// AnswerReceipt is what the platform returns for an accepted primary answer.
// ID may be empty if the platform did not echo one.
type AnswerReceipt struct {
	ID string
}

// Gateway is the remote survey platform as seen by the orchestrator.
// Every call is attempted exactly once.
type Gateway interface {
	SubmitAnswer(ctx context.Context, surveyID string, payload AnswerPayload) (AnswerReceipt, error)
	FetchAdditionalQuestions(ctx context.Context, surveyID string) ([]AdditionalQuestion, error)
	SubmitAdditionalAnswer(ctx context.Context, answerID, questionID string, answer AnswerValue) error
}

// Phase indicates the current stage of an import run.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseValidating       Phase = "validating"
	PhaseValidationFailed Phase = "validation_failed"
	PhaseProcessing       Phase = "processing"
	PhaseComplete         Phase = "complete"
	PhaseError            Phase = "error"

	// PhaseAbandoned marks a run that was reset before it finished. It is
	// only seen in history.
	PhaseAbandoned Phase = "abandoned"
)

// IsTerminal reports whether no further transitions happen on their own.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// Status is an immutable snapshot of an import run handed to observers.
// Slices are never shared with the run that produced the snapshot.
type Status struct {
	RunID            string            `json:"run_id"`
	SurveyID         string            `json:"survey_id"`
	FileName         string            `json:"file_name"`
	Phase            Phase             `json:"status"`
	TotalRows        int               `json:"total_rows"`
	ProcessedRows    int               `json:"processed_rows"`
	SkippedRows      int               `json:"skipped_rows"`
	SkipInvalid      bool              `json:"skip_invalid"`
	ValidationErrors []ValidationError `json:"validation_errors"`
	ProcessingErrors []string          `json:"processing_errors"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at,omitzero"`
}

// SuccessCount is the number of processed rows that did not record a primary
// submission error. Rows skipped as invalid count as processed.
func (s Status) SuccessCount() int {
	return s.ProcessedRows - len(s.ProcessingErrors)
}

// Percent returns progress as a percentage (0-100).
func (s Status) Percent() int {
	if s.TotalRows <= 0 {
		return 0
	}
	return (s.ProcessedRows * 100) / s.TotalRows
}

// CanProceedAnyway reports whether the run failed validation only on
// row-level errors, which can be skipped.
func (s Status) CanProceedAnyway() bool {
	if s.Phase != PhaseValidationFailed {
		return false
	}
	for _, e := range s.ValidationErrors {
		if e.IsStructural() {
			return false
		}
	}
	return true
}
