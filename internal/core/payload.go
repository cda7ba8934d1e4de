package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxReservedQuestions is the highest [Qn] column excluded from properties.
// Additional questions beyond this position are still extracted, but their
// columns also leak into properties.
const MaxReservedQuestions = 20

// insertedAtLayout is the platform's timestamp format.
const insertedAtLayout = "2006-01-02 15:04:05"

// timeNow is replaced in tests.
var timeNow = time.Now

var reservedColumns = buildReservedColumns()

func buildReservedColumns() map[string]struct{} {
	m := map[string]struct{}{
		strings.ToUpper(ColumnNPS):     {},
		strings.ToUpper(ColumnComment): {},
		strings.ToUpper(ColumnDate):    {},
		"":                             {},
	}
	for i := 1; i <= MaxReservedQuestions; i++ {
		m[QuestionColumn(i)] = struct{}{}
	}
	return m
}

// QuestionColumn returns the column name carrying the answer to the
// additional question at the given position, e.g. "[Q3]".
func QuestionColumn(position int) string {
	return fmt.Sprintf("[Q%d]", position)
}

// IsReservedColumn reports whether a header is consumed by the importer itself
// rather than forwarded as a custom property.
func IsReservedColumn(header string) bool {
	_, ok := reservedColumns[strings.ToUpper(NormalizeHeader(header))]
	return ok
}

// BuildAnswerPayload maps a row onto the primary answer wire format.
// It never fails; unparseable dates fall back to the current time.
func BuildAnswerPayload(row RawRow) AnswerPayload {
	payload, _ := buildAnswerPayload(row)
	return payload
}

// buildAnswerPayload is BuildAnswerPayload that also reports whether a
// non-empty Date cell had to be replaced by the current time.
func buildAnswerPayload(row RawRow) (AnswerPayload, bool) {
	insertedAt, fellBack := formatDate(row.Field(ColumnDate))
	return AnswerPayload{
		AnswerScore: normalizedField(row, ColumnNPS),
		Response:    StripInvisible(row.Field(ColumnComment)),
		Properties:  ExtractProperties(row),
		InsertedAt:  insertedAt,
	}, fellBack
}

// FormatDate converts a D.M.YYYY H:MM (or D.M.YYYY) cell into
// YYYY-MM-DD HH:MM:SS. Empty or unrecognised input yields the current UTC time.
// Calendar ranges are not checked here; ValidateDateFormat does that.
func FormatDate(date string) string {
	s, _ := formatDate(date)
	return s
}

func formatDate(date string) (string, bool) {
	cleaned := strings.TrimSpace(StripInvisible(date))
	if cleaned == "" {
		return nowStamp(), false
	}

	if m := dateTimeRegex.FindStringSubmatch(cleaned); m != nil {
		return fmt.Sprintf("%s-%s-%s %s:%s:00", m[3], pad2(m[2]), pad2(m[1]), pad2(m[4]), m[5]), false
	}

	if m := dateOnlyRegex.FindStringSubmatch(cleaned); m != nil {
		return fmt.Sprintf("%s-%s-%s 12:00:00", m[3], pad2(m[2]), pad2(m[1])), false
	}

	return nowStamp(), true
}

func nowStamp() string {
	return timeNow().UTC().Format(insertedAtLayout)
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// ExtractProperties returns every non-reserved column with a non-empty value.
// Keys are the normalized header; values have invisible characters removed.
// When two headers normalize to the same key, the later one in sorted header
// order wins.
func ExtractProperties(row RawRow) map[string]string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make(map[string]string)
	for _, k := range keys {
		v := StripInvisible(row[k])
		if v == "" || IsReservedColumn(k) {
			continue
		}
		props[NormalizeHeader(k)] = v
	}
	return props
}
