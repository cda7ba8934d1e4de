package core

import (
	"io"
	"strings"
)

// TemplateFileName is the download name of the example import file.
const TemplateFileName = "template.csv"

// templateRecords is the example file offered to users. The third row has no
// date and the fourth has no comment; both are accepted by the importer.
var templateRecords = [][]string{
	{ColumnNPS, ColumnComment, ColumnDate, "customer_id", "store"},
	{"10", "Great service!", "07.01.2026 10:15", "12345", "Berlin"},
	{"8", "Good experience", "07.01.2026 11:30", "12346", "Munich"},
	{"6", "Could be better", "", "12347", "Hamburg"},
	{"9", "", "07.01.2026 14:00", "12348", "Frankfurt"},
}

// TemplateCSV returns the example import file with every field quoted.
func TemplateCSV() string {
	var b strings.Builder
	for _, rec := range templateRecords {
		for i, field := range rec {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTemplate writes TemplateCSV to w.
func WriteTemplate(w io.Writer) error {
	_, err := io.WriteString(w, TemplateCSV())
	return err
}
