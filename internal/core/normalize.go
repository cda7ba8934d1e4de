package core

import "strings"

// invisibleReplacer removes the code points spreadsheet exports tend to leave
// behind: zero-width space, zero-width non-joiner, zero-width joiner and the
// byte order mark.
var invisibleReplacer = strings.NewReplacer(
	"\u200B", "",
	"\u200C", "",
	"\u200D", "",
	"\uFEFF", "",
)

// StripInvisible returns s with all invisible characters removed.
// Nothing else is touched, including surrounding whitespace.
func StripInvisible(s string) string {
	if s == "" {
		return ""
	}
	return invisibleReplacer.Replace(s)
}

// NormalizeHeader strips invisible characters and surrounding whitespace from
// a header name. Case is preserved.
func NormalizeHeader(h string) string {
	return strings.TrimSpace(StripInvisible(h))
}

// normalizedField returns the stripped and trimmed value of a named column.
func normalizedField(row RawRow, name string) string {
	return strings.TrimSpace(StripInvisible(row.Field(name)))
}
