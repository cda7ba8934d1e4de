package core

// validation.go checks uploaded survey data before anything is submitted.
//
// Validation happens at two levels:
//  1. Header validation: the file must declare an NPS column
//  2. Row validation: NPS must be an integer 0-10, Date must be DD.MM.YYYY HH:MM
//
// A header failure short-circuits row validation. Row errors are collected
// exhaustively so the user sees every problem at once.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// dateTimeRegex matches D.M.YYYY H:MM with one or two digit day, month and hour.
var dateTimeRegex = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})\s+(\d{1,2}):(\d{2})$`)

// dateOnlyRegex matches D.M.YYYY.
var dateOnlyRegex = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)

// Error field names.
const (
	FieldHeader = "header"
	FieldNPS    = ColumnNPS
	FieldDate   = ColumnDate
)

// MissingNPSHeaderMessage is the structural error reported for files without
// an NPS column.
const MissingNPSHeaderMessage = "Missing required 'NPS' column header"

// ValidateHeaders checks that the header list contains an NPS column.
// Headers are compared after stripping invisible characters, trimming and
// upper-casing.
func ValidateHeaders(headers []string) error {
	for _, h := range headers {
		if strings.ToUpper(NormalizeHeader(h)) == ColumnNPS {
			return nil
		}
	}
	return fmt.Errorf("%s", MissingNPSHeaderMessage)
}

// ValidateDateFormat checks a Date cell. Empty is valid (the submission time
// defaults to now). rowIndex is 0-based; messages use the 1-based row number
// and quote the raw value.
func ValidateDateFormat(date string, rowIndex int) error {
	cleaned := strings.TrimSpace(StripInvisible(date))
	if cleaned == "" {
		return nil
	}

	invalid := fmt.Errorf("Row %d: Date '%s' is invalid (expected format: DD.MM.YYYY HH:MM)", rowIndex+1, date)

	m := dateTimeRegex.FindStringSubmatch(cleaned)
	if m == nil {
		return invalid
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	switch {
	case day < 1 || day > 31,
		month < 1 || month > 12,
		year < 1900 || year > 2100,
		hour < 0 || hour > 23,
		minute < 0 || minute > 59:
		return invalid
	}
	return nil
}

// ValidateRow validates NPS and Date of a single row.
// rowIndex is 0-based. Returns zero, one or two errors.
func ValidateRow(row RawRow, rowIndex int) []ValidationError {
	var errs []ValidationError
	rowNum := rowIndex + 1

	nps := normalizedField(row, ColumnNPS)
	if nps == "" {
		errs = append(errs, ValidationError{
			Row:     rowNum,
			Field:   FieldNPS,
			Message: fmt.Sprintf("Row %d: NPS score is empty (required field)", rowNum),
		})
	} else if !validScore(nps) {
		errs = append(errs, ValidationError{
			Row:     rowNum,
			Field:   FieldNPS,
			Message: fmt.Sprintf("Row %d: NPS score '%s' is invalid (must be a number 0-10)", rowNum, row.Field(ColumnNPS)),
		})
	}

	if err := ValidateDateFormat(row.Field(ColumnDate), rowIndex); err != nil {
		errs = append(errs, ValidationError{
			Row:     rowNum,
			Field:   FieldDate,
			Message: err.Error(),
		})
	}

	return errs
}

// ValidateCSV validates headers, then every row in order.
// A header failure is returned alone (row 0, field "header").
func ValidateCSV(headers []string, rows []RawRow) []ValidationError {
	if err := ValidateHeaders(headers); err != nil {
		return []ValidationError{{
			Row:     0,
			Field:   FieldHeader,
			Message: err.Error(),
		}}
	}

	var errs []ValidationError
	for i, row := range rows {
		errs = append(errs, ValidateRow(row, i)...)
	}
	return errs
}

// IsRowValid reports whether the row carries a usable NPS score.
// It mirrors the NPS half of ValidateRow without building error values.
func IsRowValid(row RawRow) bool {
	nps := normalizedField(row, ColumnNPS)
	return nps != "" && validScore(nps)
}

// validScore reports whether s is an integer in [0, 10].
func validScore(s string) bool {
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n >= 0 && n <= 10
}
