package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrapped empty file sentinel",
			err:         fmt.Errorf("parse survey.csv: %w", ErrEmptyFile),
			wantCode:    "FILE002",
			wantMessage: "The uploaded file has no data rows",
		},
		{
			name:        "unsupported format",
			err:         fmt.Errorf("%w: .pdf", ErrUnsupportedFormat),
			wantCode:    "FILE003",
			wantMessage: "This file type is not supported",
		},
		{
			name:        "missing survey id",
			err:         ErrMissingSurveyID,
			wantCode:    "IMP001",
			wantMessage: "No survey was given",
		},
		{
			name:        "too many imports",
			err:         ErrTooManyImports,
			wantCode:    "IMP005",
			wantMessage: "Another import is running",
		},
		{
			name:        "csv parse error",
			err:         errors.New(`read row 3: parse error on line 4, column 7: bare " in non-quoted-field`),
			wantCode:    "FILE005",
			wantMessage: "File is not a valid CSV",
		},
		{
			name:        "unauthorized",
			err:         errors.New("zenloop API error: 401 - Unauthorized"),
			wantCode:    "API001",
			wantMessage: "The survey platform rejected the credentials",
		},
		{
			name:        "platform outage",
			err:         errors.New("zenloop API error: 503 - Service Unavailable"),
			wantCode:    "API003",
			wantMessage: "The survey platform is unavailable",
		},
		{
			name:        "throttled",
			err:         errors.New("zenloop API error: 429 - slow down"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests to the survey platform",
		},
		{
			name:        "dial failure",
			err:         errors.New("dial tcp 10.0.0.1:443: connect: connection refused"),
			wantCode:    "API004",
			wantMessage: "Unable to reach the survey platform",
		},
		{
			name:        "unknown error",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive match",
			err:         errors.New("ZENLOOP API ERROR: 404 - NOT FOUND"),
			wantCode:    "API002",
			wantMessage: "Survey not found on the platform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrMissingFile)

	expected := "No file was selected (Code: FILE001). Please select a CSV file"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "sentinel is user facing", err: ErrRunNotFound, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("proceed: %w", ErrNotOverridable)
		userErr := NewUserError(techErr)

		want := "The file is missing the NPS column (Code: IMP003). Add an NPS column header and upload the file again"
		if userErr.Error() != want {
			t.Errorf("Error() = %q, want %q", userErr.Error(), want)
		}
		if userErr.User.Code != "IMP003" {
			t.Errorf("User.Code = %q, want IMP003", userErr.User.Code)
		}
		if !errors.Is(userErr, ErrNotOverridable) {
			t.Error("Unwrap() should expose the original error chain")
		}
	})
}
