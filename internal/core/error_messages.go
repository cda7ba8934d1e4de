package core

// error_messages.go maps technical errors to messages a user can act on.
//
// Each message carries a code users can quote to support:
//
//	FILE001-FILE099  problems with the uploaded file
//	IMP001-IMP099    problems with the import run itself
//	API001-API099    the survey platform rejected or did not answer a call
//	RATE001          too many requests
//	ERR000           anything else; check the logs for the technical error
//
// Known sentinel errors are matched with errors.Is first. Everything else is
// matched by case-insensitive substring against the error text.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is the user-facing rendition of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrMissingFile, UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file",
		Code:    "FILE001",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file has no data rows",
		Action:  "Add at least one row below the header line",
		Code:    "FILE002",
	}},
	{ErrUnsupportedFormat, UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a .csv or .xlsx file",
		Code:    "FILE003",
	}},
	{ErrMissingSurveyID, UserMessage{
		Message: "No survey was given",
		Action:  "Please enter a Survey Hash ID",
		Code:    "IMP001",
	}},
	{ErrRunNotFound, UserMessage{
		Message: "Import not found",
		Action:  "The import may have expired. Please upload the file again",
		Code:    "IMP002",
	}},
	{ErrNotOverridable, UserMessage{
		Message: "The file is missing the NPS column",
		Action:  "Add an NPS column header and upload the file again",
		Code:    "IMP003",
	}},
	{ErrRunBusy, UserMessage{
		Message: "This import is not waiting for a decision",
		Action:  "Refresh the page to see its current state",
		Code:    "IMP004",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Another import is running",
		Action:  "Please wait for it to finish and try again",
		Code:    "IMP005",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE004",
		},
	},
	{
		pattern: "parse error on line",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated and quotes are balanced",
			Code:    "FILE005",
		},
	},
	{
		pattern: "not a valid zip file",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file again as .xlsx or export it as CSV",
			Code:    "FILE006",
		},
	},

	// Platform errors
	{
		pattern: "zenloop api error: 401",
		msg: UserMessage{
			Message: "The survey platform rejected the credentials",
			Action:  "Check ZENLOOP_API_USER and ZENLOOP_API_PASSWORD",
			Code:    "API001",
		},
	},
	{
		pattern: "zenloop api error: 404",
		msg: UserMessage{
			Message: "Survey not found on the platform",
			Action:  "Check the Survey Hash ID",
			Code:    "API002",
		},
	},
	{
		pattern: "zenloop api error: 429",
		msg: UserMessage{
			Message: "Too many requests to the survey platform",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "zenloop api error: 5",
		msg: UserMessage{
			Message: "The survey platform is unavailable",
			Action:  "Please try again later",
			Code:    "API003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the survey platform",
			Action:  "Check ZENLOOP_API_URL and your network connection",
			Code:    "API004",
		},
	},
	{
		pattern: "no such host",
		msg: UserMessage{
			Message: "Unable to reach the survey platform",
			Action:  "Check ZENLOOP_API_URL and your network connection",
			Code:    "API004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "API005",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	ue := NewUserError(err)
	if ue == nil {
		return ""
	}
	return ue.Error()
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s (Code: %s). %s", e.User.Message, e.User.Code, e.User.Action)
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
