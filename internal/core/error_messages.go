package core

// error_messages.go maps technical errors to user-facing messages with a
// support code.
//
// Codes by category:
//
//	STD001  - Unknown standard
//	STD002  - Standard definition is inconsistent
//	FILE001 - File too large
//	FILE002 - Unsupported format
//	FILE003 - Encoding error
//	FILE004 - No file provided
//	FILE005 - Empty file
//	FILE006 - Malformed dataset
//	FILE007 - Too many files
//	RULE001 - Rule evaluation failed
//	RUN001  - Run not found
//	PER001  - Persistence failed
//	UPL002  - System busy
//	UPL004  - Request cancelled
//	UPL005  - Request timed out
//	RATE001 - Rate limited
//	ERR000  - Fallback
//
// Typed errors are matched first with errors.Is, so wrapping with %w keeps
// the code stable. Untyped errors fall back to case-insensitive substring
// patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgUnknownStandard = UserMessage{
		Message: "The requested standard is not available",
		Action:  "Choose a standard from GET /api/standards",
		Code:    "STD001",
	}
	msgDuplicateVariable = UserMessage{
		Message: "The standard definition declares a variable twice",
		Action:  "Fix the standard source so each domain variable appears once",
		Code:    "STD002",
	}
	msgUnsupportedFormat = UserMessage{
		Message: "Dataset format is not supported",
		Action:  "Upload CSV, SAS XPT, or Parquet files",
		Code:    "FILE002",
	}
	msgNoFile = UserMessage{
		Message: "No dataset was provided",
		Action:  "Attach at least one dataset file",
		Code:    "FILE004",
	}
	msgRuleFailed = UserMessage{
		Message: "A compliance rule could not be evaluated",
		Action:  "Check the dataset structure and try again; no report was produced",
		Code:    "RULE001",
	}
	msgRunNotFound = UserMessage{
		Message: "Compliance run not found",
		Action:  "Verify the run id or start a new run",
		Code:    "RUN001",
	}
	msgPersistence = UserMessage{
		Message: "Results were computed but could not be saved",
		Action:  "Download the report now or retry later",
		Code:    "PER001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try fewer or smaller datasets",
		Code:    "UPL005",
	}
)

// typedMessages is checked in order before any substring pattern.
var typedMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrUnknownStandard, msgUnknownStandard},
	{ErrDuplicateVariable, msgDuplicateVariable},
	{ErrUnsupportedFormat, msgUnsupportedFormat},
	{ErrNoDatasets, msgNoFile},
	{ErrRuleEvaluation, msgRuleFailed},
	{ErrRunNotFound, msgRunNotFound},
	{ErrPersistence, msgPersistence},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the dataset or raise UPLOAD_MAX_FILE_SIZE",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the dataset or raise UPLOAD_MAX_FILE_SIZE",
			Code:    "FILE001",
		},
	},
	{
		pattern: "too many files",
		msg: UserMessage{
			Message: "Too many files in one run",
			Action:  "Split the upload or raise UPLOAD_MAX_FILES",
			Code:    "FILE007",
		},
	},
	{pattern: "unsupported dataset format", msg: msgUnsupportedFormat},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{pattern: "no file provided", msg: msgNoFile},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a dataset with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "malformed",
		msg: UserMessage{
			Message: "Dataset could not be parsed",
			Action:  "Re-export the dataset from the source system",
			Code:    "FILE006",
		},
	},

	// Run errors
	{pattern: "unknown standard", msg: msgUnknownStandard},
	{pattern: "rule evaluation failed", msg: msgRuleFailed},
	{pattern: "run not found", msg: msgRunNotFound},
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "System is busy processing other runs",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},

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

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, tm := range typedMessages {
		if errors.Is(err, tm.target) {
			return tm.msg
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
