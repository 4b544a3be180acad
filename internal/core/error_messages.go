package core

// error_messages.go maps technical failures to messages a user can act on.
//
// Codes are stable and quoted to support staff:
//
//	DB001  duplicate batch for this company and period
//	DB002  other unique constraint
//	DB003  foreign key violation
//	DB004  database unreachable
//	DB005  connection interrupted
//	DB006  statement timeout
//	DB007  deadlock or serialization failure
//	DB008  row count mismatch after insert
//	FILE001 workbook too large
//	FILE002 workbook could not be read
//	FILE005 empty workbook
//	IMP001 too many imports in progress
//	IMP002 no batch to roll back
//	REQ001 request cancelled
//	REQ002 request timed out
//	REQ003 invalid batch request
//	RATE001 rate limited
//	ERR000 anything else; check the logs
//
// Postgres errors are classified by SQLSTATE first. Other errors fall back to
// case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgDuplicateBatch = UserMessage{
		Message: "A batch for this company and period was already imported",
		Action:  "Check the period or remove the previous batch before re-importing",
		Code:    "DB001",
	}
	msgUnique = UserMessage{
		Message: "A value that must be unique already exists",
		Action:  "Review the files for repeated identifiers",
		Code:    "DB002",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Please try again or contact support",
		Code:    "DB003",
	}
	msgConnRefused = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}
	msgConnReset = UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Try again later or split the period into smaller files",
		Code:    "DB006",
	}
	msgDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}
	msgRowCount = UserMessage{
		Message: "Not every row was stored",
		Action:  "Nothing was saved. Please try again or contact support",
		Code:    "DB008",
	}
	msgTooManyImports = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}
	msgBatchNotFound = UserMessage{
		Message: "No import exists for this company and period",
		Action:  "Check the company id and period",
		Code:    "IMP002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Try again or check your connection",
		Code:    "REQ002",
	}
	msgInvalidRequest = UserMessage{
		Message: "The import request is incomplete or malformed",
		Action:  "Provide the company, the period and all three workbooks",
		Code:    "REQ003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is the fallback table for errors without a SQLSTATE.
var errorPatterns = []errorPattern{
	{pattern: "duplicate key", msg: msgUnique},
	{pattern: "violates unique", msg: msgUnique},
	{pattern: "violates foreign key", msg: msgForeignKey},
	{pattern: "connection refused", msg: msgConnRefused},
	{pattern: "connection reset", msg: msgConnReset},
	{pattern: "row count mismatch", msg: msgRowCount},
	{pattern: "deadlock", msg: msgDeadlock},
	{pattern: "timeout", msg: msgTimeout},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "Workbook exceeds the maximum size limit",
			Action:  "Split the period into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded workbook is empty",
			Action:  "Please upload the exported workbook with data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported workbook format",
		msg: UserMessage{
			Message: "File is not an Excel workbook",
			Action:  "Upload the .xls or .xlsx file exactly as exported",
			Code:    "FILE002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// batchUniqueConstraint is the natural-key constraint on import_batches.
const batchUniqueConstraint = "import_batches_company_period_key"

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrTooManyImports):
		return msgTooManyImports
	case errors.Is(err, ErrInvalidRequest):
		return msgInvalidRequest
	case errors.Is(err, ErrBatchNotFound):
		return msgBatchNotFound
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := mapSQLState(pgErr); ok {
			return msg
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

func mapSQLState(pgErr *pgconn.PgError) (UserMessage, bool) {
	switch pgErr.Code {
	case "23505":
		if pgErr.ConstraintName == batchUniqueConstraint {
			return msgDuplicateBatch, true
		}
		return msgUnique, true
	case "23503":
		return msgForeignKey, true
	case "40P01", "40001":
		return msgDeadlock, true
	case "57014":
		return msgTimeout, true
	}
	if strings.HasPrefix(pgErr.Code, "08") {
		return msgConnReset, true
	}
	return UserMessage{}, false
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
