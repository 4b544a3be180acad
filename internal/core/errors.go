package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an ErrorRecord.
type ErrorKind string

const (
	KindParse             ErrorKind = "parse_error"
	KindFile              ErrorKind = "file_error"
	KindOrphanReference   ErrorKind = "orphan_reference"
	KindDuplicateKey      ErrorKind = "duplicate_key"
	KindIntegrityMismatch ErrorKind = "integrity_mismatch"
	KindPersistence       ErrorKind = "persistence_error"
)

// ErrorRecord is one diagnosable defect found in the input files or while
// committing them. Line 0 means the defect concerns the whole file.
type ErrorRecord struct {
	File    string    `json:"file"`
	Line    int       `json:"line,omitempty"`
	Column  string    `json:"column,omitempty"`
	Value   string    `json:"value,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e ErrorRecord) String() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Column != "" {
		loc = fmt.Sprintf("%s:%s", loc, e.Column)
	}
	if e.Value != "" {
		return fmt.Sprintf("%s: %s: %s (value %q)", loc, e.Kind, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.Message)
}

// ErrTooManyImports is returned when every import slot stays busy for the
// whole wait period. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many imports in progress")

// ErrFileTooLarge is reported when a workbook exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// rowErrors accumulates the ErrorRecords of one file.
type rowErrors struct {
	file string
	list []ErrorRecord
}

func (r *rowErrors) add(kind ErrorKind, line int, column, value, format string, args ...any) {
	r.list = append(r.list, ErrorRecord{
		File:    r.file,
		Line:    line,
		Column:  column,
		Value:   value,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *rowErrors) parse(line int, column, value, format string, args ...any) {
	r.add(KindParse, line, column, value, format, args...)
}

func fileError(file string, err error) ErrorRecord {
	return ErrorRecord{File: file, Kind: KindFile, Message: err.Error()}
}
