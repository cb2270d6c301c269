package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the lookup/conflict conditions surfaced by handlers.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrDuplicateBudget = errors.New("budget already exists for this category")
	ErrNoTemplate      = errors.New("no CVR template found")
	ErrNoProcessedFile = errors.New("no processed CVR found")
)

// ParseError reports that an uploaded report could not be normalized at all:
// none of the candidate sheets parsed, or a required column is absent.
// Row-level failures are not ParseErrors; they are skipped and counted.
type ParseError struct {
	TriedSheets    []string
	MissingColumns []string
}

func (e *ParseError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("report is missing required columns: %s", strings.Join(e.MissingColumns, ", "))
	}
	return fmt.Sprintf("no parsable sheet found, tried: %s", strings.Join(e.TriedSheets, ", "))
}

// LedgerError wraps a workbook IO failure. Fatal for the operation; the
// write-then-rename discipline guarantees no partial ledger is left behind.
type LedgerError struct {
	Op   string
	Path string
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}
