package datasheet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrClosed       = errors.New("update already committed or discarded")
	ErrConflict     = errors.New("worksheet modified since last read")
	ErrNoSuchColumn = errors.New("no such column")
	ErrRowRange     = errors.New("row out of range")
	ErrType         = errors.New("value incompatible with column type")
)

// Conflict describes a single cell that was modified in the worksheet after the
// snapshot was taken.
type Conflict struct {
	Range  string
	Local  string
	Remote string
	Update any
}

// ConflictError is returned by Commit when conflict checking is enabled and
// one or more of the cells to be written were changed remotely.
type ConflictError struct {
	Cells []Conflict
}

func (e *ConflictError) Error() string {
	refs := make([]string, 0, len(e.Cells))
	for _, c := range e.Cells {
		refs = append(refs, c.Range)
	}

	return fmt.Sprintf("%v (%s)", ErrConflict, strings.Join(refs, ","))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
