package icms

import (
	"errors"
	"fmt"
)

// ErrNoSourceAvailable is returned when no source produced a usable matrix.
var ErrNoSourceAvailable = errors.New("icms: no source available")

// NavigationError is returned when a page or its table cannot be reached.
type NavigationError struct {
	URL   string
	Op    string
	Cause error
}

func (e *NavigationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("icms: navigation %s %s", e.Op, e.URL)
	}
	return fmt.Sprintf("icms: navigation %s %s: %v", e.Op, e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error { return e.Cause }

// SnapshotWriteError is returned when a snapshot cannot be serialized or
// placed at its final path. No partial file is left behind.
type SnapshotWriteError struct {
	Path  string
	Cause error
}

func (e *SnapshotWriteError) Error() string {
	return fmt.Sprintf("icms: write snapshot %s: %v", e.Path, e.Cause)
}

func (e *SnapshotWriteError) Unwrap() error { return e.Cause }
