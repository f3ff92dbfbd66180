package migrator

import (
	"fmt"
	"strings"
)

// AbortError stops a run when a unit fails and continue-on-error is off
type AbortError struct {
	UnitID string
	Batch  int
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("migration aborted in batch %d: unit %s failed: %v", e.Batch, e.UnitID, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// UnitError is produced when a processor returns an unsuccessful result
// instead of an error
type UnitError struct {
	UnitID   string
	Messages []string
}

func (e *UnitError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("unit %s failed", e.UnitID)
	}
	return fmt.Sprintf("unit %s failed: %s", e.UnitID, strings.Join(e.Messages, "; "))
}
