package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/royalcat/chorographer/geomodel"
)

var (
	ErrSegmentsWithoutRoads = errors.New("segments require roads in the same run")
	ErrInvalidConfig        = errors.New("invalid pipeline config")
	ErrFallbackFailed       = errors.New("sequential fallback failed")
	ErrAlreadyRunning       = errors.New("import already running")
)

// RunError is returned when an import could not complete. Counts holds what
// the sink acknowledged before the failure in the last attempt.
type RunError struct {
	Counts map[geomodel.EntityType]int64
	// Fallback is set when the failure happened during the sequential
	// fallback.
	Fallback bool
	Err      error
}

func (e *RunError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Counts))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.Counts[k]))
	}

	msg := "import failed"
	if e.Fallback {
		msg = ErrFallbackFailed.Error()
	}
	return fmt.Sprintf("%s (written: %s): %v", msg, strings.Join(parts, " "), e.Err)
}

func (e *RunError) Unwrap() []error {
	if e.Fallback {
		return []error{ErrFallbackFailed, e.Err}
	}
	return []error{e.Err}
}
