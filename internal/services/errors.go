package services

import (
	"errors"
	"fmt"
)

// Delegate stages, used to classify which outbound call failed.
const (
	StageExtraction = "extraction"
	StageEmbedding  = "embedding"
	StageSynthesis  = "synthesis"
)

// InvalidInputError reports caller-supplied data that fails a precondition
// (empty text/query, unknown source). Surfaced as a 400-class rejection by
// the gateway, never retried internally.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DelegateError reports a failed outbound call to one of the black-box
// delegates (extraction, embedding, synthesis). The upstream status and
// message are preserved; the enclosing operation fails with no automatic
// retry.
type DelegateError struct {
	Stage   string
	Status  int // HTTP status if applicable, 0 otherwise
	Message string
	Cause   error
}

func (e *DelegateError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s failed [%d]: %s", e.Stage, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Message)
}

func (e *DelegateError) Unwrap() error {
	return e.Cause
}

// IsInvalidInput reports whether err is a caller precondition failure.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}

// DelegateStage returns the stage of the delegate failure wrapped in err,
// or "" when err is not a delegate failure.
func DelegateStage(err error) string {
	var de *DelegateError
	if errors.As(err, &de) {
		return de.Stage
	}
	return ""
}
