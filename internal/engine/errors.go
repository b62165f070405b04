package engine

import (
	"errors"
	"fmt"
)

// ActionError represents a rejected external trigger or a run
// configuration error. Precondition failures mutate nothing: the
// surrounding transaction is rolled back when one is returned.
type ActionError struct {
	// Code identifies the error category.
	Code ActionErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// StepID identifies the affected step, when the trigger targets one.
	StepID string
}

// ActionErrorCode categorizes action errors.
type ActionErrorCode string

const (
	// CodeNotPausable indicates a pause on a run that is not running.
	CodeNotPausable ActionErrorCode = "RUN_NOT_PAUSABLE"

	// CodeNotResumable indicates a resume on a run that is neither paused
	// nor created.
	CodeNotResumable ActionErrorCode = "RUN_NOT_RESUMABLE"

	// CodeAwaitingApproval indicates a resume into an unresolved approval
	// gate.
	CodeAwaitingApproval ActionErrorCode = "RUN_AWAITING_APPROVAL"

	// CodeNotApprovable indicates an approve/override on a run that
	// cannot accept one in its current status.
	CodeNotApprovable ActionErrorCode = "RUN_NOT_APPROVABLE"

	// CodeStepNotAwaitingApproval indicates an approve/override on a step
	// that is not pending approval.
	CodeStepNotAwaitingApproval ActionErrorCode = "STEP_NOT_AWAITING_APPROVAL"

	// CodeRunFinalized indicates an action on a run in a terminal status.
	CodeRunFinalized ActionErrorCode = "RUN_FINALIZED"

	// CodeMissingTarget indicates a run with no target chapter. This is a
	// configuration error, not a retryable failure.
	CodeMissingTarget ActionErrorCode = "RUN_MISSING_TARGET"

	// CodeTargetMismatch indicates the target chapter does not belong to
	// the run's project.
	CodeTargetMismatch ActionErrorCode = "RUN_TARGET_MISMATCH"
)

// Error implements the error interface.
func (e *ActionError) Error() string {
	switch {
	case e.RunID != "" && e.StepID != "":
		return fmt.Sprintf("%s: %s (run=%s, step=%s)", e.Code, e.Message, e.RunID, e.StepID)
	case e.RunID != "":
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// AsActionError unwraps err to an *ActionError, if it is one.
func AsActionError(err error) (*ActionError, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func actionErr(code ActionErrorCode, runID, stepID, message string) *ActionError {
	return &ActionError{Code: code, Message: message, RunID: runID, StepID: stepID}
}
