package syncstore

import (
	"errors"
	"fmt"
)

// ErrDisposed is wrapped by every mutation issued after Dispose.
var ErrDisposed = errors.New("sync store disposed")

// ErrorCode categorizes mutation failures.
type ErrorCode string

const (
	// CodeNotFound: the id is not in the merged view.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeMissingLab: no lab scope is configured; nothing was dispatched.
	CodeMissingLab ErrorCode = "MISSING_LAB_CONTEXT"

	// CodeInvalidInput: the change failed validation; nothing was dispatched.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeRemoteFailure: the adapter rejected the write and the change was
	// rolled back.
	CodeRemoteFailure ErrorCode = "REMOTE_FAILURE"

	// CodeDisposed: the store was disposed.
	CodeDisposed ErrorCode = "DISPOSED"

	// CodeCanceled: the context ended while waiting behind another
	// mutation on the same id.
	CodeCanceled ErrorCode = "CANCELED"
)

// MutationError is returned by every mutation that did not succeed.
type MutationError struct {
	Op   string
	ID   string
	Code ErrorCode
	Err  error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.ID, e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of a MutationError anywhere in err's chain, or
// "" if there is none.
func CodeOf(err error) ErrorCode {
	var me *MutationError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND mutation error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsMissingLab reports whether err is a MISSING_LAB_CONTEXT mutation error.
func IsMissingLab(err error) bool {
	return CodeOf(err) == CodeMissingLab
}

// IsInvalidInput reports whether err is an INVALID_INPUT mutation error.
func IsInvalidInput(err error) bool {
	return CodeOf(err) == CodeInvalidInput
}

// IsRemoteFailure reports whether err is a REMOTE_FAILURE mutation error.
func IsRemoteFailure(err error) bool {
	return CodeOf(err) == CodeRemoteFailure
}

// IsPrecondition reports whether the mutation was refused before dispatch.
func IsPrecondition(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeMissingLab, CodeInvalidInput, CodeDisposed, CodeCanceled:
		return true
	}
	return false
}
