package store

import (
	"errors"
	"fmt"
)

// DispatchError reports a dispatch that was rejected or failed.
// A failed dispatch never commits a new State.
type DispatchError struct {
	// Code identifies the error category.
	Code ErrorCode

	// ActionType is the type of the action being dispatched, if any.
	ActionType string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error or recovered panic value, if any.
	Cause error
}

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeReentrantDispatch indicates a dispatch from inside a reducer.
	ErrCodeReentrantDispatch ErrorCode = "REENTRANT_DISPATCH"

	// ErrCodeReducerPanic indicates the reducer panicked.
	ErrCodeReducerPanic ErrorCode = "REDUCER_PANIC"

	// ErrCodeNilAction indicates a nil action or effect.
	ErrCodeNilAction ErrorCode = "NIL_ACTION"

	// ErrCodeNilState indicates the reducer returned a nil State.
	ErrCodeNilState ErrorCode = "NIL_STATE"

	// ErrCodeClosed indicates the store's event queue is closed.
	ErrCodeClosed ErrorCode = "STORE_CLOSED"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ActionType != "" {
		msg = fmt.Sprintf("%s (action=%s)", msg, e.ActionType)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// ErrClosed is returned by Next and Settle once the queue is closed and empty.
var ErrClosed = &DispatchError{Code: ErrCodeClosed, Message: "store is closed"}

// IsReentrantError returns true if err is a dispatch-inside-reducer error.
func IsReentrantError(err error) bool {
	return hasCode(err, ErrCodeReentrantDispatch)
}

// IsReducerPanic returns true if err reports a panicking reducer.
func IsReducerPanic(err error) bool {
	return hasCode(err, ErrCodeReducerPanic)
}

func hasCode(err error, code ErrorCode) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func newReentrantError(act Action) *DispatchError {
	return &DispatchError{
		Code:       ErrCodeReentrantDispatch,
		ActionType: actionType(act),
		Message:    "reducers may not dispatch actions",
	}
}

func newPanicError(act Action, r any) *DispatchError {
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	return &DispatchError{
		Code:       ErrCodeReducerPanic,
		ActionType: actionType(act),
		Message:    "reducer panicked",
		Cause:      cause,
	}
}

func actionType(act Action) string {
	if act == nil {
		return ""
	}
	return act.Type()
}
