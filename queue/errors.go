package queue

import (
	"errors"
	"fmt"
)

// Outcome errors returned by Service operations. Callers branch on them with
// errors.Is; every one of them maps to a single chat reply.
var (
	ErrNotFound            = errors.New("queue not found")
	ErrInvalidState        = errors.New("queue is closed")
	ErrAlreadyInState      = errors.New("queue already in requested state")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrValidation          = errors.New("invalid argument")
	ErrCapacityExceeded    = errors.New("queue is full")
	ErrAlreadyMember       = errors.New("already in queue")
	ErrNotMember           = errors.New("not in queue")
	ErrBanned              = errors.New("banned from queue")
	ErrAlreadyBanned       = errors.New("already banned")
	ErrNotBanned           = errors.New("not banned")
	ErrEmptyQueue          = errors.New("queue is empty")
	ErrInsufficientMembers = errors.New("not enough members in queue")
	ErrStoreFailure        = errors.New("queue store failure")
)

// Field names an argument that failed validation.
type Field string

const (
	FieldLevel  Field = "level"
	FieldLimit  Field = "limit"
	FieldTarget Field = "target"
)

// Reason describes why an argument failed validation.
type Reason string

const (
	ReasonMissing   Reason = "missing"
	ReasonNotNumber Reason = "not a number"
	ReasonNegative  Reason = "negative"
	ReasonUnknown   Reason = "unknown value"
)

// ValidationError carries the argument and reason behind ErrValidation.
type ValidationError struct {
	Field  Field
	Reason Reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PermissionError carries the rank an operation required.
type PermissionError struct {
	Required Rank
	Action   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Action, e.Required)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// StoreError wraps a failing Store call. The state change it was part of
// cannot be assumed to have happened.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrAlreadyExists) {
		return ErrAlreadyExists
	}
	return &StoreError{Op: op, Err: err}
}
