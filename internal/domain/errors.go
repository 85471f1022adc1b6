package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrForbidden          = errors.New("resource is forbidden")
	ErrUnauthorized       = errors.New("token is invalid")
	ErrInvalidCredentials = errors.New("credentials are invalid")
	ErrConflict           = errors.New("concurrent update conflict, try again")

	ErrScheduleConflict = errors.New("no available aircrafts")
	ErrOverbooking      = errors.New("not enough available seats")
	ErrPastDeparture    = errors.New("flight can't be in the past")
	ErrNameTaken        = errors.New("has already been taken")
)

// ValidationError carries field level messages. Cause, when set, is one of the
// business rule sentinels above so callers can match it with errors.Is.
type ValidationError struct {
	Fields map[string][]string
	Cause  error
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// FieldError builds a single-field validation error wrapping cause.
func FieldError(cause error, message string, fields ...string) *ValidationError {
	v := NewValidationError()
	v.Cause = cause
	for _, f := range fields {
		v.Add(f, message)
	}
	return v
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

// OrNil returns v when it holds messages and nil otherwise.
func (v *ValidationError) OrNil() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+strings.Join(v.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.Cause
}
