// Package service holds the business operations of the catalog: the auth
// flows and the product image reconciler.  Every error a service returns
// is one of the types below (possibly wrapped), which the HTTP layer maps
// to a status code.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or out-of-range input (400).
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func invalid(msg string, fields ...FieldError) *ValidationError {
	return &ValidationError{Message: msg, Fields: fields}
}

// AuthError reports a missing, invalid or expired credential (401).  The
// message never says which part was wrong.
type AuthError struct{ Message string }

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

var (
	errInvalidCredentials = &AuthError{Message: "invalid credentials"}
	errInvalidSession     = &AuthError{Message: "invalid or expired session"}
)

// ForbiddenError reports an authenticated caller lacking permission (403).
type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// ConflictError reports a duplicate unique field or a concurrent edit (409).
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError reports an unknown id (404).
type NotFoundError struct {
	Resource string
	ID       uint64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Resource, e.ID) }

// StorageError reports an object store or relational store failure (500).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
