package repository

import (
	"fmt"
)

// NotFoundError represents an error when a record is not found
type NotFoundError struct {
	Resource string
	Key      string
	Value    string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with %s %s not found", e.Resource, e.Key, e.Value)
}

// ConflictError represents an error when a record's current state forbids
// the requested change
type ConflictError struct {
	Resource string
	Key      string
	Value    string
	State    string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %s is %s", e.Resource, e.Key, e.Value, e.State)
}
