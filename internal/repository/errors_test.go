package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Error(t *testing.T) {
	testCases := map[string]struct {
		err      *NotFoundError
		expected string
	}{
		"should format order lookup": {
			err:      &NotFoundError{Resource: "order", Key: "id", Value: "abc-123"},
			expected: "order with id abc-123 not found",
		},
		"should format payment lookup": {
			err:      &NotFoundError{Resource: "payment", Key: "id", Value: "p-1"},
			expected: "payment with id p-1 not found",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestConflictError_Error(t *testing.T) {
	err := &ConflictError{Resource: "order", Key: "id", Value: "abc-123", State: "paid"}
	assert.Equal(t, "order with id abc-123 is paid", err.Error())
}

func TestConflictError_ErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("settle order: %w", &ConflictError{Resource: "order", Key: "id", Value: "abc", State: "merged"})

	var conflict *ConflictError
	assert.True(t, errors.As(wrapped, &conflict))
	assert.Equal(t, "merged", conflict.State)
}

func TestNotFoundError_ErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("load order: %w", &NotFoundError{Resource: "order", Key: "id", Value: "abc"})

	var notFound *NotFoundError
	assert.True(t, errors.As(wrapped, &notFound))
	assert.Equal(t, "order", notFound.Resource)
}
