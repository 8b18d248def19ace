// Package errors tests for error code definitions and error handling.
package errors

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAppError_Error verifies message formatting with and without a cause.
func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] machine not found", New(ErrNotFound, "machine not found").Error())

	err := Wrap(ErrDatabase, "query machines", sql.ErrConnDone)
	assert.Equal(t, "[DATABASE_ERROR] query machines: sql: connection is already closed", err.Error())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

// TestNewf verifies formatted messages.
func TestNewf(t *testing.T) {
	err := Newf(ErrValidation, "invalid status %q", "FAST")
	assert.Equal(t, ErrValidation, err.Code)
	assert.Equal(t, `invalid status "FAST"`, err.Message)
}

// TestIs verifies code matching through wrapping.
func TestIs(t *testing.T) {
	base := New(ErrDowntimeAlreadyOpen, "machine M-101 already has an open event")
	wrapped := fmt.Errorf("start downtime: %w", base)
	nested := Wrap(ErrSyncFailed, "sync pass", wrapped)

	assert.True(t, Is(base, ErrDowntimeAlreadyOpen))
	assert.True(t, Is(wrapped, ErrDowntimeAlreadyOpen))
	assert.True(t, Is(nested, ErrSyncFailed))
	assert.True(t, Is(nested, ErrDowntimeAlreadyOpen), "inner codes match too")
	assert.False(t, Is(nested, ErrNotFound))
	assert.False(t, Is(nil, ErrNotFound))
	assert.False(t, Is(sql.ErrNoRows, ErrNotFound))
}

// TestCodeOf verifies code extraction.
func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrInternal, CodeOf(sql.ErrNoRows))
	assert.Equal(t, ErrSyncOffline, CodeOf(fmt.Errorf("x: %w", New(ErrSyncOffline, "offline"))))
}
