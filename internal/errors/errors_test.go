package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeRootNotFound, "root not found: /tmp/missing", nil)

	assert.Equal(t, ErrCodeRootNotFound, err.Code)
	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.Equal(t, "[ERR_201_ROOT_NOT_FOUND] root not found: /tmp/missing", err.Error())
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeRootNotFound, CategoryIO},
		{ErrCodeSidecarCorrupt, CategoryIO},
		{ErrCodeReadOnly, CategoryValidation},
		{ErrCodeIdentityCollision, CategoryInternal},
		{"bogus", CategoryInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categoryFromCode(tt.code), tt.code)
	}
}

func TestSeverityFromCode(t *testing.T) {
	assert.Equal(t, SeverityWarning, severityFromCode(ErrCodeFileUnreadable))
	assert.Equal(t, SeverityWarning, severityFromCode(ErrCodeSidecarCorrupt))
	assert.Equal(t, SeverityFatal, severityFromCode(ErrCodeRootNotFound))
	assert.Equal(t, SeverityFatal, severityFromCode(ErrCodeIdentityCollision))
	assert.Equal(t, SeverityError, severityFromCode(ErrCodeReadOnly))
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("open /x: permission denied")
	err := Wrap(ErrCodeFileUnreadable, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause.Error(), err.Message)
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(ErrCodeFileUnreadable, nil))
}

func TestIs(t *testing.T) {
	err := ReadOnly("update")
	wrapped := fmt.Errorf("close: %w", err)

	assert.True(t, stderrors.Is(wrapped, New(ErrCodeReadOnly, "", nil)))
	assert.False(t, stderrors.Is(wrapped, New(ErrCodeRootNotFound, "", nil)))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeIdentityCollision, "file_id collision", nil).
		WithDetail("file_id", "abc123").
		WithDetail("path", "a/b.txt").
		WithSuggestion("report this: distinct paths should never collide")

	assert.Equal(t, "abc123", err.Details["file_id"])
	assert.Equal(t, "a/b.txt", err.Details["path"])
	assert.NotEmpty(t, err.Suggestion)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeRootNotFound, "gone", nil)))
	assert.False(t, IsFatal(New(ErrCodeFileUnreadable, "skip", nil)))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(fmt.Errorf("plain error")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeReadOnly, GetCode(ReadOnly("write")))
	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
}
