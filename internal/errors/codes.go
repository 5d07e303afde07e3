// Package errors provides structured error handling for dirstore.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (root, files, sidecar)
//   - 4XX: Validation errors (read-only, bad filters)
//   - 5XX: Internal errors (integrity)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeRootNotFound   = "ERR_201_ROOT_NOT_FOUND"
	ErrCodeFileUnreadable = "ERR_202_FILE_UNREADABLE"
	ErrCodeSidecarCorrupt = "ERR_203_SIDECAR_CORRUPT"
	ErrCodeSidecarWrite   = "ERR_204_SIDECAR_WRITE"

	// Validation errors (400-499)
	ErrCodeReadOnly      = "ERR_401_READ_ONLY"
	ErrCodeInvalidFilter = "ERR_402_INVALID_FILTER"
	ErrCodeNotConnected  = "ERR_403_NOT_CONNECTED"

	// Internal errors (500-599)
	ErrCodeIdentityCollision = "ERR_501_IDENTITY_COLLISION"
	ErrCodeInternal          = "ERR_502_INTERNAL"
)

// categoryFromCode derives the category from the numeric range of a code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the default severity from a code.
// Root/config/integrity failures abort the operation; per-file and
// sidecar-parse failures degrade it.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeFileUnreadable, ErrCodeSidecarCorrupt:
		return SeverityWarning
	case ErrCodeRootNotFound, ErrCodeIdentityCollision, ErrCodeConfigInvalid:
		return SeverityFatal
	default:
		return SeverityError
	}
}
