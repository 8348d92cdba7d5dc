package errors

import "time"

// New creates a generic AppError.
func New(category ErrorCategory, code, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		Category:  category,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// ValidationError creates a VALIDATION category error instance.
func ValidationError(code, message string, err error) *AppError {
	return New(ErrCategoryValidation, code, message, err).WithRecoverable(true)
}

// CatalogError creates a CATALOG category error instance.
func CatalogError(code, message string, err error) *AppError {
	return New(ErrCategoryCatalog, code, message, err)
}

// ArgumentError creates an ARGUMENT category error instance.
func ArgumentError(code, message string, err error) *AppError {
	return New(ErrCategoryArgument, code, message, err)
}

// TaskError creates a TASK category error instance.
func TaskError(code, message string, err error) *AppError {
	return New(ErrCategoryTask, code, message, err)
}

// ProcessError creates a PROCESS category error instance.
func ProcessError(code, message string, err error) *AppError {
	return New(ErrCategoryProcess, code, message, err)
}

// TimeoutError creates a TIMEOUT category error instance.
func TimeoutError(code, message string, err error) *AppError {
	return New(ErrCategoryTimeout, code, message, err)
}

// CancelledError creates a CANCELLED category error instance.
func CancelledError(code, message string, err error) *AppError {
	return New(ErrCategoryCancelled, code, message, err)
}

// ServiceError creates a SERVICE category error instance.
func ServiceError(code, message string, err error) *AppError {
	return New(ErrCategoryService, code, message, err)
}

// SystemError creates a SYSTEM category error instance.
func SystemError(code, message string, err error) *AppError {
	return New(ErrCategorySystem, code, message, err)
}

// ConfigError creates a CONFIG category error instance.
func ConfigError(code, message string, err error) *AppError {
	return New(ErrCategoryConfig, code, message, err)
}

// DatabaseError creates a DATABASE category error instance.
func DatabaseError(code, message string, err error) *AppError {
	return New(ErrCategoryDatabase, code, message, err)
}

// IsCategory reports whether err carries an AppError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	appErr, ok := As(err)
	return ok && appErr.Category == category
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
