package errors

// ErrorCategory groups related installer errors for unified handling.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryArgument   ErrorCategory = "ARGUMENT"
	ErrCategoryTask       ErrorCategory = "TASK"
	ErrCategoryProcess    ErrorCategory = "PROCESS"
	ErrCategoryTimeout    ErrorCategory = "TIMEOUT"
	ErrCategoryCancelled  ErrorCategory = "CANCELLED"
	ErrCategoryService    ErrorCategory = "SERVICE"
	ErrCategorySystem     ErrorCategory = "SYSTEM"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryDatabase   ErrorCategory = "DATABASE"
)

// Fatal reports whether errors of this category terminate the current run.
// Validation failures are recovered locally by the wizard and never are.
func (c ErrorCategory) Fatal() bool {
	return c != ErrCategoryValidation
}
