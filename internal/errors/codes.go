package errors

// Generic error code definitions used as sensible defaults across modules.
const (
	CodeValidationGeneric = "VAL-000"
	CodeCatalogGeneric    = "CAT-000"
	CodeArgumentGeneric   = "ARG-000"
	CodeTaskGeneric       = "TSK-000"
	CodeProcessGeneric    = "PRC-000"
	CodeTimeoutGeneric    = "TMO-000"
	CodeCancelledGeneric  = "CAN-000"
	CodeServiceGeneric    = "SVC-000"
	CodeSystemGeneric     = "SYS-000"
	CodeConfigGeneric     = "CFG-000"
	CodeDatabaseGeneric   = "DB-000"
)

// Specific codes raised by the workflow engine.
const (
	// CodeDuplicateArgument marks two step types declaring the same argument name.
	CodeDuplicateArgument = "CAT-001"
	// CodeArgumentConversion marks a raw argument string that cannot be decoded.
	CodeArgumentConversion = "ARG-001"
	// CodeTaskFailed marks a task that returned false or an error.
	CodeTaskFailed = "TSK-001"
	// CodeInvalidModel marks a task run refused because the workflow is invalid.
	CodeInvalidModel = "TSK-002"
	// CodePluginProcess marks a non-zero exit or stderr output from the plugin script.
	CodePluginProcess = "PRC-001"
	// CodeServiceWait marks a service that did not reach the expected state in time.
	CodeServiceWait = "TMO-001"
	// CodeRunCancelled marks a task sequence stopped by the host between tasks.
	CodeRunCancelled = "CAN-001"
	// CodeFileOperation marks a failed filesystem operation inside the product tree.
	CodeFileOperation = "SYS-001"
	// CodeEnvironmentVariable marks a failed environment variable update.
	CodeEnvironmentVariable = "SYS-003"
	// CodeServiceControl marks a service manager call that failed.
	CodeServiceControl = "SVC-001"
	// CodeSettingsFile marks a settings file that cannot be read or written.
	CodeSettingsFile = "CFG-001"
	// CodeRegistry marks a failed install registry query.
	CodeRegistry = "DB-001"
	// CodePathOutsideRoot marks a preserve/restore request outside the product tree.
	CodePathOutsideRoot = "SYS-002"
)
