package errors

// Error code constants.
// Logs and the run report carry codes; messages stay short and in English.

// Fatal codes.
const (
	CodeConnectFailed    = "CONNECT_FAILED"
	CodeSchemaResetFail  = "SCHEMA_RESET_FAILED"
	CodeMigrateFailed    = "MIGRATE_FAILED"
	CodeInputNotFound    = "INPUT_NOT_FOUND"
	CodeInputReadFailed  = "INPUT_READ_FAILED"
	CodeMissingColumns   = "MISSING_COLUMNS"
	CodeReferenceInvalid = "REFERENCE_DATA_INVALID"
	CodeCancelled        = "CANCELLED"
)

// Recoverable codes.
const (
	CodeStageFailed = "STAGE_FAILED"
	CodeRowRejected = "ROW_REJECTED"
)

// Convenience constructors using predefined codes.

// ErrInputNotFoundf creates a fatal missing-input error.
func ErrInputNotFoundf(path string, err error) *AppError {
	return Wrap(err, CodeInputNotFound, "input file not found", ClassFatal).
		WithParams(map[string]interface{}{"path": path})
}

// ErrMissingColumnsf creates a fatal missing-columns error.
func ErrMissingColumnsf(path string, columns []string) *AppError {
	return Wrap(ErrMissingColumns, CodeMissingColumns, "required columns are missing", ClassFatal).
		WithParams(map[string]interface{}{"path": path, "columns": columns})
}

// ErrStageFailedf creates a recoverable stage error.
func ErrStageFailedf(stage string, err error) *AppError {
	return Wrap(err, CodeStageFailed, "stage "+stage+" failed", ClassRecoverable).
		WithParams(map[string]interface{}{"stage": stage})
}
