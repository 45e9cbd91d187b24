package errors

import "fmt"

// DBError is the base type for all store-layer errors. Where is the logical
// operation name, e.g. "export_job.claim".
type DBError struct {
	Where   string `json:"where"`
	Message string `json:"message"`
	cause   error
}

func NewDBError(where, message string) *DBError {
	return &DBError{Where: where, Message: message}
}

func (e *DBError) Error() string {
	return fmt.Sprintf("store [%s]: %s", e.Where, e.Message)
}

func (e *DBError) Unwrap() error {
	return e.cause
}

type DBInternalError struct {
	DBError
}

func NewDBInternalError(where string, cause error) *DBInternalError {
	err := &DBInternalError{DBError: *NewDBError(where, cause.Error())}
	err.cause = cause
	return err
}

type DBNotFoundError struct {
	DBError
}

func NewDBNotFoundError(where, message string) *DBNotFoundError {
	return &DBNotFoundError{DBError: *NewDBError(where, message)}
}

type DBUniqueViolationError struct {
	DBError
	Column string
}

type DBForeignKeyViolationError struct {
	DBError
	ForeignKeyTable string
}
