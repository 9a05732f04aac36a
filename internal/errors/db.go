package errors

import "fmt"

// DBError is the base for store failures. ID names the store operation.
type DBError struct {
	ID      string
	Message string
}

func (e *DBError) Error() string {
	return fmt.Sprintf("store.%s: %s", e.ID, e.Message)
}

func NewDBError(id, message string) *DBError {
	return &DBError{ID: id, Message: message}
}

type DBInternalError struct {
	DBError
	Cause error
}

func (e *DBInternalError) Error() string {
	if e.Cause == nil {
		return e.DBError.Error()
	}
	return fmt.Sprintf("store.%s: %v", e.ID, e.Cause)
}

func (e *DBInternalError) Unwrap() error { return e.Cause }

func NewDBInternalError(id string, cause error) *DBInternalError {
	return &DBInternalError{DBError: DBError{ID: id, Message: "internal error"}, Cause: cause}
}

type DBNotFoundError struct {
	DBError
}

func NewDBNotFoundError(id, message string) *DBNotFoundError {
	return &DBNotFoundError{DBError: *NewDBError(id, message)}
}

type DBUniqueViolationError struct {
	DBError
	Column string
}

func (e *DBUniqueViolationError) Error() string {
	return fmt.Sprintf("store.%s: unique violation on %s: %s", e.ID, e.Column, e.Message)
}

type DBForeignKeyViolationError struct {
	DBError
	ForeignKeyTable string
}

func (e *DBForeignKeyViolationError) Error() string {
	return fmt.Sprintf("store.%s: foreign key violation on %s: %s", e.ID, e.ForeignKeyTable, e.Message)
}
