package vigilerr

import "fmt"

// Stable error codes surfaced to API clients.
const (
	CodeMissingLog   = "missing_log"
	CodeStoreFailure = "store_failure"
)

// Error is a typed error that can be surfaced to API clients without leaking
// storage-specific details. Code is machine-stable; Message is for humans.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e Error) Unwrap() error {
	return e.Err
}

// New constructs a new typed Error.
func New(code, message string, err error) Error {
	return Error{Code: code, Message: message, Err: err}
}
