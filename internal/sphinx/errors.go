package sphinx

import "errors"

var (
	// ErrBinaryNotFound indicates the requested executable was not detected on PATH or in the venv.
	ErrBinaryNotFound = errors.New("sphinx binary not found")
	// ErrExecutionFailed indicates the invoked command returned a non-zero exit status.
	ErrExecutionFailed = errors.New("sphinx execution failed")
)
