package store

import (
	"errors"
	"fmt"
)

// Provider error codes shared by drivers. The firestore driver reports gRPC
// status names; these constants cover the ones the core inspects.
const (
	CodeNotFound      = "NotFound"
	CodeAlreadyExists = "AlreadyExists"
	CodeInvalid       = "InvalidArgument"
	CodeUnavailable   = "Unavailable"
	CodeInternal      = "Internal"
	CodeCanceled      = "Canceled"
)

// ErrNotFound is wrapped by ProviderError when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrAlreadyExists is wrapped by ProviderError when a create hits an
// existing document.
var ErrAlreadyExists = errors.New("document already exists")

// ErrStreamStopped is returned by Stream.Next once the stream is stopped.
var ErrStreamStopped = errors.New("stream stopped")

// ProviderError is a store rejection of an otherwise well-formed operation.
// It carries enough context to identify the operation and path; the driver
// error is available through Unwrap.
type ProviderError struct {
	Op   string // "create", "update", "commit", "query", ...
	Path string
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err unless it is nil or already a ProviderError.
func NewProviderError(op, path, code string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Op: op, Path: path, Code: code, Err: err}
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsNotFound reports whether err denotes a missing document.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == CodeNotFound
}
