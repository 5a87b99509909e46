package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/roach88/firedesk/internal/batch"
	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The store rejected the operation or part of it
	ExitCommandError = 2 // Command error (bad arguments, input files, config)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeConfig          = "E002" // Config file or target error
	ErrCodeInput           = "E003" // Unreadable input file
	ErrCodeSchemaViolation = "E101" // Value does not match the wire shape
	ErrCodePathParity      = "E102" // Document path where a collection was expected, or vice versa
	ErrCodeProvider        = "E201" // Store rejected a well-formed request
	ErrCodePartialBatch    = "E202" // Some chunks of a bulk write failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	ErrCode string // Output error code; derived from Err when empty
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// wrapOpError wraps an operation error with the exit code its kind implies:
// invalid input is a command error, store rejections are failures.
func wrapOpError(message string, err error) *ExitError {
	code, _, _ := Classify(err)
	exitCode := ExitFailure
	if code == ErrCodeSchemaViolation || code == ErrCodePathParity {
		exitCode = ExitCommandError
	}
	return &ExitError{Code: exitCode, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Classify maps an error to its output code and structured details.
func Classify(err error) (code string, details map[string]any, ok bool) {
	var (
		exitErr *ExitError
		pbf     *batch.PartialBatchFailure
		sv      *codec.SchemaViolation
		pe      *paths.PathParityError
		prov    *store.ProviderError
	)
	switch {
	case errors.As(err, &pbf):
		return ErrCodePartialBatch, map[string]any{
			"failed_chunks": pbf.FailedChunkIndices,
			"total_chunks":  pbf.Total,
		}, true
	case errors.As(err, &sv):
		return ErrCodeSchemaViolation, map[string]any{"path": sv.Path, "reason": sv.Reason}, true
	case errors.As(err, &pe):
		return ErrCodePathParity, map[string]any{"path": pe.Path, "expected": pe.Expected.String()}, true
	case errors.As(err, &prov):
		d := map[string]any{"op": prov.Op, "code": prov.Code}
		if prov.Path != "" {
			d["path"] = prov.Path
		}
		return ErrCodeProvider, d, true
	case errors.As(err, &exitErr) && exitErr.ErrCode != "":
		return exitErr.ErrCode, nil, true
	default:
		return ErrCodeGeneric, nil, false
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E101", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. Text
// output prints text; JSON output wraps data.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	if text != "" {
		fmt.Fprintln(f.Writer, text)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err with its classified code and details.
func (f *OutputFormatter) Fail(err error) error {
	code, details, _ := Classify(err)
	if details == nil {
		return f.Error(code, err.Error(), nil)
	}
	return f.Error(code, err.Error(), details)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
