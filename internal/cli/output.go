package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/tessera/internal/compiler"
	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/storage"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario or validation failure, record not found
	ExitCommandError = 2 // Command error (bad schema path, storage failure, bad arguments)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric          = "E001"
	ErrCodeSchema           = "E002"
	ErrCodeNotFound         = "E003"
	ErrCodeInvalidPredicate = "E004"
	ErrCodeFieldError       = "E005"
	ErrCodeStorage          = "E006"
	ErrCodeConditionFailed  = "E007"
	ErrCodeNotAModel        = "E008"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
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

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps a runtime error to a JSON error code and an exit code.
func classify(err error) (string, int) {
	var (
		schemaErr *compiler.SchemaError
		initErr   *storage.InitError
	)
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		return ErrCodeNotFound, ExitFailure
	case errors.Is(err, datastore.ErrConditionFailed):
		return ErrCodeConditionFailed, ExitFailure
	case errors.Is(err, model.ErrNotAModel):
		return ErrCodeNotAModel, ExitCommandError
	case predicate.IsInvalidPredicate(err):
		return ErrCodeInvalidPredicate, ExitCommandError
	case model.IsFieldError(err):
		return ErrCodeFieldError, ExitCommandError
	case errors.As(err, &schemaErr):
		return ErrCodeSchema, ExitCommandError
	case errors.As(err, &initErr):
		return ErrCodeStorage, ExitCommandError
	default:
		return ErrCodeGeneric, ExitCommandError
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
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. In text
// mode data is printed with its default formatting.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fail reports err in the configured format and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	if f.Format == "json" {
		if encErr := f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: fmt.Sprintf("%s: %v", message, err), Details: details(err)},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s: %v\n", code, message, err)
		if d := details(err); f.Verbose && d != nil {
			fmt.Fprintf(f.Writer, "Details: %v\n", d)
		}
	}
	return WrapExitError(exit, message, err)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
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

func details(err error) any {
	var (
		schemaErr *compiler.SchemaError
		fieldErr  *model.FieldError
		predErr   *predicate.InvalidPredicateError
	)
	switch {
	case errors.As(err, &schemaErr):
		return schemaErr.Errors
	case errors.As(err, &fieldErr):
		return map[string]string{"model": fieldErr.Model, "field": fieldErr.Field, "reason": fieldErr.Reason}
	case errors.As(err, &predErr):
		return map[string]string{"model": predErr.Model, "field": predErr.Field, "op": string(predErr.Op), "reason": predErr.Reason}
	}
	return nil
}
