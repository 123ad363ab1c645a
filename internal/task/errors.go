package task

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/phrazzld/mediatask/internal/redact"
)

// Executor errors
var (
	// ErrAlreadyStarted is returned when a task record shows another
	// executor has already picked the task up
	ErrAlreadyStarted = errors.New("task already started")

	// ErrUnknownTaskType is returned by a JobFactory for an unregistered type
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrRecordUnreadable is returned when a task's record cannot be read,
	// so its state is unknown and the task is not run
	ErrRecordUnreadable = errors.New("task record unreadable")
)

// ErrorTypePanic is the ErrorInfo type recorded for a job that panicked
const ErrorTypePanic = "panic"

// ExecutionError lets a job name the module an error came from. The module
// ends up in the FAILURE record's error info.
type ExecutionError struct {
	Module string
	Err    error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return e.Module + ": unknown error"
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError wraps err with the name of the module that produced it
func NewExecutionError(module string, err error) error {
	return &ExecutionError{Module: module, Err: err}
}

// PanicError is produced when a job panics
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// describeError builds the error info stored on a FAILURE record. The
// message is redacted since records are served to clients as-is.
// fallbackModule is used when nothing in the chain names a module.
func describeError(err error, fallbackModule string) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{Message: redact.Error(err)}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		info.Type = ErrorTypePanic
		info.Module = fallbackModule
		return info
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		info.Module = execErr.Module
		if execErr.Err != nil {
			err = execErr.Err
		}
	}

	root := rootCause(err)
	info.Type = errorTypeName(root)
	if info.Module == "" {
		info.Module = errorPackage(root)
	}
	if info.Module == "" {
		info.Module = fallbackModule
	}
	return info
}

// rootCause follows single-error Unwrap chains to the innermost error
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func errorTypeName(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// errorPackage returns the package that defines err's type. Errors built
// with errors.New or fmt.Errorf say nothing about their origin and yield "".
func errorPackage(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch pkg := t.PkgPath(); pkg {
	case "errors", "fmt":
		return ""
	default:
		return pkg
	}
}
