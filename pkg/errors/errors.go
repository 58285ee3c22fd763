// Package errors defines the error taxonomy every component reports
// through: a small closed set of kinds, each wrapping an underlying cause
// via the standard %w convention so callers can still errors.As/errors.Is
// through to it.
package errors

import (
	"errors"
	"fmt"

	"ipcrawler/pkg/types"
)

// Kind is the closed set of error categories a component can raise.
type Kind string

const (
	// KindExec covers a failed external-tool invocation (see types.ExecError).
	KindExec Kind = "exec"
	// KindDependency covers a missing required tool on PATH.
	KindDependency Kind = "dependency"
	// KindOrganizer covers run-directory layout/preflight failures.
	KindOrganizer Kind = "organizer"
	// KindReport covers report rendering or validation failures.
	KindReport Kind = "report"
	// KindIO covers filesystem errors outside the organizer's own checks.
	KindIO Kind = "io"
	// KindOther covers anything not covered above.
	KindOther Kind = "other"
)

// Error is the module-wide error type. It carries a Kind for
// classification plus an optional wrapped cause and, for KindExec, the
// structured types.ExecError that produced it.
type Error struct {
	Kind    Kind
	Message string
	Exec    *types.ExecError
	Cause   error
}

func (e *Error) Error() string {
	if e.Exec != nil {
		return fmt.Sprintf("%s: %s (tool=%s exit=%s)", e.Kind, e.Message, e.Exec.Tool, exitCodeString(e.Exec.ExitCode))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func exitCodeString(code *int) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *code)
}

// Exec wraps a types.ExecError as a KindExec module error.
func Exec(msg string, execErr types.ExecError) error {
	return &Error{Kind: KindExec, Message: msg, Exec: &execErr}
}

// Dependency reports a missing required tool.
func Dependency(msg string) error {
	return &Error{Kind: KindDependency, Message: msg}
}

// Organizer wraps a run-layout/preflight failure.
func Organizer(msg string, cause error) error {
	return &Error{Kind: KindOrganizer, Message: msg, Cause: cause}
}

// Report wraps a report rendering/validation failure.
func Report(msg string, cause error) error {
	return &Error{Kind: KindReport, Message: msg, Cause: cause}
}

// IO wraps a filesystem error.
func IO(msg string, cause error) error {
	return &Error{Kind: KindIO, Message: msg, Cause: cause}
}

// Other wraps anything not covered by the other constructors.
func Other(msg string, cause error) error {
	return &Error{Kind: KindOther, Message: msg, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ToExecError extracts the structured types.ExecError a plugin failure
// carries, if any, and otherwise synthesizes one from the plain error
// text so every TaskFailed event carries the same shape regardless of
// which error constructor a plugin used.
func ToExecError(tool string, err error) types.ExecError {
	var e *Error
	if errors.As(err, &e) && e.Exec != nil {
		return *e.Exec
	}
	return types.ExecError{Tool: tool, StderrTail: err.Error()}
}
