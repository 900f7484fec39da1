package errors

import "fmt"

// Error is the structured error type shared across the core components.
// It carries enough context for logging and for the retry policy to decide
// whether an operation is worth retrying.
type Error struct {
	Kind    Kind
	Message string

	Category Category
	Severity Severity

	// AvailableModels is set by LLMModelNotFound to report the discovered
	// model set from the provider's health check.
	AvailableModels []string

	// Step is set by CancelledError to the research step name that was
	// in progress when cancellation was observed.
	Step string

	Cause error
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Message:  message,
		Category: categoryOf(kind),
		Severity: severityOf(kind),
		Cause:    cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/As chains through the standard library.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by Kind, so errors.Is(err, &Error{Kind: KindSchemaTooNew}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// ModelNotFound builds a terminal LLMModelNotFound error carrying the
// available-models hint required by §4.5.
func ModelNotFound(requested string, available []string) *Error {
	e := New(KindLLMModelNotFound, fmt.Sprintf("model %q not found", requested), nil)
	e.AvailableModels = available
	return e
}

// Cancelled builds a CancelledError tagged with the pipeline step that was
// entered when cancellation was observed.
func Cancelled(step string) *Error {
	e := New(KindCancelledError, fmt.Sprintf("research cancelled at step %q", step), nil)
	e.Step = step
	return e
}

// IsRetryable reports whether err is retryable per the recovery policy.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return retryableOf(e.Kind)
	}
	return false
}

// IsFatal reports whether err has fatal severity.
func IsFatal(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Severity == SeverityFatal
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}
