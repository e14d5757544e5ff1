package errors

import (
	"errors"
	"fmt"
)

// Kind classifies errors so callers can branch on category instead of
// matching message text.
type Kind string

const (
	KindUnknownOption      Kind = "unknown_option"
	KindTypeMismatch       Kind = "type_mismatch"
	KindInvalidEnumValue   Kind = "invalid_enum_value"
	KindMissingRequired    Kind = "missing_required_option"
	KindConstraintViolated Kind = "constraint_violation"
	KindDuplicateService   Kind = "duplicate_service"
	KindUnknownDependency  Kind = "unknown_dependency"
	KindCycle              Kind = "dependency_cycle"
	KindRender             Kind = "render"
	KindProbeFailure       Kind = "probe_failure"
	KindProbeTimeout       Kind = "probe_timeout"
	KindIO                 Kind = "io"
	KindInternal           Kind = "internal"
)

// exitCodes maps error kinds to stable CLI exit codes. Validation errors
// occupy 10-19, graph errors 20-29, render 30-39, probe 40-49, io 50-59.
var exitCodes = map[Kind]int{
	KindUnknownOption:      10,
	KindTypeMismatch:       11,
	KindInvalidEnumValue:   12,
	KindMissingRequired:    13,
	KindConstraintViolated: 14,
	KindDuplicateService:   15,
	KindUnknownDependency:  16,
	KindCycle:              20,
	KindRender:             30,
	KindProbeFailure:       40,
	KindProbeTimeout:       41,
	KindIO:                 50,
	KindInternal:           70,
}

// DomainError is a structured error with a kind and key/value context.
type DomainError struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on kind so errors.Is works against sentinel DomainErrors.
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Kind == other.Kind
	}
	return false
}

// WithContext attaches context information to the error.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ExitCode returns the stable CLI exit code for this error's kind.
func (e *DomainError) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return exitCodes[KindInternal]
}

// New creates a new domain error of the given kind.
func New(kind Kind, message string, cause error) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Validation-time errors.

func NewUnknownOptionError(message string, cause error) *DomainError {
	return New(KindUnknownOption, message, cause)
}

func NewTypeMismatchError(message string, cause error) *DomainError {
	return New(KindTypeMismatch, message, cause)
}

func NewInvalidEnumValueError(message string, cause error) *DomainError {
	return New(KindInvalidEnumValue, message, cause)
}

func NewMissingRequiredOptionError(message string, cause error) *DomainError {
	return New(KindMissingRequired, message, cause)
}

func NewConstraintViolationError(message string, cause error) *DomainError {
	return New(KindConstraintViolated, message, cause)
}

func NewDuplicateServiceError(message string, cause error) *DomainError {
	return New(KindDuplicateService, message, cause)
}

func NewUnknownDependencyError(message string, cause error) *DomainError {
	return New(KindUnknownDependency, message, cause)
}

// Plan-time errors.

func NewCycleError(message string, cause error) *DomainError {
	return New(KindCycle, message, cause)
}

func NewRenderError(message string, cause error) *DomainError {
	return New(KindRender, message, cause)
}

// Probe errors.

func NewProbeFailureError(message string, cause error) *DomainError {
	return New(KindProbeFailure, message, cause)
}

func NewProbeTimeoutError(message string, cause error) *DomainError {
	return New(KindProbeTimeout, message, cause)
}

// System errors.

func NewIOError(message string, cause error) *DomainError {
	return New(KindIO, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return New(KindInternal, message, cause)
}

// Error checking helpers.

func IsKind(err error, kind Kind) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Kind == kind
}

func IsUnknownOptionError(err error) bool {
	return IsKind(err, KindUnknownOption)
}

func IsTypeMismatchError(err error) bool {
	return IsKind(err, KindTypeMismatch)
}

func IsInvalidEnumValueError(err error) bool {
	return IsKind(err, KindInvalidEnumValue)
}

func IsMissingRequiredOptionError(err error) bool {
	return IsKind(err, KindMissingRequired)
}

func IsConstraintViolationError(err error) bool {
	return IsKind(err, KindConstraintViolated)
}

func IsCycleError(err error) bool {
	return IsKind(err, KindCycle)
}

func IsRenderError(err error) bool {
	return IsKind(err, KindRender)
}

func IsProbeTimeoutError(err error) bool {
	return IsKind(err, KindProbeTimeout)
}

// ExitCode extracts the taxonomy exit code from any error chain; plain
// errors map to the internal code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.ExitCode()
	}
	return exitCodes[KindInternal]
}
