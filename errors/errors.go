// Package errors defines the structured error taxonomy of the loom engine.
//
// Every error carries a stable code so callers can match with errors.Is
// against the exported sentinels without depending on message text.
package errors

import (
	"errors"
	"strings"
	"time"
)

// Error code constants for structured errors.
const (
	CodeDuplicateRegistration   = "DUPLICATE_REGISTRATION"
	CodeMissingDependency       = "MISSING_DEPENDENCY"
	CodeImportNotExported       = "IMPORT_NOT_EXPORTED"
	CodeCircularDependency      = "CIRCULAR_DEPENDENCY"
	CodeComponentInitialization = "COMPONENT_INITIALIZATION"
	CodeComponentResolution     = "COMPONENT_RESOLUTION"
	CodeContextStartup          = "CONTEXT_STARTUP"
	CodeContextCancelled        = "CONTEXT_CANCELLED"
	CodeTimeout                 = "TIMEOUT"
	CodeInvalidDefinition       = "INVALID_DEFINITION"
	CodeLifecycle               = "LIFECYCLE"
)

// Registration and build phase errors.
var (
	ErrContextFrozen   = errors.New("context imports are frozen after build")
	ErrContextStarted  = errors.New("context already started")
	ErrContextStopped  = errors.New("context already stopped")
	ErrScopeEnded      = errors.New("scope key already ended")
	ErrNilFactory      = errors.New("component factory must not be nil")
	ErrUnknownScope    = errors.New("unknown component scope")
	ErrBuilderConsumed = errors.New("builder has already produced a module")
)

// Error represents a structured engine error with context.
type Error struct {
	Code      string
	Message   string
	Cause     error
	Timestamp time.Time
	Context   map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by error code, allowing comparison against sentinel errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithContext adds a key/value pair to the error context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(code, message string, cause error, ctx map[string]any) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   ctx,
	}
}

// ErrDuplicateRegistration reports a type ID registered twice in one context.
func ErrDuplicateRegistration(typeID, contextName string) *Error {
	return newError(CodeDuplicateRegistration,
		"component '"+typeID+"' already registered in context '"+contextName+"'",
		nil,
		map[string]any{"type_id": typeID, "context": contextName})
}

// ErrMissingDependency reports a dependency or import target that cannot be
// found in the named context.
func ErrMissingDependency(typeID, contextName string) *Error {
	return newError(CodeMissingDependency,
		"dependency '"+typeID+"' not found in context '"+contextName+"'",
		nil,
		map[string]any{"type_id": typeID, "context": contextName})
}

// ErrImportNotExported reports an import whose target exists in the source
// context but is not part of its export surface. Distinct from a missing
// dependency: the component is there, the declaration is wrong, so even an
// optional import fails on it.
func ErrImportNotExported(typeID, sourceContext string) *Error {
	return newError(CodeImportNotExported,
		"component '"+typeID+"' is not exported by context '"+sourceContext+"'",
		nil,
		map[string]any{"type_id": typeID, "source_context": sourceContext})
}

// ErrCircularDependency reports a dependency cycle. The chain contains the
// full offending path, component-level or context-level.
func ErrCircularDependency(chain []string) *Error {
	return newError(CodeCircularDependency,
		"circular dependency detected: "+strings.Join(chain, " -> "),
		nil,
		map[string]any{"chain": chain})
}

// Chain extracts the offending chain from a circular dependency error.
func Chain(err error) []string {
	var e *Error
	if As(err, &e) && e.Code == CodeCircularDependency {
		if chain, ok := e.Context["chain"].([]string); ok {
			return chain
		}
	}
	return nil
}

// ErrComponentInitialization wraps a factory or initialize failure with the
// offending type ID.
func ErrComponentInitialization(typeID string, cause error) *Error {
	return newError(CodeComponentInitialization,
		"failed to initialize component '"+typeID+"'",
		cause,
		map[string]any{"type_id": typeID})
}

// ErrComponentResolution wraps a resolution failure with the offending type ID.
func ErrComponentResolution(typeID string, cause error) *Error {
	return newError(CodeComponentResolution,
		"failed to resolve component '"+typeID+"'",
		cause,
		map[string]any{"type_id": typeID})
}

// ErrContextStartup reports a builder-level failure naming the failing context.
func ErrContextStartup(contextName string, cause error) *Error {
	return newError(CodeContextStartup,
		"failed to start context '"+contextName+"'",
		cause,
		map[string]any{"context": contextName})
}

// ErrContextCancelled reports cancellation observed during an operation.
func ErrContextCancelled(operation string) *Error {
	return newError(CodeContextCancelled,
		"cancelled during "+operation,
		nil,
		map[string]any{"operation": operation})
}

// ErrTimeout reports a timeout during the named operation.
func ErrTimeout(operation string, timeout time.Duration) *Error {
	return newError(CodeTimeout,
		"timeout during "+operation+" after "+timeout.String(),
		nil,
		map[string]any{"operation": operation, "timeout": timeout.String()})
}

// ErrInvalidDefinition reports a malformed component or module definition.
func ErrInvalidDefinition(subject string, cause error) *Error {
	return newError(CodeInvalidDefinition,
		"invalid definition for "+subject,
		cause,
		map[string]any{"subject": subject})
}

// ErrLifecycle reports an illegal lifecycle transition or phase failure.
func ErrLifecycle(phase string, cause error) *Error {
	return newError(CodeLifecycle,
		"lifecycle error during "+phase,
		cause,
		map[string]any{"phase": phase})
}

// Sentinel errors for use with errors.Is.
var (
	// ErrDuplicateRegistrationSentinel matches duplicate registration errors.
	ErrDuplicateRegistrationSentinel = &Error{Code: CodeDuplicateRegistration}

	// ErrMissingDependencySentinel matches missing dependency / import errors.
	ErrMissingDependencySentinel = &Error{Code: CodeMissingDependency}

	// ErrImportNotExportedSentinel matches imports of non-exported components.
	ErrImportNotExportedSentinel = &Error{Code: CodeImportNotExported}

	// ErrCircularDependencySentinel matches component and context cycles.
	ErrCircularDependencySentinel = &Error{Code: CodeCircularDependency}

	// ErrComponentInitializationSentinel matches factory/initialize failures.
	ErrComponentInitializationSentinel = &Error{Code: CodeComponentInitialization}

	// ErrComponentResolutionSentinel matches resolution failures.
	ErrComponentResolutionSentinel = &Error{Code: CodeComponentResolution}

	// ErrContextStartupSentinel matches builder-level startup failures.
	ErrContextStartupSentinel = &Error{Code: CodeContextStartup}

	// ErrContextCancelledSentinel matches cancellation errors.
	ErrContextCancelledSentinel = &Error{Code: CodeContextCancelled}

	// ErrTimeoutSentinel matches timeout errors.
	ErrTimeoutSentinel = &Error{Code: CodeTimeout}

	// ErrInvalidDefinitionSentinel matches malformed definition errors.
	ErrInvalidDefinitionSentinel = &Error{Code: CodeInvalidDefinition}

	// ErrLifecycleSentinel matches lifecycle phase errors.
	ErrLifecycleSentinel = &Error{Code: CodeLifecycle}
)

// IsDuplicateRegistration checks for a duplicate registration error.
func IsDuplicateRegistration(err error) bool {
	return Is(err, ErrDuplicateRegistrationSentinel)
}

// IsMissingDependency checks for a missing dependency or import error.
func IsMissingDependency(err error) bool {
	return Is(err, ErrMissingDependencySentinel)
}

// IsImportNotExported checks for an import of a non-exported component.
func IsImportNotExported(err error) bool {
	return Is(err, ErrImportNotExportedSentinel)
}

// IsCircularDependency checks for a circular dependency error.
func IsCircularDependency(err error) bool {
	return Is(err, ErrCircularDependencySentinel)
}

// IsComponentInitialization checks for a component initialization error.
func IsComponentInitialization(err error) bool {
	return Is(err, ErrComponentInitializationSentinel)
}

// IsComponentResolution checks for a component resolution error.
func IsComponentResolution(err error) bool {
	return Is(err, ErrComponentResolutionSentinel)
}

// IsContextStartup checks for a context startup error.
func IsContextStartup(err error) bool {
	return Is(err, ErrContextStartupSentinel)
}

// IsTimeout checks for a timeout error.
func IsTimeout(err error) bool {
	return Is(err, ErrTimeoutSentinel)
}

// Is reports whether any error in err's chain matches target.
// Convenience wrapper around errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// Convenience wrapper around errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the next error in err's chain, if any.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Join wraps the given errors, discarding nil values.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
