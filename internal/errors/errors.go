// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation      ErrorCategory = "validation"
	CategoryFileIO          ErrorCategory = "file-io"
	CategoryNetwork         ErrorCategory = "network"
	CategoryAudio           ErrorCategory = "audio-processing"
	CategoryAudioFormat     ErrorCategory = "audio-format"
	CategoryDenoise         ErrorCategory = "denoise"
	CategoryAnalyzer        ErrorCategory = "analyzer"
	CategoryFusion          ErrorCategory = "score-fusion"
	CategoryDatabase        ErrorCategory = "database"
	CategoryHTTP            ErrorCategory = "http-request"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryAlert           ErrorCategory = "alert"
	CategoryNotification    ErrorCategory = "notification"
	CategoryMQTTConnection  ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish     ErrorCategory = "mqtt-publish"
	CategoryLanguageService ErrorCategory = "language-service"
	CategoryRetry           ErrorCategory = "retry"
	CategoryTimeout         ErrorCategory = "timeout"
	CategoryCancellation    ErrorCategory = "cancellation"
	CategoryNotFound        ErrorCategory = "not-found"
	CategoryConflict        ErrorCategory = "conflict"
	CategoryState           ErrorCategory = "state"
	CategoryGeneric         ErrorCategory = "generic"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category for better grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	reported  bool           // Whether telemetry has been sent
	mu        sync.RWMutex
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking: two enhanced errors match when their
// categories match, otherwise matching falls through to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name, or "unknown" when unset.
func (ee *EnhancedError) GetComponent() string {
	if ee.Component == "" {
		return ComponentUnknown
	}
	return ee.Component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority if set, empty string otherwise
func (ee *EnhancedError) GetPriority() string {
	return ee.Priority
}

// GetContext returns a copy of the error context to prevent external modification.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error occurred
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// MarkReported marks this error as reported to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error builder wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{
		err: err,
		// context is lazily initialized when needed
	}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override for the error.
// Invalid values fall back to medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		if priority != "" {
			eb.priority = PriorityMedium
		}
	}
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the final EnhancedError and reports it to the registered
// telemetry hook, if any.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.category == "" {
		eb.category = CategoryGeneric
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	publishError(ee)
	return ee
}

// NewStd creates a plain standard error without enhancement. Intended for
// sentinel errors where builder overhead is unnecessary.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error wrapping the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// --- telemetry hook ---

// ErrorHook receives every built enhanced error. Used by the telemetry
// package to forward errors without creating an import cycle.
type ErrorHook func(ee *EnhancedError)

var (
	hookMu    sync.RWMutex
	errorHook ErrorHook
)

// SetErrorHook registers the telemetry hook. Passing nil disables reporting.
func SetErrorHook(hook ErrorHook) {
	hookMu.Lock()
	defer hookMu.Unlock()
	errorHook = hook
}

func publishError(ee *EnhancedError) {
	hookMu.RLock()
	hook := errorHook
	hookMu.RUnlock()
	if hook != nil {
		hook(ee)
	}
}
