package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLifecycle Phase = "lifecycle" // sandbox create/destroy bracketing
	PhaseConvert   Phase = "convert"   // host <-> sandbox representation
	PhaseInvoke    Phase = "invoke"    // sandbox function invocation
	PhaseAlloc     Phase = "alloc"     // sandbox heap allocation
	PhaseMemory    Phase = "memory"    // sandbox heap reads/writes
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds  Kind = "out_of_bounds"
	KindUnsupported  Kind = "unsupported"
	KindAllocation   Kind = "allocation"
	KindNullPointer  Kind = "null_pointer"
	KindNotCreated   Kind = "not_created"
	KindDestroyed    Kind = "destroyed"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindTypeMismatch Kind = "type_mismatch"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	HostType string
	SbxType  string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.HostType != "" || e.SbxType != "" {
		b.WriteString(": ")
		if e.HostType != "" && e.SbxType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
			b.WriteString(", sandbox type ")
			b.WriteString(e.SbxType)
		} else if e.HostType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
		} else {
			b.WriteString("sandbox type ")
			b.WriteString(e.SbxType)
		}
	}

	if e.Detail != "" {
		if e.HostType != "" || e.SbxType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// HostType sets the host type name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// SbxType sets the sandbox type name
func (b *Builder) SbxType(t string) *Builder {
	b.err.SbxType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// OffsetOutOfBounds creates an error for a sandbox-relative offset that
// does not fit in the heap
func OffsetOutOfBounds(phase Phase, offset uint64, length uint32, heapSize uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %#x length %d outside heap of %d bytes", offset, length, heapSize),
		Value:  offset,
	}
}

// AddressOutOfBounds creates an error for a host address that does not
// fall within the sandbox heap
func AddressOutOfBounds(addr, base uintptr, heapSize uint64) *Error {
	return &Error{
		Phase:  PhaseConvert,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("host address %#x outside heap [%#x, %#x)", addr, base, uint64(base)+heapSize),
		Value:  addr,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NullPointer creates a null pointer error
func NullPointer(phase Phase, hostType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindNullPointer,
		HostType: hostType,
		Detail:   "null sandbox pointer",
	}
}

// NotCreated creates an error for use of a sandbox before Create
func NotCreated(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotCreated,
		Detail: "sandbox not created",
	}
}

// Destroyed creates an error for use of a sandbox after Destroy
func Destroyed(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDestroyed,
		Detail: "sandbox destroyed",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, hostType, sbxType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		HostType: hostType,
		SbxType:  sbxType,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
