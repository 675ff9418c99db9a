package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // native allocator
	PhaseAttach   Phase = "attach"   // object added to a container
	PhaseDetach   Phase = "detach"   // object removed from a container
	PhaseLink     Phase = "link"     // reference target bookkeeping
	PhaseLibrary  Phase = "library"  // library membership
	PhaseCallback Phase = "callback" // custom join/end/bend/parametric functions
	PhaseFinalize Phase = "finalize" // teardown of native blocks
	PhaseCopy     Phase = "copy"     // container copy
	PhaseFilter   Phase = "filter"   // tag filtering
	PhaseFlatten  Phase = "flatten"  // reference flattening
	PhaseHost     Phase = "host"     // host module calls
	PhaseScript   Phase = "script"   // layout script loading
)

// Kind categorizes the error
type Kind string

const (
	KindDuplicateAttachment Kind = "duplicate_attachment"
	KindNotFound            Kind = "not_found"
	KindInvalidArgument     Kind = "invalid_argument"
	KindUnsupported         Kind = "unsupported"
	KindStaleHandle         Kind = "stale_handle"
	KindCycle               Kind = "cycle"
	KindInvalidData         Kind = "invalid_data"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Object   string
	Expected string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}

	if e.Object != "" || e.Expected != "" {
		b.WriteString(": ")
		if e.Object != "" && e.Expected != "" {
			b.WriteString("got ")
			b.WriteString(e.Object)
			b.WriteString(", want ")
			b.WriteString(e.Expected)
		} else if e.Object != "" {
			b.WriteString("object ")
			b.WriteString(e.Object)
		} else {
			b.WriteString("want ")
			b.WriteString(e.Expected)
		}
	}

	if e.Detail != "" {
		if e.Object != "" || e.Expected != "" {
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

// IsKind reports whether err, or any error wrapped by it, is an *Error of
// the given kind regardless of phase. Joined errors (multierr, errors.Join)
// are searched member by member.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, member := range x.Unwrap() {
			if IsKind(member, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(x.Unwrap(), kind)
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

// Path sets the object path (library/cell/object)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Object sets the offending object kind
func (b *Builder) Object(kind string) *Builder {
	b.err.Object = kind
	return b
}

// Expected sets the accepted object kind(s)
func (b *Builder) Expected(kind string) *Builder {
	b.err.Expected = kind
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

// DuplicateAttachment reports an object attached twice to the same container.
func DuplicateAttachment(phase Phase, object string, addr uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicateAttachment,
		Object: object,
		Detail: fmt.Sprintf("address %#x already attached", addr),
		Value:  addr,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, addr uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Object: what,
		Detail: fmt.Sprintf("address %#x not registered", addr),
		Value:  addr,
	}
}

// WrongKind creates an invalid argument error for an object of the wrong kind.
func WrongKind(phase Phase, got, want string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidArgument,
		Object:   got,
		Expected: want,
	}
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: detail,
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

// StaleHandle reports a lookup through an address whose block was freed.
func StaleHandle(phase Phase, addr uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStaleHandle,
		Detail: fmt.Sprintf("address %#x refers to a freed block", addr),
		Value:  addr,
	}
}

// Cycle reports a reference chain that leads back to a cell already on the path.
func Cycle(phase Phase, path []string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCycle,
		Path:   path,
		Detail: "cell references itself",
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
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

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseScript,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
