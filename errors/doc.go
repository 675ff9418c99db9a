// Package errors provides structured error types for the ownership bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending object kind, the accepted kind, an object
// path (library/cell/object) and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAttach, errors.KindInvalidArgument).
//		Path("lib", "TOP").
//		Object("Library").
//		Expected("Polygon, FlexPath, RobustPath, Label or Reference").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.DuplicateAttachment(errors.PhaseAttach, "Polygon", addr)
//	err := errors.NotFound(errors.PhaseDetach, "Label", addr)
//
// DuplicateAttachment and NotFound signal a broken registry invariant and are
// never expected in correct operation. InvalidArgument is the only kind a
// caller is expected to recover from.
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches on kind alone and looks inside joined errors.
package errors
