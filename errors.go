package objectdb

import "fmt"

// ErrorKind categorizes errors raised at the query boundary (§6).
type ErrorKind string

const (
	// InvalidQuery: unknown column, type mismatch, null-vs-list
	// comparison, ANY/ALL/NONE without a list in the path, descriptor
	// after a non-query token.
	InvalidQuery ErrorKind = "invalid_query"
	// OutOfRange: Limit(negative), timestamp with negative nanoseconds,
	// string exceeding the storage cap.
	OutOfRange ErrorKind = "out_of_range"
	// MissingArgument: $N with N >= the number of provided arguments.
	MissingArgument ErrorKind = "missing_argument"
	// Unsupported: full-object comparison (except against null),
	// @min/@max/@sum/@avg on strings/links, list-vs-list comparisons.
	Unsupported ErrorKind = "unsupported"
	// StaleAccessor is recoverable; the engine retries internally and it
	// should never escape a completed Query call.
	StaleAccessor ErrorKind = "stale_accessor"
	// IOError is surfaced from storage unchanged.
	IOError ErrorKind = "io_error"
)

// QueryError is the categorized error value the engine returns at its
// boundary. Build errors (parser, type check, schema validation) carry a
// human-readable Message naming the offending type/property/fragment and
// are raised before execution; they are never swallowed. Runtime errors
// (StaleAccessor) are recovered transparently inside the engine and
// should not reach a caller — IOError is the only runtime kind that
// aborts a query.
type QueryError struct {
	Kind     ErrorKind
	Message  string
	Fragment string // the offending query text fragment, if any
	Column   string // the offending column/property name, if any
	Cause    error
}

func (e *QueryError) Error() string {
	switch {
	case e.Column != "" && e.Fragment != "":
		return fmt.Sprintf("[%s] %s (column %q, near %q)", e.Kind, e.Message, e.Column, e.Fragment)
	case e.Column != "":
		return fmt.Sprintf("[%s] %s (column %q)", e.Kind, e.Message, e.Column)
	case e.Fragment != "":
		return fmt.Sprintf("[%s] %s (near %q)", e.Kind, e.Message, e.Fragment)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
}

func (e *QueryError) Unwrap() error { return e.Cause }

// WithFragment attaches the offending query-text fragment.
func (e *QueryError) WithFragment(fragment string) *QueryError {
	e.Fragment = fragment
	return e
}

// WithColumn attaches the offending column/property name.
func (e *QueryError) WithColumn(column string) *QueryError {
	e.Column = column
	return e
}

// WithCause attaches a wrapped cause, typically from the storage layer.
func (e *QueryError) WithCause(cause error) *QueryError {
	e.Cause = cause
	return e
}

// NewInvalidQuery builds an InvalidQuery error with a formatted message.
func NewInvalidQuery(format string, args ...any) *QueryError {
	return &QueryError{Kind: InvalidQuery, Message: fmt.Sprintf(format, args...)}
}

// NewOutOfRange builds an OutOfRange error with a formatted message.
func NewOutOfRange(format string, args ...any) *QueryError {
	return &QueryError{Kind: OutOfRange, Message: fmt.Sprintf(format, args...)}
}

// NewMissingArgument builds the precise message spec §4.5 requires:
// "Request for argument at index N but only M arguments are provided".
func NewMissingArgument(index, provided int) *QueryError {
	return &QueryError{
		Kind:    MissingArgument,
		Message: fmt.Sprintf("Request for argument at index %d but only %d arguments are provided", index, provided),
	}
}

// NewUnsupported builds an Unsupported error with a formatted message.
func NewUnsupported(format string, args ...any) *QueryError {
	return &QueryError{Kind: Unsupported, Message: fmt.Sprintf(format, args...)}
}

// NewIOError wraps a storage-layer error unchanged, per §6.
func NewIOError(cause error) *QueryError {
	return &QueryError{Kind: IOError, Message: "storage I/O error", Cause: cause}
}

// IsStaleAccessor reports whether err is a recoverable StaleAccessor
// condition, allowing the engine to retry the read after re-resolving
// the accessor (§5, §7).
func IsStaleAccessor(err error) bool {
	var qe *QueryError
	if e, ok := err.(*QueryError); ok {
		qe = e
	} else {
		return false
	}
	return qe.Kind == StaleAccessor
}
