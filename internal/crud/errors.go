package crud

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindBadRequest
	KindNotFound
	KindUnsupportedOperator
	KindInvalidJoinPath
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "Bad Request"
	case KindNotFound:
		return "Not Found"
	case KindUnsupportedOperator:
		return "Unsupported Operator"
	case KindInvalidJoinPath:
		return "Invalid Join Path"
	case KindStoreFailure:
		return "Store Failure"
	}
	return "Unknown"
}

// Error is the error type returned by the query builder and the service.
// Err carries the store's own error for KindStoreFailure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is; only the kind is compared.
var (
	ErrBadRequest          = &Error{Kind: KindBadRequest}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUnsupportedOperator = &Error{Kind: KindUnsupportedOperator}
	ErrInvalidJoinPath     = &Error{Kind: KindInvalidJoinPath}
	ErrStoreFailure        = &Error{Kind: KindStoreFailure}
)

// ErrNoMatch is returned by stores when a write selects no document.
var ErrNoMatch = errors.New("no document matched")

var (
	errNothingCreated    = errors.New("store created no documents")
	errMissingPrimaryKey = errors.New("document has no primary key")
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func badRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func notFound(name string) *Error {
	return &Error{Kind: KindNotFound, Message: name + " not found"}
}

func unsupportedOperator(op string) *Error {
	return &Error{Kind: KindUnsupportedOperator, Message: fmt.Sprintf("invalid operator %s", op)}
}

func invalidJoinPath(err error) *Error {
	return &Error{Kind: KindInvalidJoinPath, Message: "invalid join", Err: err}
}

// storeFailure wraps a store error keeping its detail and stack.
func storeFailure(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: KindStoreFailure, Err: errors.Wrapf(err, format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
