package assist

import "fmt"

// Kind classifies assist failures.
type Kind int

const (
	// KindCredential means the server has no model credential. Retrying will not help.
	KindCredential Kind = iota + 1
	// KindUnavailable covers network failures and server errors.
	KindUnavailable
	// KindUnparseable means the model answered with text that is not the expected JSON.
	KindUnparseable
	// KindEmpty means the model answered with nothing.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindUnavailable:
		return "unavailable"
	case KindUnparseable:
		return "unparseable"
	case KindEmpty:
		return "empty"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every assist operation.
type Error struct {
	Kind    Kind
	Message string
	// Raw is the model output for KindUnparseable.
	Raw string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can compare against
// the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Retryable reports whether the user may try the same request again.
func (e *Error) Retryable() bool {
	return e.Kind != KindCredential
}

// Sentinels for errors.Is.
var (
	ErrCredential  = &Error{Kind: KindCredential}
	ErrUnavailable = &Error{Kind: KindUnavailable}
	ErrUnparseable = &Error{Kind: KindUnparseable}
	ErrEmpty       = &Error{Kind: KindEmpty}
)
