// Package walleterr defines the closed error-kind enum shared by every
// subsystem, plus the FFI-boundary code mapping. Callers inside the module
// should compare kinds with errors.As, never by inspecting strings.
package walleterr

import "fmt"

// Kind enumerates the error categories a caller can act on. It mirrors the
// ABC_CC_* sentinel family, but only the FFI boundary (internal/ffi) ever
// translates a Kind back into that wire enum.
type Kind int

const (
	KindNone Kind = iota
	KindAccountAlreadyExists
	KindAccountDoesNotExist
	KindBadPassword
	KindNoAvailAccountSpace
	KindInsufficientFunds
	KindJSON
	KindCorrupt
	KindCrypto
	KindIO
	KindServer
	KindNetwork
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAccountAlreadyExists:
		return "account_already_exists"
	case KindAccountDoesNotExist:
		return "account_does_not_exist"
	case KindBadPassword:
		return "bad_password"
	case KindNoAvailAccountSpace:
		return "no_avail_account_space"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindJSON:
		return "json_error"
	case KindCorrupt:
		return "corrupt"
	case KindCrypto:
		return "crypto_error"
	case KindIO:
		return "io_error"
	case KindServer:
		return "server_error"
	case KindNetwork:
		return "network_error"
	default:
		return "internal"
	}
}

// Error wraps a Kind with an optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// carries no *Error in its chain.
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
