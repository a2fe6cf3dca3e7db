package signing

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidConfig is wrapped by every construction failure in New.
var ErrInvalidConfig = errors.New("invalid signer configuration")

// SignErrorKind discriminates signing failures. The numeric values are
// stable and safe to expose to other services.
type SignErrorKind int

const (
	// AlreadyPresent means the input already carries a reserved control key.
	AlreadyPresent SignErrorKind = iota + 1
	// RelativeRoute means the route does not start with "/".
	RelativeRoute
	// InvalidKey means a caller key contains the manifest separator, so the
	// manifest could not name it.
	InvalidKey
)

func (k SignErrorKind) String() string {
	switch k {
	case AlreadyPresent:
		return "already_present"
	case RelativeRoute:
		return "relative_route"
	case InvalidKey:
		return "invalid_key"
	default:
		return fmt.Sprintf("sign_error(%d)", int(k))
	}
}

// SignError is returned by Sign.
type SignError struct {
	Kind SignErrorKind
}

func (e *SignError) Error() string {
	switch e.Kind {
	case AlreadyPresent:
		return "sign: reserved key already present in params"
	case RelativeRoute:
		return "sign: route cannot be relative"
	case InvalidKey:
		return "sign: param key cannot contain " + strconv.Quote(keySeparator)
	default:
		return "sign: " + e.Kind.String()
	}
}

// Is matches any *SignError of the same kind, so the sentinels below work
// with errors.Is.
func (e *SignError) Is(target error) bool {
	t, ok := target.(*SignError)
	return ok && t.Kind == e.Kind
}

// VerificationErrorKind discriminates verification failures. The numeric
// values are stable.
type VerificationErrorKind int

const (
	// ExpiredLink means expires is at or before the current time.
	ExpiredLink VerificationErrorKind = iota + 1
	// InvalidHmac covers both tampering and a wrong secret.
	InvalidHmac
	// MissingHmac means no string hmac value was presented.
	MissingHmac
	// MissingExpiration is only returned when expiry is required.
	MissingExpiration
)

func (k VerificationErrorKind) String() string {
	switch k {
	case ExpiredLink:
		return "expired_link"
	case InvalidHmac:
		return "invalid_hmac"
	case MissingHmac:
		return "missing_hmac"
	case MissingExpiration:
		return "missing_expiration"
	default:
		return fmt.Sprintf("verification_error(%d)", int(k))
	}
}

// VerificationError is returned by Verify.
type VerificationError struct {
	Kind VerificationErrorKind
}

func (e *VerificationError) Error() string {
	switch e.Kind {
	case ExpiredLink:
		return "verify: link has expired"
	case InvalidHmac:
		return "verify: invalid hmac"
	case MissingHmac:
		return "verify: missing hmac"
	case MissingExpiration:
		return "verify: missing expiration"
	default:
		return "verify: " + e.Kind.String()
	}
}

// Is matches any *VerificationError of the same kind.
func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is. Compare kinds, never messages.
var (
	ErrAlreadyPresent = &SignError{Kind: AlreadyPresent}
	ErrRelativeRoute  = &SignError{Kind: RelativeRoute}
	ErrInvalidKey     = &SignError{Kind: InvalidKey}

	ErrExpiredLink       = &VerificationError{Kind: ExpiredLink}
	ErrInvalidHmac       = &VerificationError{Kind: InvalidHmac}
	ErrMissingHmac       = &VerificationError{Kind: MissingHmac}
	ErrMissingExpiration = &VerificationError{Kind: MissingExpiration}
)

// VerificationKind extracts the discriminant from an error returned by
// Verify.
func VerificationKind(err error) (VerificationErrorKind, bool) {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	return 0, false
}

// SignKind extracts the discriminant from an error returned by Sign.
func SignKind(err error) (SignErrorKind, bool) {
	var serr *SignError
	if errors.As(err, &serr) {
		return serr.Kind, true
	}
	return 0, false
}
