// Package signing issues and verifies tamper-evident, time-limited links.
//
// A route and its query parameters are authenticated with HMAC-SHA256 over a
// canonical string. Three reserved parameters carry the control data: the
// MAC itself, an optional manifest naming the signed keys (so unsigned
// parameters may be appended later) and the expiry timestamp.
//
// A Signer holds only immutable configuration and may be shared by any
// number of goroutines.
package signing

import (
	"fmt"
	"strings"
	"time"

	"github.com/dharsanguruparan/linksigner/internal/clock"
)

// Defaults shared by signers and verifiers that are not configured otherwise.
const (
	DefaultHmacParam          = "hmac"
	DefaultParamsParam        = "params"
	DefaultExpiresParam       = "expires"
	DefaultExpirationInterval = 7 * 24 * time.Hour
)

// Signer signs and verifies parameter sets. Build it with New; the zero
// value is not usable.
type Signer struct {
	secret        []byte
	clock         clock.Clock
	hmacParam     string
	paramsParam   string
	expiresParam  string
	defaultTTL    time.Duration
	requireExpiry bool
}

// Option configures a Signer at construction.
type Option func(*Signer)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Signer) { s.clock = c }
}

// WithHmacParam renames the parameter that carries the MAC.
func WithHmacParam(name string) Option {
	return func(s *Signer) { s.hmacParam = name }
}

// WithParamsParam renames the parameter that carries the signed-key manifest.
func WithParamsParam(name string) Option {
	return func(s *Signer) { s.paramsParam = name }
}

// WithExpiresParam renames the parameter that carries the expiry timestamp.
func WithExpiresParam(name string) Option {
	return func(s *Signer) { s.expiresParam = name }
}

// WithDefaultExpiration sets the validity used when Sign gets no explicit
// expiration.
func WithDefaultExpiration(d time.Duration) Option {
	return func(s *Signer) { s.defaultTTL = d }
}

// WithRequiredExpiration makes Verify reject parameter sets that carry no
// expiry at all. Without it such links never expire.
func WithRequiredExpiration() Option {
	return func(s *Signer) { s.requireExpiry = true }
}

// New validates the configuration and returns an immutable Signer. The
// secret is copied.
func New(secret []byte, opts ...Option) (*Signer, error) {
	s := &Signer{
		secret:       append([]byte(nil), secret...),
		clock:        clock.System{},
		hmacParam:    DefaultHmacParam,
		paramsParam:  DefaultParamsParam,
		expiresParam: DefaultExpiresParam,
		defaultTTL:   DefaultExpirationInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Signer) validate() error {
	if len(s.secret) == 0 {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfig)
	}
	if s.clock == nil {
		return fmt.Errorf("%w: clock is required", ErrInvalidConfig)
	}
	if s.defaultTTL <= 0 {
		return fmt.Errorf("%w: default expiration must be positive", ErrInvalidConfig)
	}
	names := map[string]string{
		"hmac":    s.hmacParam,
		"params":  s.paramsParam,
		"expires": s.expiresParam,
	}
	seen := make(map[string]bool, len(names))
	for _, role := range []string{"hmac", "params", "expires"} {
		name := names[role]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: %s parameter name is required", ErrInvalidConfig, role)
		}
		if strings.Contains(name, keySeparator) {
			return fmt.Errorf("%w: %s parameter name cannot contain %q", ErrInvalidConfig, role, keySeparator)
		}
		if seen[name] {
			return fmt.Errorf("%w: parameter name %q used twice", ErrInvalidConfig, name)
		}
		seen[name] = true
	}
	return nil
}

// HmacParam returns the name of the MAC parameter.
func (s *Signer) HmacParam() string { return s.hmacParam }

// ParamsParam returns the name of the manifest parameter.
func (s *Signer) ParamsParam() string { return s.paramsParam }

// ExpiresParam returns the name of the expiry parameter.
func (s *Signer) ExpiresParam() string { return s.expiresParam }

// DefaultExpiration returns the validity applied when none is given.
func (s *Signer) DefaultExpiration() time.Duration { return s.defaultTTL }

// ComputeMAC returns the unpadded base64url HMAC-SHA256 of params bound to
// route. Leading and trailing slashes of route are ignored and the result
// does not depend on the insertion order of params.
func (s *Signer) ComputeMAC(params Params, route string) string {
	return encodeTag(hmacSHA256(s.secret, canonicalString(params, route)))
}

type signRequest struct {
	allowAddition bool
	expiration    time.Time
}

// SignOption adjusts a single Sign call.
type SignOption func(*signRequest)

// DisallowAdditions omits the manifest, so every parameter presented at
// verification must have been signed.
func DisallowAdditions() SignOption {
	return func(r *signRequest) { r.allowAddition = false }
}

// ExpiresAt sets an explicit expiry instead of the default interval.
func ExpiresAt(t time.Time) SignOption {
	return func(r *signRequest) { r.expiration = t }
}

// Sign returns a copy of params extended with the expiry, the manifest
// (unless additions are disallowed) and the MAC. params is not modified.
// With a manifest, no key may contain the manifest separator.
func (s *Signer) Sign(route string, params Params, opts ...SignOption) (Params, error) {
	req := signRequest{allowAddition: true}
	for _, opt := range opts {
		opt(&req)
	}
	if params.Has(s.hmacParam) || params.Has(s.paramsParam) {
		return Params{}, ErrAlreadyPresent
	}
	if !strings.HasPrefix(route, "/") {
		return Params{}, ErrRelativeRoute
	}
	if req.allowAddition {
		for _, key := range params.Keys() {
			if strings.Contains(key, keySeparator) {
				return Params{}, ErrInvalidKey
			}
		}
	}

	out := params.Clone()
	expiration := req.expiration
	if expiration.IsZero() {
		expiration = s.clock.Now().Add(s.defaultTTL)
	}
	out.SetInt(s.expiresParam, expiration.Unix())

	if req.allowAddition {
		out.SetString(s.paramsParam, joinKeys(out.Keys()))
	}
	out.SetString(s.hmacParam, s.ComputeMAC(out, route))
	return out, nil
}

// Verify checks that params carry a valid MAC for route and have not
// expired. The checks run in a fixed order: presence of the MAC, the MAC
// itself, then expiry.
func (s *Signer) Verify(params Params, route string) error {
	presented, ok := params.Get(s.hmacParam)
	if !ok || !presented.IsString() {
		return ErrMissingHmac
	}

	computed := s.ComputeMAC(s.signedSubset(params), route)
	if !tagsEqual(computed, presented.String()) {
		return ErrInvalidHmac
	}

	return s.checkExpiration(params)
}

// Expiration returns the expiry carried by params, if any.
func (s *Signer) Expiration(params Params) (time.Time, bool) {
	v, ok := params.Get(s.expiresParam)
	if !ok {
		return time.Time{}, false
	}
	n, ok := v.Int64()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(n, 0).UTC(), true
}

// signedSubset selects the parameters covered by the MAC. With a manifest it
// is exactly the listed keys plus the manifest itself; listed keys missing
// from params take part as null. Without one it is everything except the MAC.
func (s *Signer) signedSubset(params Params) Params {
	manifest, ok := params.Get(s.paramsParam)
	if !ok || !manifest.IsString() || manifest.String() == "" {
		out := params.Clone()
		out.Del(s.hmacParam)
		return out
	}

	var out Params
	out.Set(s.paramsParam, manifest)
	for _, key := range splitKeys(manifest.String()) {
		v, ok := params.Get(key)
		if !ok {
			v = Null()
		}
		out.Set(key, v)
	}
	return out
}

// checkExpiration looks at the full parameter set, not only the signed
// subset. A value that is not an integer counts as expired.
func (s *Signer) checkExpiration(params Params) error {
	v, ok := params.Get(s.expiresParam)
	if !ok || v.IsNull() {
		if s.requireExpiry {
			return ErrMissingExpiration
		}
		return nil
	}
	expires, ok := v.Int64()
	if !ok {
		return ErrExpiredLink
	}
	if expires <= s.clock.Now().Unix() {
		return ErrExpiredLink
	}
	return nil
}
