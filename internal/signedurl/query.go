// Package signedurl connects the signing core to URLs and HTTP requests.
package signedurl

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dharsanguruparan/linksigner/internal/signing"
)

// ErrRepeatedParam is returned when a query names the same key twice. Such a
// query is ambiguous: the verifier and the handler could read different
// values.
var ErrRepeatedParam = errors.New("repeated query parameter")

// FromValues converts a parsed query into Params, inserting keys in sorted
// order.
func FromValues(values url.Values) (signing.Params, error) {
	keys := make([]string, 0, len(values))
	for k, vs := range values {
		if len(vs) > 1 {
			return signing.Params{}, fmt.Errorf("%w: %q", ErrRepeatedParam, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var p signing.Params
	for _, k := range keys {
		if len(values[k]) == 0 {
			p.SetString(k, "")
			continue
		}
		p.SetString(k, values[k][0])
	}
	return p, nil
}

// ParseQuery parses a raw query string into Params.
func ParseQuery(rawQuery string) (signing.Params, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return signing.Params{}, fmt.Errorf("parse query: %w", err)
	}
	return FromValues(values)
}

// ToValues converts Params back into url.Values using the canonical value
// form. Null values become empty strings.
func ToValues(p signing.Params) url.Values {
	values := make(url.Values, p.Len())
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		values.Set(k, v.String())
	}
	return values
}

// Encode renders p as a query string, keeping insertion order so the
// control parameters trail the caller's own.
func Encode(p signing.Params) string {
	var b strings.Builder
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteByte('&')
		}
		v, _ := p.Get(k)
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v.String()))
	}
	return b.String()
}

// Build joins base, route and the signed parameters into a URL. base may be
// empty to produce a path-only link.
func Build(base, route string, p signing.Params) (string, error) {
	if !strings.HasPrefix(route, "/") {
		return "", signing.ErrRelativeRoute
	}
	target := strings.TrimRight(base, "/") + route
	if base != "" {
		if _, err := url.Parse(target); err != nil {
			return "", fmt.Errorf("parse base url: %w", err)
		}
	}
	if p.Len() == 0 {
		return target, nil
	}
	return target + "?" + Encode(p), nil
}

// Split separates a URL into the route used for signing and its parameters.
func Split(rawURL string) (string, signing.Params, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", signing.Params{}, fmt.Errorf("parse url: %w", err)
	}
	p, err := ParseQuery(u.RawQuery)
	if err != nil {
		return "", signing.Params{}, err
	}
	route := u.Path
	if route == "" {
		route = "/"
	}
	return route, p, nil
}
