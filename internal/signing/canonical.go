package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	routeSeparator = "|"
	valueSeparator = "#"
	keySeparator   = ","
)

// canonicalString builds route|v1#v2#... with values in ascending byte order
// of their keys. Separators inside values are not escaped, so values that
// contain '#' can collide with a different split of the same bytes. The
// format is kept as-is so existing links keep verifying.
func canonicalString(params Params, route string) string {
	var b strings.Builder
	b.WriteString(strings.Trim(route, "/"))
	b.WriteString(routeSeparator)
	for i, k := range params.sortedKeys() {
		if i > 0 {
			b.WriteString(valueSeparator)
		}
		v, _ := params.Get(k)
		b.WriteString(v.String())
	}
	return b.String()
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// encodeTag renders a MAC as unpadded URL-safe base64.
func encodeTag(tag []byte) string {
	return base64.RawURLEncoding.EncodeToString(tag)
}

// tagsEqual compares a computed tag with a presented one in constant time.
// Trailing '=' padding on the presented value is ignored so links minted by
// padded encoders still verify.
func tagsEqual(computed, presented string) bool {
	presented = strings.TrimRight(presented, "=")
	return hmac.Equal([]byte(computed), []byte(presented))
}

func joinKeys(keys []string) string {
	return strings.Join(keys, keySeparator)
}

func splitKeys(manifest string) []string {
	return strings.Split(manifest, keySeparator)
}
