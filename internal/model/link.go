package model

import "time"

// LinkRecord is the audit entry written each time a link is issued. It holds
// the signed key names but neither their values nor the hmac, so a leaked
// audit log cannot be replayed.
type LinkRecord struct {
	ID            string    `json:"id"`
	Route         string    `json:"route"`
	SignedKeys    []string  `json:"signedKeys"`
	AllowAddition bool      `json:"allowAddition"`
	ExpiresAt     time.Time `json:"expiresAt"`
	IssuedAt      time.Time `json:"issuedAt"`
}
