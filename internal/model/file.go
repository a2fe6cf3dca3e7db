// Package model contains the records shared between the HTTP server, the
// audit pipeline and the stores.
package model

import "time"

// FileRecord describes an uploaded blob. Links are issued against the ID,
// never against the storage key.
type FileRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	// Key locates the blob in the configured BlobStore and never leaves the
	// server.
	Key       string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
