// Package id issues identifiers for users and materials.
package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID. IDs sort by creation time, so material listings and
// table scans come back roughly oldest first.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
