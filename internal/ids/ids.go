// Package ids generates request identifiers.
package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Sanitize returns candidate when it is a well-formed ULID, otherwise a fresh one.
// Inbound request ids are only trusted in that shape.
func Sanitize(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if _, err := ulid.ParseStrict(candidate); err == nil {
		return strings.ToUpper(candidate)
	}
	return New()
}
