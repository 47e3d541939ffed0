// Package gitlib wraps libgit2 for read-only commit inspection and drives the
// git CLI for the operations that mutate a working tree (clone, fetch,
// checkout).
package gitlib

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// HashSize is the size of a SHA-1 hash in bytes.
const HashSize = 20

// Sentinel errors for commit lookups.
var (
	ErrInvalidHash     = errors.New("invalid commit hash")
	ErrParentNotFound  = errors.New("parent commit not found")
	ErrUnknownRevision = errors.New("unknown revision")
)

// Hash is a git object id.
type Hash [HashSize]byte

// ParseHash parses a full hex commit id. Surrounding whitespace and case are
// ignored.
func ParseHash(s string) (Hash, error) {
	var h Hash

	raw, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || len(raw) != HashSize {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	copy(h[:], raw)

	return h, nil
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	copy(h[:], oid[:])

	return h
}

// String returns the lower-case hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ToOid converts h to a libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
