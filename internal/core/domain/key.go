package domain

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key identifies what was requested from the cache: an operation and its literal arguments.
type Key struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// NewKey returns a Key for op applied to args.
func NewKey(op string, args ...string) Key {
	return Key{Op: op, Args: slices.Clone(args)}
}

// String returns the canonical form of the key: every part quoted, space separated.
// Two keys are equal exactly when their canonical forms are.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(k.Op))
	for _, a := range k.Args {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(a))
	}
	return b.String()
}

// Equal reports whether k and other name the same request.
func (k Key) Equal(other Key) bool {
	return k.Op == other.Op && slices.Equal(k.Args, other.Args)
}

// Digest returns a stable hash of the canonical form.
func (k Key) Digest() uint64 {
	return xxhash.Sum64String(k.String())
}
