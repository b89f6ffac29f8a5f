package clustercache

import "bytes"

// Key is a 64-bit content hash of an application key.
type Key = uint64

// CacheId identifies one logical cache inside a cluster tier.
type CacheId = string

// Chain is an ordered, immutable sequence of opaque payloads the server
// maintains for one key. The server returns a fresh snapshot on every
// read; clients never mutate a Chain in place.
type Chain struct {
	links [][]byte
}

// NewChain builds a Chain from an ordered set of payloads. The slices
// are not copied; callers must not mutate them afterwards.
func NewChain(links ...[]byte) Chain {
	return Chain{links: links}
}

// Links returns the ordered payloads. The returned slice aliases the
// Chain's internal storage and must not be mutated.
func (c Chain) Links() [][]byte { return c.links }

// Empty reports whether the chain has no links.
func (c Chain) Empty() bool { return len(c.links) == 0 }

// Append returns a new Chain with payload appended after the existing
// links (the server does the real appending; this is used by fakes and
// tests to model the resulting state).
func (c Chain) Append(payload []byte) Chain {
	out := make([][]byte, 0, len(c.links)+1)
	out = append(out, c.links...)
	out = append(out, payload)
	return Chain{links: out}
}

// Equal reports structural equality: same length, same bytes at each
// position.
func (c Chain) Equal(other Chain) bool {
	if len(c.links) != len(other.links) {
		return false
	}
	for i := range c.links {
		if !bytes.Equal(c.links[i], other.links[i]) {
			return false
		}
	}
	return true
}
