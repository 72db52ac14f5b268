package domain

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// SortKey orders siblings (tracks, mixer lines, effects) without renumbering.
// A key is a non-empty byte string read as a base-256 fraction in (0, 1);
// ordering is plain lexicographic comparison. New keys can always be
// allocated strictly between two existing keys without touching either
// neighbor, so a command that inserts an entity at an arbitrary position
// carries only the new key, never a renumbering of the whole collection.
//
// Keys produced here never end in a zero byte, which keeps the fraction
// reading canonical. ValidSortKey enforces the same on deserialized input.
type SortKey []byte

// Compare orders two keys. A nil key sorts before every valid key.
func (k SortKey) Compare(other SortKey) int { return bytes.Compare(k, other) }

// Equal reports byte equality.
func (k SortKey) Equal(other SortKey) bool { return bytes.Equal(k, other) }

// SerializedSize reports the number of bytes the key occupies on disk.
func (k SortKey) SerializedSize() int { return len(k) }

// Clone returns an independent copy.
func (k SortKey) Clone() SortKey {
	if k == nil {
		return nil
	}
	return append(SortKey(nil), k...)
}

// String returns the hex form, for logs and test failures.
func (k SortKey) String() string { return hex.EncodeToString(k) }

// ValidSortKey reports whether raw is a well-formed serialized key.
func ValidSortKey(raw []byte) bool {
	return len(raw) > 0 && raw[len(raw)-1] != 0
}

// SortKeyBetween allocates a key strictly between lo and hi. A nil lo means
// "before the first key" and a nil hi means "after the last key"; both nil
// yields the canonical first key. The bounds are never modified.
func SortKeyBetween(lo, hi SortKey) (SortKey, error) {
	if lo != nil && hi != nil && lo.Compare(hi) >= 0 {
		return nil, fmt.Errorf("sort key bounds out of order (%s >= %s): %w", lo, hi, ErrInvalidArgument)
	}
	return sortKeyMid(lo, hi), nil
}

// SortKeysBetween allocates n ordered keys strictly between lo and hi.
func SortKeysBetween(lo, hi SortKey, n int) ([]SortKey, error) {
	if n < 0 {
		return nil, fmt.Errorf("sort key count %d: %w", n, ErrInvalidArgument)
	}
	if lo != nil && hi != nil && lo.Compare(hi) >= 0 {
		return nil, fmt.Errorf("sort key bounds out of order (%s >= %s): %w", lo, hi, ErrInvalidArgument)
	}
	out := make([]SortKey, n)
	fillSortKeys(out, lo, hi)
	return out, nil
}

func fillSortKeys(dst []SortKey, lo, hi SortKey) {
	if len(dst) == 0 {
		return
	}
	m := len(dst) / 2
	mid := sortKeyMid(lo, hi)
	dst[m] = mid
	fillSortKeys(dst[:m], lo, mid)
	fillSortKeys(dst[m+1:], mid, hi)
}

// sortKeyMid computes the midpoint key for a < b, where nil a is the
// infimum and nil b the supremum of the key space.
func sortKeyMid(a, b SortKey) SortKey {
	if len(b) > 0 {
		n := 0
		for n < len(a) && n < len(b) && a[n] == b[n] {
			n++
		}
		if n > 0 {
			out := make(SortKey, 0, n+1)
			out = append(out, b[:n]...)
			return append(out, sortKeyMid(a[n:], b[n:])...)
		}
	}
	ad := 0
	if len(a) > 0 {
		ad = int(a[0])
	}
	bd := 256
	if len(b) > 0 {
		bd = int(b[0])
	}
	if bd == ad {
		// a is exhausted and b leads with a zero digit. Keep b's digit
		// and allocate strictly below b's tail.
		out := SortKey{byte(bd)}
		return append(out, sortKeyMid(nil, b[1:])...)
	}
	if bd-ad > 1 {
		return SortKey{byte((ad + bd) / 2)}
	}
	// adjacent leading digits: keep a's digit, move strictly above a's tail
	var tail SortKey
	if len(a) > 0 {
		tail = a[1:]
	}
	out := SortKey{byte(ad)}
	return append(out, sortKeyMid(tail, nil)...)
}
