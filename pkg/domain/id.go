package domain

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
	"os"
	"time"
)

// IDSize is the width of an identifier in bytes.
const IDSize = 32

// ID is a 256-bit random identifier. IDs are opaque: they support equality
// and ordering only, carry no structural meaning, and are wide enough that
// independently generated IDs never collide without coordination.
type ID [IDSize]byte

// ZeroID is the invalid all-zero identifier.
var ZeroID ID

// IsZero reports whether the ID is the invalid zero value.
func (id ID) IsZero() bool { return id == ZeroID }

// Compare orders IDs lexicographically by their raw bytes.
func (id ID) Compare(other ID) int { return bytes.Compare(id[:], other[:]) }

// String returns the lowercase hex form.
func (id ID) String() string { return hex.EncodeToString(id[:]) }

// MarshalText renders the hex form, so IDs embed in JSON records as strings.
func (id ID) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(IDSize))
	hex.Encode(out, id[:])
	return out, nil
}

// UnmarshalText parses the hex form.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID decodes the hex form produced by String.
func ParseID(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ZeroID, fmt.Errorf("parse id %q: %w", s, ErrInvalidArgument)
	}
	if len(raw) != IDSize {
		return ZeroID, fmt.Errorf("parse id: got %d bytes, want %d: %w", len(raw), IDSize, ErrInvalidArgument)
	}
	copy(id[:], raw)
	return id, nil
}

// IDFromBytes copies raw into an ID, rejecting short or long input.
func IDFromBytes(raw []byte) (ID, error) {
	var id ID
	if len(raw) != IDSize {
		return ZeroID, fmt.Errorf("id from bytes: got %d bytes, want %d: %w", len(raw), IDSize, ErrCorruption)
	}
	copy(id[:], raw)
	return id, nil
}

// RandomQuality selects how the ID source seeds itself.
type RandomQuality int

const (
	// RandomQualityRobust seeds from the operating system entropy pool and
	// fails if none is available.
	RandomQualityRobust RandomQuality = iota
	// RandomQualityPseudo seeds from the clock and process id. Suitable when
	// entropy is scarce and IDs only need to be unique in practice.
	RandomQualityPseudo
)

// IDSource generates identifiers from an explicit PRNG state. It is handed
// to constructors rather than hidden in package state so tests can inject a
// deterministic seed. An IDSource is not safe for concurrent use; the
// document model is single-writer and so is its source.
type IDSource struct {
	state [4]uint64
}

// NewIDSource constructs a source seeded according to the requested quality.
func NewIDSource(quality RandomQuality) (*IDSource, error) {
	switch quality {
	case RandomQualityRobust:
		var seed [8]byte
		if _, err := rand.Read(seed[:]); err != nil {
			return nil, fmt.Errorf("seed id source: %w", ErrSystemResources)
		}
		return NewSeededIDSource(binary.LittleEndian.Uint64(seed[:])), nil
	case RandomQualityPseudo:
		return NewSeededIDSource(uint64(time.Now().UnixNano()) + uint64(os.Getpid())), nil
	default:
		return nil, fmt.Errorf("unknown random quality %d: %w", quality, ErrInvalidArgument)
	}
}

// NewSeededIDSource constructs a deterministic source for tests.
func NewSeededIDSource(seed uint64) *IDSource {
	s := &IDSource{}
	// splitmix64 expansion of the seed into xoshiro256** state
	for i := range s.state {
		seed += 0x9e3779b97f4a7c15
		z := seed
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		s.state[i] = z ^ (z >> 31)
	}
	return s
}

// Uint64 returns the next value of the underlying xoshiro256** stream.
func (s *IDSource) Uint64() uint64 {
	result := bits.RotateLeft64(s.state[1]*5, 7) * 9
	t := s.state[1] << 17
	s.state[2] ^= s.state[0]
	s.state[3] ^= s.state[1]
	s.state[1] ^= s.state[2]
	s.state[0] ^= s.state[3]
	s.state[2] ^= t
	s.state[3] = bits.RotateLeft64(s.state[3], 45)
	return result
}

// Uint32 returns the next 32 random bits.
func (s *IDSource) Uint32() uint32 { return uint32(s.Uint64() >> 32) }

// Float64 returns a uniform value in [0, 1).
func (s *IDSource) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// NewID draws the next 256-bit identifier.
func (s *IDSource) NewID() ID {
	var id ID
	for i := 0; i < IDSize; i += 8 {
		binary.LittleEndian.PutUint64(id[i:], s.Uint64())
	}
	return id
}
