package shortener

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/mfontes/shortlink/pkg/base62"
)

const (
	DefaultCodeLength = 7
	MaxCodeLength     = 32

	// randSpan bounds the random component mixed into each candidate.
	// unixMilli * randSpan stays well inside uint64 for centuries.
	randSpan = 1_000_000
)

// ClockRandomGenerator combines a millisecond timestamp with a bounded
// random component, encodes the result in base62 and truncates or pads it
// to the requested length. It is stateless and safe for unlimited parallel
// use. It does NOT guarantee uniqueness; the link store's conditional
// insert is the enforcement point, so collisions only cost a retry.
type ClockRandomGenerator struct {
	now func() time.Time
}

func NewClockRandomGenerator() *ClockRandomGenerator {
	return &ClockRandomGenerator{now: time.Now}
}

func (g *ClockRandomGenerator) Generate(length int) (string, error) {
	if length <= 0 || length > MaxCodeLength {
		length = DefaultCodeLength
	}

	r, err := randUint64(randSpan)
	if err != nil {
		return "", err
	}

	ms := uint64(g.now().UTC().UnixMilli())
	code := base62.Encode(ms*randSpan + r)

	// Low-order digits carry both the random component and the fastest
	// moving timestamp bits, so truncation keeps the high-entropy end.
	if len(code) > length {
		code = code[len(code)-length:]
	}
	for len(code) < length {
		idx, err := randUint64(uint64(len(base62.Alphabet)))
		if err != nil {
			return "", err
		}
		code += string(base62.Alphabet[idx])
	}

	return code, nil
}

// randUint64 returns a uniform value in [0, max) from crypto/rand.
func randUint64(max uint64) (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]) % max, nil
}

// ValidCode reports whether code is acceptable as a short code: non-empty,
// at most MaxCodeLength bytes, base62 alphabet only.
func ValidCode(code string) bool {
	if code == "" || len(code) > MaxCodeLength {
		return false
	}
	return base62.Valid(code)
}
