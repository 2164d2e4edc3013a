package ping

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
)

// Source supplies the random identifier and payload of a request when the
// caller leaves them unset.
type Source interface {
	Uint16() uint16
	Read(p []byte) (int, error)
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

// Uint16 returns a random value from crypto/rand.
func (CryptoSource) Uint16() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

// Read fills p from crypto/rand.
func (CryptoSource) Read(p []byte) (int, error) {
	return rand.Read(p)
}

// SeededSource is a deterministic Source for reproducible runs.
type SeededSource struct {
	r *mrand.Rand
}

// NewSeededSource returns a Source whose output depends only on seed.
func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{r: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Uint16 returns the next value from the seeded generator.
func (s *SeededSource) Uint16() uint16 {
	return uint16(s.r.Uint32())
}

// Read fills p from the seeded generator.
func (s *SeededSource) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		var word [8]byte
		binary.LittleEndian.PutUint64(word[:], s.r.Uint64())
		copy(p[i:], word[:])
	}
	return len(p), nil
}
