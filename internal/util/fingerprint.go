package util

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Fingerprint accumulates a sha256 digest over length-prefixed fields, so
// free-text fields cannot shift across boundaries
type Fingerprint struct {
	h hash.Hash
}

// NewFingerprint starts an empty digest
func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: sha256.New()}
}

// Bytes adds one field
func (f *Fingerprint) Bytes(b []byte) *Fingerprint {
	f.Uint(uint64(len(b)))
	f.h.Write(b)
	return f
}

// Fields adds each string as its own field
func (f *Fingerprint) Fields(fields ...string) *Fingerprint {
	for _, s := range fields {
		f.Bytes([]byte(s))
	}
	return f
}

// List adds a count followed by the items, so empty and absent lists differ
// from the fields that follow them
func (f *Fingerprint) List(items []string) *Fingerprint {
	f.Uint(uint64(len(items)))
	return f.Fields(items...)
}

// Float adds the exact bit pattern of v
func (f *Fingerprint) Float(v float64) *Fingerprint {
	return f.Uint(math.Float64bits(v))
}

// Uint adds a fixed-width integer
func (f *Fingerprint) Uint(v uint64) *Fingerprint {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], v)
	f.h.Write(n[:])
	return f
}

// Hex returns the digest so far
func (f *Fingerprint) Hex() string {
	return hex.EncodeToString(f.h.Sum(nil))
}
