package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_FieldBoundaries(t *testing.T) {
	hex := func(f *Fingerprint) string { return f.Hex() }

	assert.Equal(t, hex(NewFingerprint().Fields("a", "b")), hex(NewFingerprint().Fields("a", "b")))
	assert.NotEqual(t, hex(NewFingerprint().Fields("a|b", "c")), hex(NewFingerprint().Fields("a", "b|c")))
	assert.NotEqual(t, hex(NewFingerprint().Fields("ab")), hex(NewFingerprint().Fields("a", "b")))
	assert.NotEqual(t, hex(NewFingerprint().List(nil).Fields("x")), hex(NewFingerprint().List([]string{"x"})))
	assert.NotEqual(t, hex(NewFingerprint().Float(0)), hex(NewFingerprint().Float(math.Copysign(0, -1))))
	assert.Len(t, NewFingerprint().Hex(), 64)
}
