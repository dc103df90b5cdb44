package render

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimgraph/internal/model"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		value float64
		hint  model.FormatHint
		want  string
	}{
		{23.54, model.Fixed(2), "23.54"},
		{23.5449, model.Fixed(2), "23.54"},
		{0.125, model.Fixed(2), "0.12"},
		{0.375, model.Fixed(2), "0.38"},
		{2.5, model.Fixed(0), "2"},
		{3.5, model.Fixed(0), "4"},
		{-0.001, model.Fixed(2), "0.00"},
		{math.Copysign(0, -1), model.Fixed(1), "0.0"},
		{-1.25, model.Fixed(1), "-1.2"},
		{23.54, model.Scientific(4), "2.354e+01"},
		{6.674e-11, model.Scientific(3), "6.67e-11"},
		{1, model.Scientific(1), "1e+00"},
		{math.Copysign(0, -1), model.Scientific(2), "0.0e+00"},
		{3, model.Integer(), "3"},
		{3 + 1e-10, model.Integer(), "3"},
		{-2 - 1e-10, model.Integer(), "-2"},
		{-1e-10, model.Integer(), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.hint.String()+"/"+strconv.FormatFloat(tt.value, 'g', -1, 64), func(t *testing.T) {
			got, err := Format(tt.value, tt.hint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_IntegerMismatch(t *testing.T) {
	_, err := Format(2.5, model.Integer())

	var fm *FormatMismatchError
	require.ErrorAs(t, err, &fm)
	assert.Equal(t, 2.5, fm.Value)
	assert.Equal(t, model.Integer(), fm.Format)

	_, err = Format(3+1e-8, model.Integer())
	assert.ErrorAs(t, err, &fm)
}

func TestFormat_RejectsBadInput(t *testing.T) {
	var fm *FormatMismatchError

	_, err := Format(math.NaN(), model.Fixed(2))
	assert.ErrorAs(t, err, &fm)

	_, err = Format(1, model.FormatHint{Kind: "hex", Digits: 2})
	assert.ErrorAs(t, err, &fm)
}

func TestFormat_FixedRoundTrip(t *testing.T) {
	values := []float64{0, 1, -1, 23.54, 0.1, 1e-7, 123456.789, -98.7654321, 6.02214076e5, math.Pi}

	for n := 0; n <= 10; n++ {
		tolerance := 0.5 * math.Pow(10, -float64(n))
		for _, v := range values {
			s, err := Format(v, model.Fixed(n))
			require.NoError(t, err)

			parsed, err := strconv.ParseFloat(s, 64)
			require.NoError(t, err)
			// Parsing the decimal back may land one ulp away from it
			ulp := math.Nextafter(math.Abs(v), math.Inf(1)) - math.Abs(v)
			assert.LessOrEqual(t, math.Abs(parsed-v), tolerance+2*ulp, "fixed:%d of %v = %s", n, v, s)
		}
	}
}
