package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/claimgraph/internal/model"
)

// FormatMismatchError is returned when a value cannot be rendered with a hint
type FormatMismatchError struct {
	Value  float64
	Format model.FormatHint
	Reason string
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("cannot render %v as %s: %s", e.Value, e.Format, e.Reason)
}

// Format renders v according to hint.
//
//	fixed:N       N decimals, round-half-to-even on the exact binary value
//	scientific:N  N significant digits, d.ddde±XX
//	integer       nearest integer, only when v is within 1e-9 of it
//
// Negative zero never renders with a sign.
func Format(v float64, hint model.FormatHint) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", &FormatMismatchError{Value: v, Format: hint, Reason: "value is not finite"}
	}
	if err := hint.Validate(); err != nil {
		return "", &FormatMismatchError{Value: v, Format: hint, Reason: err.Error()}
	}

	var s string
	switch hint.Kind {
	case model.FormatFixed:
		s = strconv.FormatFloat(v, 'f', hint.Digits, 64)
	case model.FormatScientific:
		s = strconv.FormatFloat(v, 'e', hint.Digits-1, 64)
	case model.FormatInteger:
		if !model.IsIntegral(v) {
			return "", &FormatMismatchError{
				Value:  v,
				Format: hint,
				Reason: fmt.Sprintf("more than %g from an integer", model.IntegerTolerance),
			}
		}
		s = strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}

	return normalizeZero(s), nil
}

// normalizeZero drops the sign of a rendering that is all zeros
func normalizeZero(s string) string {
	if !strings.HasPrefix(s, "-") {
		return s
	}
	mantissa, _, _ := strings.Cut(s[1:], "e")
	if strings.Trim(mantissa, "0.") == "" {
		return s[1:]
	}
	return s
}
