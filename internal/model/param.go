package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParameterPath identifies one value slot in the parameter store
type ParameterPath struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// Path is a convenience constructor for ParameterPath
func Path(category, name string) ParameterPath {
	return ParameterPath{Category: category, Name: name}
}

// ParsePath parses "category.name". The first dot separates category from name.
func ParsePath(s string) (ParameterPath, error) {
	s = strings.TrimSpace(s)
	idx := strings.Index(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return ParameterPath{}, fmt.Errorf("invalid parameter path %q: want category.name", s)
	}
	return ParameterPath{Category: s[:idx], Name: s[idx+1:]}, nil
}

func (p ParameterPath) String() string {
	return p.Category + "." + p.Name
}

// IsZero reports whether either component is empty
func (p ParameterPath) IsZero() bool {
	return p.Category == "" || p.Name == ""
}

// Validate checks both components against the directive path grammar. A
// category is [A-Za-z_][A-Za-z0-9_-]*; a name may also contain dots but not
// end with one.
func (p ParameterPath) Validate() error {
	if p.IsZero() {
		return fmt.Errorf("empty category or name")
	}
	if !validIdent(p.Category, false) {
		return fmt.Errorf("category %q must match [A-Za-z_][A-Za-z0-9_-]*", p.Category)
	}
	if !validIdent(p.Name, true) || strings.HasSuffix(p.Name, ".") {
		return fmt.Errorf("name %q must match [A-Za-z_][A-Za-z0-9_.-]* without a trailing dot", p.Name)
	}
	return nil
}

func validIdent(s string, allowDot bool) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && (c >= '0' && c <= '9' || c == '-'):
		case i > 0 && allowDot && c == '.':
		default:
			return false
		}
	}
	return s != ""
}

// Less orders paths by (category, name)
func (p ParameterPath) Less(o ParameterPath) bool {
	if p.Category != o.Category {
		return p.Category < o.Category
	}
	return p.Name < o.Name
}

// Compare returns -1, 0 or +1 using (category, name) order
func (p ParameterPath) Compare(o ParameterPath) int {
	switch {
	case p == o:
		return 0
	case p.Less(o):
		return -1
	default:
		return 1
	}
}

// MarshalText encodes the path as "category.name", or "" for the zero path
func (p ParameterPath) MarshalText() ([]byte, error) {
	if p == (ParameterPath{}) {
		return []byte{}, nil
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes "category.name"
func (p *ParameterPath) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = ParameterPath{}
		return nil
	}
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// FormatKind selects a number rendering rule
type FormatKind string

const (
	FormatFixed      FormatKind = "fixed"      // n decimal places
	FormatScientific FormatKind = "scientific" // n significant digits with exponent
	FormatInteger    FormatKind = "integer"    // integral values only
)

// MaxFormatDigits bounds the digits of fixed and scientific hints
const MaxFormatDigits = 17

// IntegerTolerance is how far a value may sit from an integer and still be integral
const IntegerTolerance = 1e-9

// IsIntegral reports whether v lies within IntegerTolerance of an integer
func IsIntegral(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return math.Abs(v-math.Round(v)) <= IntegerTolerance
}

// FormatHint describes how a value is rendered by default
type FormatHint struct {
	Kind   FormatKind
	Digits int
}

// Fixed returns a fixed(n) hint
func Fixed(n int) FormatHint { return FormatHint{Kind: FormatFixed, Digits: n} }

// Scientific returns a scientific(n) hint
func Scientific(n int) FormatHint { return FormatHint{Kind: FormatScientific, Digits: n} }

// Integer returns the integer hint
func Integer() FormatHint { return FormatHint{Kind: FormatInteger} }

// ParseFormatHint parses "fixed:N", "scientific:N" or "integer"
func ParseFormatHint(s string) (FormatHint, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == string(FormatInteger) {
		return Integer(), nil
	}

	kind, digits, ok := strings.Cut(s, ":")
	if !ok {
		return FormatHint{}, fmt.Errorf("invalid format %q: want fixed:N, scientific:N or integer", s)
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return FormatHint{}, fmt.Errorf("invalid format %q: digits: %w", s, err)
	}

	hint := FormatHint{Kind: FormatKind(kind), Digits: n}
	if err := hint.Validate(); err != nil {
		return FormatHint{}, err
	}
	return hint, nil
}

// Validate checks the kind and digit range
func (h FormatHint) Validate() error {
	switch h.Kind {
	case FormatFixed:
		if h.Digits < 0 || h.Digits > MaxFormatDigits {
			return fmt.Errorf("fixed format digits %d out of range [0, %d]", h.Digits, MaxFormatDigits)
		}
	case FormatScientific:
		if h.Digits < 1 || h.Digits > MaxFormatDigits {
			return fmt.Errorf("scientific format digits %d out of range [1, %d]", h.Digits, MaxFormatDigits)
		}
	case FormatInteger:
		if h.Digits != 0 {
			return fmt.Errorf("integer format takes no digits")
		}
	default:
		return fmt.Errorf("unknown format kind %q", h.Kind)
	}
	return nil
}

func (h FormatHint) String() string {
	if h.Kind == FormatInteger {
		return string(FormatInteger)
	}
	return fmt.Sprintf("%s:%d", h.Kind, h.Digits)
}

// MarshalText encodes the hint in its textual form
func (h FormatHint) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes the textual form
func (h *FormatHint) UnmarshalText(b []byte) error {
	parsed, err := ParseFormatHint(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParameterValue is one stored value with its provenance
type ParameterValue struct {
	Value             float64       `json:"value"`
	Unit              string        `json:"unit,omitempty"`
	Format            FormatHint    `json:"format"`
	Experimental      *Experimental `json:"experimental,omitempty"`
	Source            string        `json:"source,omitempty"`             // Provenance pointer (claim id, document, fit)
	ProvenanceVersion string        `json:"provenance_version,omitempty"` // "r<revision>", assigned by the store
	Revision          uint64        `json:"revision,omitempty"`
	LastUpdated       time.Time     `json:"last_updated"`
}

// SameContent compares the fields that matter for regression diffing
func (v ParameterValue) SameContent(o ParameterValue) bool {
	if v.Value != o.Value || v.Unit != o.Unit || v.Format != o.Format || v.Source != o.Source {
		return false
	}
	switch {
	case v.Experimental == nil && o.Experimental == nil:
		return true
	case v.Experimental == nil || o.Experimental == nil:
		return false
	default:
		return *v.Experimental == *o.Experimental
	}
}

// ChangeKind classifies a difference between two store snapshots
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// ParameterChange is one entry of a store diff
type ParameterChange struct {
	Path     ParameterPath   `json:"path"`
	Kind     ChangeKind      `json:"kind"`
	Previous *ParameterValue `json:"previous,omitempty"`
	Current  *ParameterValue `json:"current,omitempty"`
	Delta    *float64        `json:"delta,omitempty"` // current - previous, for modified values
}
