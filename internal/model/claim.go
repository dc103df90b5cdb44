package model

import (
	"fmt"
	"strings"
)

// Claim is one formula in the registry together with its derivation pedigree
type Claim struct {
	ID              string          `json:"id"`
	Tier            Tier            `json:"tier"`
	Display         Display         `json:"display"`
	Parents         []string        `json:"parents,omitempty"`   // Sorted, unique
	Citations       []*CitationRef  `json:"citations,omitempty"` // Shared, read-only
	DerivationSteps []string        `json:"derivation_steps,omitempty"`
	BoundParams     []ParameterPath `json:"bound_params,omitempty"` // Sorted, unique
	VerificationRef string          `json:"verification_ref,omitempty"`
}

// Display holds the two renderings of the formula
type Display struct {
	Symbolic  string `json:"symbolic,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
}

// Tier is the derivation rank of a claim
type Tier string

const (
	TierAxiom      Tier = "axiom"      // Externally cited, not further derived
	TierTheory     Tier = "theory"     // Framework-level result
	TierDerived    Tier = "derived"    // Computed from parents
	TierPrediction Tier = "prediction" // Falsifiable numeric output
)

// Tiers lists every tier in rank order
var Tiers = []Tier{TierAxiom, TierTheory, TierDerived, TierPrediction}

// ParseTier parses a tier name (case-insensitive)
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (want axiom, theory, derived or prediction)", s)
	}
	return t, nil
}

// Valid reports whether t is one of the four tiers
func (t Tier) Valid() bool {
	switch t {
	case TierAxiom, TierTheory, TierDerived, TierPrediction:
		return true
	}
	return false
}

// RequiresNumericOutput reports whether claims of this tier must bind parameters
func (t Tier) RequiresNumericOutput() bool {
	return t == TierDerived || t == TierPrediction
}

func (t Tier) String() string { return string(t) }

// IsAxiom reports whether the claim is tier Axiom
func (c *Claim) IsAxiom() bool { return c.Tier == TierAxiom }
