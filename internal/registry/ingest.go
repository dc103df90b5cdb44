package registry

import (
	"fmt"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/util"
)

// RawFormulas is the formula definition document
type RawFormulas struct {
	Claims []RawClaim `yaml:"claims" json:"claims" toml:"claims"`
}

// RawClaim is one claim as written in a definition file
type RawClaim struct {
	ID              string        `yaml:"id" json:"id" toml:"id" validate:"required"`
	Tier            string        `yaml:"tier" json:"tier" toml:"tier" validate:"required"`
	Symbolic        string        `yaml:"symbolic,omitempty" json:"symbolic,omitempty" toml:"symbolic"`
	PlainText       string        `yaml:"plain_text,omitempty" json:"plain_text,omitempty" toml:"plain_text"`
	Parents         []string      `yaml:"parents,omitempty" json:"parents,omitempty" toml:"parents" validate:"dive,required"`
	Citations       []RawCitation `yaml:"citations,omitempty" json:"citations,omitempty" toml:"citations" validate:"dive"`
	DerivationSteps []string      `yaml:"derivation_steps,omitempty" json:"derivation_steps,omitempty" toml:"derivation_steps"`
	BoundParams     []string      `yaml:"bound_params,omitempty" json:"bound_params,omitempty" toml:"bound_params"`
	VerificationRef string        `yaml:"verification_ref,omitempty" json:"verification_ref,omitempty" toml:"verification_ref"`
}

// RawCitation is an external reference as written in a definition file
type RawCitation struct {
	Authors string `yaml:"authors" json:"authors" toml:"authors" validate:"required"`
	Year    int    `yaml:"year" json:"year" toml:"year" validate:"gte=0"`
	Locator string `yaml:"locator,omitempty" json:"locator,omitempty" toml:"locator"`
}

// Ingest registers every claim in order. Invalid claims are skipped and
// reported; the registry of every valid claim is always returned, frozen.
// The error, if any, is a *model.IngestionError.
func Ingest(raw []RawClaim) (*Registry, error) {
	reg := New()
	problems := &model.IngestionError{Source: "formulas"}

	for i, rc := range raw {
		item := rc.ID
		if item == "" {
			item = fmt.Sprintf("claim #%d", i+1)
		}

		claim, fes := convertClaim(rc)
		if len(fes) > 0 {
			for _, fe := range fes {
				problems.Add(item, fe.Field, fe.Err)
			}
			continue
		}
		if err := reg.Register(claim); err != nil {
			problems.Add(item, "", err)
		}
	}

	reg.Freeze()
	return reg, problems.OrNil()
}

func convertClaim(rc RawClaim) (model.Claim, []util.FieldError) {
	errs := util.ValidateStruct(rc)
	if len(errs) > 0 {
		return model.Claim{}, errs
	}

	// Unknown tiers are left for Register so they are recorded as rejections
	tier, err := model.ParseTier(rc.Tier)
	if err != nil {
		tier = model.Tier(rc.Tier)
	}

	claim := model.Claim{
		ID:              rc.ID,
		Tier:            tier,
		Display:         model.Display{Symbolic: rc.Symbolic, PlainText: rc.PlainText},
		Parents:         rc.Parents,
		DerivationSteps: rc.DerivationSteps,
		VerificationRef: rc.VerificationRef,
	}
	for _, c := range rc.Citations {
		claim.Citations = append(claim.Citations, &model.CitationRef{Authors: c.Authors, Year: c.Year, Locator: c.Locator})
	}
	for _, s := range rc.BoundParams {
		p, err := model.ParsePath(s)
		if err != nil {
			errs = append(errs, util.FieldError{Field: "bound_params", Err: err})
			continue
		}
		claim.BoundParams = append(claim.BoundParams, p)
	}
	return claim, errs
}
