package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Sentinel kinds, matched with errors.Is
var (
	ErrDuplicateID      = errors.New("duplicate claim id")
	ErrInvalidTier      = errors.New("invalid tier")
	ErrUnknownClaim     = errors.New("unknown claim")
	ErrCyclicDerivation = errors.New("cyclic derivation")
	ErrUnrooted         = errors.New("unrooted claim")
	ErrInvalidClaim     = errors.New("invalid claim")
	ErrFrozen           = errors.New("registry: frozen")
)

// GraphIntegrityError reports a claim that would break the derivation graph
type GraphIntegrityError struct {
	Kind    error    // ErrDuplicateID, ErrCyclicDerivation or ErrUnrooted
	ClaimID string
	Cycle   []string // Closed node list for ErrCyclicDerivation
	Detail  string
}

func (e *GraphIntegrityError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrCyclicDerivation) && len(e.Cycle) > 0:
		return fmt.Sprintf("%s: %s", ErrCyclicDerivation, strings.Join(e.Cycle, " -> "))
	case e.Detail != "":
		return fmt.Sprintf("%s %s: %s", e.Kind, e.ClaimID, e.Detail)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.ClaimID)
	}
}

// Unwrap returns the kind. An unrooted non-axiom is also a tier violation.
func (e *GraphIntegrityError) Unwrap() []error {
	if errors.Is(e.Kind, ErrUnrooted) {
		return []error{e.Kind, ErrInvalidTier}
	}
	return []error{e.Kind}
}

// TierError reports a claim whose tier is unknown or inconsistent with its parents
type TierError struct {
	ClaimID string
	Tier    model.Tier
	Reason  string
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s %q on %s: %s", ErrInvalidTier, e.Tier, e.ClaimID, e.Reason)
}

func (e *TierError) Unwrap() error { return ErrInvalidTier }

// UnknownClaimError is returned when an id is not registered
type UnknownClaimError struct {
	ID string
}

func (e *UnknownClaimError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownClaim, e.ID)
}

func (e *UnknownClaimError) Unwrap() error { return ErrUnknownClaim }

// rejectionCode maps a registration error to its audit finding code
func rejectionCode(err error) model.FindingCode {
	switch {
	case errors.Is(err, ErrDuplicateID):
		return model.CodeDuplicateID
	case errors.Is(err, ErrCyclicDerivation):
		return model.CodeCycle
	case errors.Is(err, ErrUnrooted):
		return model.CodeUnrooted
	case errors.Is(err, ErrInvalidTier):
		return model.CodeInvalidTier
	default:
		return model.CodeRejected
	}
}
