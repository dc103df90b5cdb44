package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/util"
)

// Registry holds tiered claims forming a derivation DAG. Parents may be
// declared before they are registered; such forward references stay missing
// until the parent arrives.
type Registry struct {
	claims     map[string]*model.Claim
	citations  map[string]*model.CitationRef
	rejections []model.Rejection
	frozen     bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		claims:    make(map[string]*model.Claim),
		citations: make(map[string]*model.CitationRef),
	}
}

// Register validates and adds a claim. A rejected claim leaves the registry
// untouched and is recorded in Rejections.
func (r *Registry) Register(claim model.Claim) error {
	if r.frozen {
		return ErrFrozen
	}
	err := r.register(claim)
	if err != nil {
		rej := model.Rejection{ID: claim.ID, Code: rejectionCode(err), Reason: err.Error()}
		var gi *GraphIntegrityError
		if errors.As(err, &gi) {
			rej.Cycle = slices.Clone(gi.Cycle)
		}
		r.rejections = append(r.rejections, rej)
	}
	return err
}

func (r *Registry) register(claim model.Claim) error {
	id := strings.TrimSpace(claim.ID)
	if id == "" {
		return fmt.Errorf("%w: claim has no id", ErrInvalidClaim)
	}
	claim.ID = id

	if _, exists := r.claims[id]; exists {
		return &GraphIntegrityError{Kind: ErrDuplicateID, ClaimID: id}
	}
	if !claim.Tier.Valid() {
		return &TierError{ClaimID: id, Tier: claim.Tier, Reason: "unknown tier"}
	}

	parents := sortedUnique(claim.Parents)
	if claim.IsAxiom() && len(parents) > 0 {
		return &TierError{ClaimID: id, Tier: claim.Tier, Reason: "axiom claims cannot declare parents"}
	}
	if !claim.IsAxiom() && len(parents) == 0 && len(claim.Citations) == 0 {
		return &GraphIntegrityError{Kind: ErrUnrooted, ClaimID: id, Detail: "non-axiom claim has neither parents nor citations"}
	}

	if cycle := r.cycleThrough(id, parents); cycle != nil {
		return &GraphIntegrityError{Kind: ErrCyclicDerivation, ClaimID: id, Cycle: cycle}
	}

	stored := &model.Claim{
		ID:              id,
		Tier:            claim.Tier,
		Display:         claim.Display,
		Parents:         parents,
		DerivationSteps: slices.Clone(claim.DerivationSteps),
		BoundParams:     sortedUniquePaths(claim.BoundParams),
		VerificationRef: strings.TrimSpace(claim.VerificationRef),
	}
	for _, c := range claim.Citations {
		if c == nil {
			continue
		}
		stored.Citations = append(stored.Citations, r.intern(*c))
	}

	r.claims[id] = stored
	return nil
}

// cycleThrough returns the cycle that adding id with the given parents would
// close, in canonical rotation, or nil. The registry is acyclic, so any cycle
// must pass through id.
func (r *Registry) cycleThrough(id string, parents []string) []string {
	visited := make(map[string]bool)
	var path []string

	var visit func(cur string) bool
	visit = func(cur string) bool {
		path = append(path, cur)
		if cur == id && len(path) > 1 {
			return true
		}
		if !visited[cur] {
			visited[cur] = true
			var next []string
			if cur == id {
				next = parents
			} else if c, ok := r.claims[cur]; ok {
				next = c.Parents
			}
			for _, p := range next {
				if visit(p) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if !visit(id) {
		return nil
	}
	return canonicalCycle(path)
}

// intern returns the shared instance for a citation
func (r *Registry) intern(c model.CitationRef) *model.CitationRef {
	key := c.Key()
	if shared, ok := r.citations[key]; ok {
		return shared
	}
	shared := &c
	r.citations[key] = shared
	return shared
}

// Claim returns the registered claim with the given id
func (r *Registry) Claim(id string) (*model.Claim, error) {
	c, ok := r.claims[id]
	if !ok {
		return nil, &UnknownClaimError{ID: id}
	}
	return cloneClaim(c), nil
}

// Has reports whether id is registered
func (r *Registry) Has(id string) bool {
	_, ok := r.claims[id]
	return ok
}

// Claims returns every registered claim ordered by id
func (r *Registry) Claims() []*model.Claim {
	out := make([]*model.Claim, 0, len(r.claims))
	for _, id := range r.IDs() {
		out = append(out, cloneClaim(r.claims[id]))
	}
	return out
}

// IDs returns the registered ids in lexical order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.claims))
	for id := range r.claims {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered claims
func (r *Registry) Len() int {
	return len(r.claims)
}

// Rejections returns every rejected registration in submission order
func (r *Registry) Rejections() []model.Rejection {
	return slices.Clone(r.rejections)
}

// Freeze makes the registry read-only for the rest of the run
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether the registry has been frozen
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Fingerprint hashes the registered claims in id order
func (r *Registry) Fingerprint() string {
	fp := util.NewFingerprint()
	for _, id := range r.IDs() {
		c := r.claims[id]
		fp.Fields("c", c.ID, string(c.Tier), c.Display.Symbolic, c.Display.PlainText, c.VerificationRef).
			List(c.Parents).
			List(c.DerivationSteps)
		fp.Uint(uint64(len(c.BoundParams)))
		for _, p := range c.BoundParams {
			fp.Fields(p.Category, p.Name)
		}
		fp.Uint(uint64(len(c.Citations)))
		for _, cit := range c.Citations {
			fp.Fields(cit.Key())
		}
	}
	return fp.Hex()
}

func cloneClaim(c *model.Claim) *model.Claim {
	out := *c
	out.Parents = slices.Clone(c.Parents)
	out.Citations = slices.Clone(c.Citations)
	out.DerivationSteps = slices.Clone(c.DerivationSteps)
	out.BoundParams = slices.Clone(c.BoundParams)
	return &out
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedUniquePaths(paths []model.ParameterPath) []model.ParameterPath {
	if len(paths) == 0 {
		return nil
	}
	out := slices.Clone(paths)
	slices.SortFunc(out, model.ParameterPath.Compare)
	return slices.Compact(out)
}
