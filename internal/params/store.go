package params

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"time"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/util"
)

// Store is a versioned category -> name -> value map. It is built once per
// run, frozen, and then read concurrently by render workers.
type Store struct {
	values   map[model.ParameterPath]model.ParameterValue
	aliases  map[model.ParameterPath]Alias
	revision uint64
	frozen   bool
	now      func() time.Time
}

// Alias declares that one path names the same constant as another
type Alias struct {
	Alias     model.ParameterPath `json:"alias"`
	Canonical model.ParameterPath `json:"canonical"`
	Tolerance float64             `json:"tolerance"`
	Shadow    bool                `json:"shadow"` // Alias path has its own value that agreed with the canonical one
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used for values without an explicit LastUpdated
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty, mutable store
func NewStore(opts ...Option) *Store {
	s := &Store{
		values:  make(map[model.ParameterPath]model.ParameterValue),
		aliases: make(map[model.ParameterPath]Alias),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored at path, following aliases
func (s *Store) Get(path model.ParameterPath) (model.ParameterValue, error) {
	if v, ok := s.values[path]; ok {
		return cloneValue(v), nil
	}
	if a, ok := s.aliases[path]; ok {
		if v, ok := s.values[a.Canonical]; ok {
			return cloneValue(v), nil
		}
	}
	return model.ParameterValue{}, &NotFoundError{Path: path}
}

// Has reports whether path resolves, directly or via an alias
func (s *Store) Has(path model.ParameterPath) bool {
	_, err := s.Get(path)
	return err == nil
}

// Set replaces the value at path and bumps its provenance version
func (s *Store) Set(path model.ParameterPath, value model.ParameterValue) error {
	if s.frozen {
		return ErrFrozen
	}
	if err := checkValue(path, value); err != nil {
		return err
	}
	if a, ok := s.aliases[path]; ok {
		return &InvalidValueError{Path: path, Reason: fmt.Sprintf("path is an alias of %s", a.Canonical)}
	}
	for _, a := range s.aliases {
		if a.Canonical != path || !a.Shadow {
			continue
		}
		own := s.values[a.Alias]
		if own.Unit != value.Unit || !withinTolerance(value.Value, own.Value, a.Tolerance) {
			return &AliasMismatchError{
				Canonical:      path,
				Alias:          a.Alias,
				CanonicalValue: value.Value,
				AliasValue:     own.Value,
				CanonicalUnit:  value.Unit,
				AliasUnit:      own.Unit,
				Tolerance:      a.Tolerance,
			}
		}
	}

	if value.LastUpdated.IsZero() {
		value.LastUpdated = s.now()
	}

	s.revision++
	value.Revision = s.revision
	value.ProvenanceVersion = fmt.Sprintf("r%d", s.revision)
	s.values[path] = cloneValue(value)

	return nil
}

// checkValue enforces the ParameterValue invariants
func checkValue(path model.ParameterPath, v model.ParameterValue) error {
	if err := path.Validate(); err != nil {
		return &InvalidValueError{Path: path, Reason: err.Error()}
	}
	if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
		return &InvalidValueError{Path: path, Reason: fmt.Sprintf("value %v is not finite", v.Value)}
	}
	if err := v.Format.Validate(); err != nil {
		return &InvalidValueError{Path: path, Reason: err.Error()}
	}
	if v.Format.Kind == model.FormatInteger && !model.IsIntegral(v.Value) {
		return &InvalidValueError{Path: path, Reason: fmt.Sprintf("integer format on non-integral value %v", v.Value)}
	}
	if e := v.Experimental; e != nil {
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) || math.IsNaN(e.Error) || math.IsInf(e.Error, 0) {
			return &InvalidValueError{Path: path, Reason: "experimental value and error must be finite"}
		}
		if e.Error < 0 {
			return &InvalidValueError{Path: path, Reason: fmt.Sprintf("experimental error %v is negative", e.Error)}
		}
	}
	return nil
}

// Alias declares alias as another name for canonical. If alias already holds
// a value, the two must agree within the relative tolerance and share a unit.
func (s *Store) Alias(canonical, alias model.ParameterPath, tolerance float64) error {
	if s.frozen {
		return ErrFrozen
	}
	if err := alias.Validate(); err != nil {
		return &InvalidValueError{Path: alias, Reason: err.Error()}
	}
	if canonical == alias {
		return &InvalidValueError{Path: alias, Reason: "path cannot alias itself"}
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		return &InvalidValueError{Path: alias, Reason: fmt.Sprintf("alias tolerance %v must be >= 0", tolerance)}
	}
	if _, ok := s.aliases[canonical]; ok {
		return &InvalidValueError{Path: canonical, Reason: "canonical path is itself an alias"}
	}
	if existing, ok := s.aliases[alias]; ok {
		return &InvalidValueError{Path: alias, Reason: fmt.Sprintf("already an alias of %s", existing.Canonical)}
	}

	base, ok := s.values[canonical]
	if !ok {
		return &NotFoundError{Path: canonical}
	}

	entry := Alias{Alias: alias, Canonical: canonical, Tolerance: tolerance}
	if own, ok := s.values[alias]; ok {
		if own.Unit != base.Unit || !withinTolerance(base.Value, own.Value, tolerance) {
			return &AliasMismatchError{
				Canonical:      canonical,
				Alias:          alias,
				CanonicalValue: base.Value,
				AliasValue:     own.Value,
				CanonicalUnit:  base.Unit,
				AliasUnit:      own.Unit,
				Tolerance:      tolerance,
			}
		}
		entry.Shadow = true
	}

	s.aliases[alias] = entry
	return nil
}

func withinTolerance(a, b, tol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol*math.Max(math.Abs(a), math.Abs(b))
}

// Aliases returns every declared alias, ordered by alias path
func (s *Store) Aliases() []Alias {
	out := make([]Alias, 0, len(s.aliases))
	for _, a := range s.aliases {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Alias) int { return a.Alias.Compare(b.Alias) })
	return out
}

// ListPaths yields stored paths in (category, name) order. An empty category
// lists every category. Each range over the result takes a fresh snapshot.
func (s *Store) ListPaths(category string) iter.Seq[model.ParameterPath] {
	return func(yield func(model.ParameterPath) bool) {
		for _, p := range s.sortedPaths(category) {
			if !yield(p) {
				return
			}
		}
	}
}

// Paths collects ListPaths into a slice
func (s *Store) Paths(category string) []model.ParameterPath {
	return slices.Collect(s.ListPaths(category))
}

func (s *Store) sortedPaths(category string) []model.ParameterPath {
	paths := make([]model.ParameterPath, 0, len(s.values))
	for p := range s.values {
		if category == "" || p.Category == category {
			paths = append(paths, p)
		}
	}
	slices.SortFunc(paths, model.ParameterPath.Compare)
	return paths
}

// Categories returns the distinct categories in lexical order
func (s *Store) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for p := range s.values {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	slices.Sort(out)
	return out
}

// Diff compares s against a previous snapshot. It has no side effects.
func (s *Store) Diff(previous *Store) []model.ParameterChange {
	var prevValues map[model.ParameterPath]model.ParameterValue
	if previous != nil {
		prevValues = previous.values
	}

	union := make(map[model.ParameterPath]struct{}, len(s.values)+len(prevValues))
	for p := range s.values {
		union[p] = struct{}{}
	}
	for p := range prevValues {
		union[p] = struct{}{}
	}

	paths := make([]model.ParameterPath, 0, len(union))
	for p := range union {
		paths = append(paths, p)
	}
	slices.SortFunc(paths, model.ParameterPath.Compare)

	var changes []model.ParameterChange
	for _, p := range paths {
		cur, inCur := s.values[p]
		prev, inPrev := prevValues[p]

		switch {
		case inCur && !inPrev:
			c := cloneValue(cur)
			changes = append(changes, model.ParameterChange{Path: p, Kind: model.ChangeAdded, Current: &c})
		case !inCur && inPrev:
			pv := cloneValue(prev)
			changes = append(changes, model.ParameterChange{Path: p, Kind: model.ChangeRemoved, Previous: &pv})
		case !cur.SameContent(prev):
			c, pv := cloneValue(cur), cloneValue(prev)
			delta := cur.Value - prev.Value
			changes = append(changes, model.ParameterChange{
				Path:     p,
				Kind:     model.ChangeModified,
				Previous: &pv,
				Current:  &c,
				Delta:    &delta,
			})
		}
	}

	return changes
}

// Len returns the number of stored values (aliases excluded)
func (s *Store) Len() int {
	return len(s.values)
}

// Revision returns the current store revision
func (s *Store) Revision() uint64 {
	return s.revision
}

// Freeze makes the store read-only for the rest of the run
func (s *Store) Freeze() {
	s.frozen = true
}

// Frozen reports whether the store has been frozen
func (s *Store) Frozen() bool {
	return s.frozen
}

// Fingerprint hashes the store content. Timestamps are excluded so that the
// fingerprint only changes when rendered output could change.
func (s *Store) Fingerprint() string {
	fp := util.NewFingerprint()
	for _, p := range s.sortedPaths("") {
		v := s.values[p]
		fp.Fields("v", p.Category, p.Name).Float(v.Value).
			Fields(v.Unit, v.Format.String(), v.Source, v.ProvenanceVersion)
		if e := v.Experimental; e != nil {
			fp.Uint(1).Float(e.Value).Float(e.Error).Fields(e.Source)
		} else {
			fp.Uint(0)
		}
	}
	for _, a := range s.Aliases() {
		fp.Fields("a", a.Alias.Category, a.Alias.Name, a.Canonical.Category, a.Canonical.Name)
	}
	return fp.Hex()
}

func cloneValue(v model.ParameterValue) model.ParameterValue {
	if v.Experimental != nil {
		e := *v.Experimental
		v.Experimental = &e
	}
	return v
}
