package registry

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Node is one occurrence of a claim in a derivation tree. A claim reached by
// two paths appears twice.
type Node struct {
	ID      string     `json:"id"`
	Tier    model.Tier `json:"tier,omitempty"`
	Missing bool       `json:"missing,omitempty"` // Parent id that is not registered
	Parents []*Node    `json:"parents,omitempty"`
}

// Leaf reports whether the node has no parents
func (n *Node) Leaf() bool { return len(n.Parents) == 0 }

// DerivationTree is the transitive parent closure of one claim
type DerivationTree struct {
	Root *Node `json:"root"`
}

// Walk visits every node occurrence depth-first, parents in id order
func (t *DerivationTree) Walk(fn func(n *Node, depth int)) {
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		fn(n, depth)
		for _, p := range n.Parents {
			walk(p, depth+1)
		}
	}
	if t != nil && t.Root != nil {
		walk(t.Root, 0)
	}
}

// Leaves returns the leaf occurrences in walk order
func (t *DerivationTree) Leaves() []*Node {
	var out []*Node
	t.Walk(func(n *Node, _ int) {
		if n.Leaf() {
			out = append(out, n)
		}
	})
	return out
}

// String renders the tree as an indented outline
func (t *DerivationTree) String() string {
	var b strings.Builder
	t.Walk(func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.ID)
		switch {
		case n.Missing:
			b.WriteString(" (missing)")
		default:
			b.WriteString(" [" + string(n.Tier) + "]")
		}
		b.WriteByte('\n')
	})
	return b.String()
}

// ResolveChain returns the full derivation tree of id
func (r *Registry) ResolveChain(id string) (*DerivationTree, error) {
	if _, ok := r.claims[id]; !ok {
		return nil, &UnknownClaimError{ID: id}
	}

	built := make(map[string]*Node)
	onPath := make(map[string]bool)
	var path []string

	var build func(cur string) (*Node, error)
	build = func(cur string) (*Node, error) {
		if onPath[cur] {
			return nil, r.cycleError(cur, path)
		}
		if n, ok := built[cur]; ok {
			return n, nil
		}
		c, ok := r.claims[cur]
		if !ok {
			n := &Node{ID: cur, Missing: true}
			built[cur] = n
			return n, nil
		}

		onPath[cur] = true
		path = append(path, cur)
		n := &Node{ID: cur, Tier: c.Tier}
		for _, p := range c.Parents {
			child, err := build(p)
			if err != nil {
				return nil, err
			}
			n.Parents = append(n.Parents, child)
		}
		path = path[:len(path)-1]
		onPath[cur] = false

		built[cur] = n
		return n, nil
	}

	root, err := build(id)
	if err != nil {
		return nil, err
	}
	return &DerivationTree{Root: root}, nil
}

func (r *Registry) cycleError(at string, path []string) error {
	idx := slices.Index(path, at)
	seq := append(slices.Clone(path[idx:]), at)
	return &GraphIntegrityError{Kind: ErrCyclicDerivation, ClaimID: at, Cycle: canonicalCycle(seq)}
}

// chainInfo summarizes the closure of one claim
type chainInfo struct {
	depth          int
	rooted         bool
	roots          map[string]struct{}
	missing        map[string]struct{}
	unrootedLeaves map[string]struct{}
}

// analyze computes the closure summary of id with memoization over the DAG
func (r *Registry) analyze(id string) (*chainInfo, error) {
	if _, ok := r.claims[id]; !ok {
		return nil, &UnknownClaimError{ID: id}
	}

	memo := make(map[string]*chainInfo)
	onPath := make(map[string]bool)
	var path []string

	var visit func(cur string) (*chainInfo, error)
	visit = func(cur string) (*chainInfo, error) {
		if onPath[cur] {
			return nil, r.cycleError(cur, path)
		}
		if info, ok := memo[cur]; ok {
			return info, nil
		}

		info := &chainInfo{
			roots:          make(map[string]struct{}),
			missing:        make(map[string]struct{}),
			unrootedLeaves: make(map[string]struct{}),
		}
		c, ok := r.claims[cur]
		switch {
		case !ok:
			info.missing[cur] = struct{}{}
			info.unrootedLeaves[cur] = struct{}{}
		case c.IsAxiom():
			info.rooted = true
			info.roots[cur] = struct{}{}
		case len(c.Parents) == 0:
			info.unrootedLeaves[cur] = struct{}{}
		default:
			onPath[cur] = true
			path = append(path, cur)
			info.rooted = true
			for _, p := range c.Parents {
				sub, err := visit(p)
				if err != nil {
					return nil, err
				}
				info.rooted = info.rooted && sub.rooted
				info.depth = max(info.depth, sub.depth+1)
				maps.Copy(info.roots, sub.roots)
				maps.Copy(info.missing, sub.missing)
				maps.Copy(info.unrootedLeaves, sub.unrootedLeaves)
			}
			path = path[:len(path)-1]
			onPath[cur] = false
		}

		memo[cur] = info
		return info, nil
	}

	return visit(id)
}

// IsRooted reports whether every leaf of id's derivation tree is an axiom
func (r *Registry) IsRooted(id string) (bool, error) {
	info, err := r.analyze(id)
	if err != nil {
		return false, err
	}
	return info.rooted, nil
}

// Depth returns the longest path from id to a leaf. Axioms have depth 0.
func (r *Registry) Depth(id string) (int, error) {
	info, err := r.analyze(id)
	if err != nil {
		return 0, err
	}
	return info.depth, nil
}

// EstablishedRoots returns the distinct axiom ids reachable from id
func (r *Registry) EstablishedRoots(id string) ([]string, error) {
	info, err := r.analyze(id)
	if err != nil {
		return nil, err
	}
	return sortedKeys(info.roots), nil
}

// MissingParents returns the unregistered ids anywhere in id's closure
func (r *Registry) MissingParents(id string) ([]string, error) {
	info, err := r.analyze(id)
	if err != nil {
		return nil, err
	}
	return sortedKeys(info.missing), nil
}

// Status returns the rooting status of id in audit form
func (r *Registry) Status(id string) (model.ClaimStatus, error) {
	c, ok := r.claims[id]
	if !ok {
		return model.ClaimStatus{}, &UnknownClaimError{ID: id}
	}
	st := model.ClaimStatus{ID: id, Tier: c.Tier}

	info, err := r.analyze(id)
	if err != nil {
		var gi *GraphIntegrityError
		if !errors.As(err, &gi) {
			return model.ClaimStatus{}, err
		}
		st.Status = model.RootCyclic
		st.Cycle = gi.Cycle
		return st, nil
	}

	st.Depth = info.depth
	st.Roots = sortedKeys(info.roots)
	st.MissingParents = sortedKeys(info.missing)
	st.UnrootedLeaves = sortedKeys(info.unrootedLeaves)
	st.Status = model.RootUnrooted
	if info.rooted {
		st.Status = model.RootRooted
	}
	return st, nil
}

// Cycles enumerates every distinct cycle in the parent graph using
// three-colour DFS. Each cycle is closed and in canonical rotation.
func (r *Registry) Cycles() [][]string {
	const (
		white = iota
		gray
		black
	)

	state := make(map[string]int, len(r.claims))
	seen := make(map[string]bool)
	var path []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		state[id] = gray
		path = append(path, id)
		for _, p := range r.claims[id].Parents {
			if _, ok := r.claims[p]; !ok {
				continue
			}
			switch state[p] {
			case white:
				visit(p)
			case gray:
				idx := slices.Index(path, p)
				cycle := canonicalCycle(append(slices.Clone(path[idx:]), p))
				sig := strings.Join(cycle, ",")
				if !seen[sig] {
					seen[sig] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = black
	}

	for _, id := range r.IDs() {
		if state[id] == white {
			visit(id)
		}
	}

	slices.SortFunc(cycles, func(a, b []string) int {
		return strings.Compare(strings.Join(a, ","), strings.Join(b, ","))
	})
	return cycles
}

// canonicalCycle rotates a closed cycle [v0 ... vk v0] so that the smallest
// id comes first. Direction is preserved.
func canonicalCycle(closed []string) []string {
	if len(closed) < 2 {
		return slices.Clone(closed)
	}
	open := closed[:len(closed)-1]
	start := 0
	for i, id := range open {
		if id < open[start] {
			start = i
		}
	}
	out := make([]string, 0, len(closed))
	out = append(out, open[start:]...)
	out = append(out, open[:start]...)
	return append(out, out[0])
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(m))
}
