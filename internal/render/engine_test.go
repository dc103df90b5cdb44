package render

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/params"
	"github.com/ppiankov/claimgraph/internal/registry"
)

func fixture(t *testing.T) (*params.Store, *registry.Registry) {
	t.Helper()

	clock := params.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })
	store := params.NewStore(clock)
	require.NoError(t, store.Set(model.Path("gut", "alpha_inv"), model.ParameterValue{
		Value:        23.54,
		Format:       model.Fixed(2),
		Source:       "C3",
		Experimental: &model.Experimental{Value: 24.30, Error: 0.30, Source: "fit"},
	}))
	require.NoError(t, store.Set(model.Path("gut", "n_gen"), model.ParameterValue{Value: 3, Format: model.Integer()}))
	require.NoError(t, store.Set(model.Path("cosmo", "h0"), model.ParameterValue{Value: 67.4, Unit: "km/s/Mpc", Format: model.Fixed(1)}))
	store.Freeze()

	reg := registry.New()
	require.NoError(t, reg.Register(model.Claim{
		ID:        "C1",
		Tier:      model.TierAxiom,
		Display:   model.Display{PlainText: "SU(5) unification"},
		Citations: []*model.CitationRef{{Authors: "Georgi, Glashow", Year: 1974, Locator: "PRL 32, 438"}},
	}))
	require.NoError(t, reg.Register(model.Claim{
		ID:              "C3",
		Tier:            model.TierPrediction,
		Display:         model.Display{Symbolic: `\alpha^{-1}`, PlainText: "inverse GUT coupling"},
		Parents:         []string{"C1"},
		DerivationSteps: []string{"run couplings", "match at M_GUT"},
		BoundParams:     []model.ParameterPath{model.Path("gut", "alpha_inv")},
	}))
	reg.Freeze()

	return store, reg
}

func TestRender_Scenario(t *testing.T) {
	store, reg := fixture(t)

	out, m := Render("doc.md", []byte("{gut.alpha_inv, format=fixed:2}"), store, reg)
	assert.Equal(t, "23.54", string(out))

	require.Len(t, m.Entries, 1)
	entry := m.Entries[0]
	assert.Equal(t, model.StatusResolved, entry.Status)
	require.NotNil(t, entry.Value)
	assert.Equal(t, 23.54, entry.Value.Raw)
	assert.Equal(t, "fixed:2", entry.Value.Format)
	assert.Equal(t, "r1", entry.Value.ProvenanceVersion)
	require.NotNil(t, entry.Value.Experimental)
	assert.Equal(t, 24.30, entry.Value.Experimental.Value)
	assert.Nil(t, entry.Error)
}

func TestRender_PassThroughIsByteExact(t *testing.T) {
	store, reg := fixture(t)
	src := "$$\\frac{1}{\\alpha} = {gut.alpha_inv}$$ and \\{gut.alpha_inv} stays, {not a directive}, ünïcode ✓\n"

	out, m := Render("paper.tex", []byte(src), store, reg)
	assert.Equal(t, strings.Replace(src, "{gut.alpha_inv}$$", "23.54$$", 1), string(out))
	assert.Len(t, m.Entries, 1)
}

func TestRender_Fields(t *testing.T) {
	store, reg := fixture(t)
	src := "{gut.alpha_inv, field=experimental} ± {gut.alpha_inv, field=uncertainty} | {cosmo.h0, unit=true} | {gut.n_gen} | {gut.alpha_inv, format=scientific:4}"

	out, m := Render("doc.txt", []byte(src), store, reg)
	assert.Equal(t, "24.30 ± 0.30 | 67.4 km/s/Mpc | 3 | 2.354e+01", string(out))
	for _, e := range m.Entries {
		assert.Equal(t, model.StatusResolved, e.Status, e.Directive.Raw)
	}
}

func TestRender_Errors(t *testing.T) {
	store, reg := fixture(t)

	tests := []struct {
		src  string
		kind model.ResolutionErrorKind
	}{
		{"{gut.missing}", model.ErrKindMissingParameter},
		{"{gut.n_gen, field=experimental}", model.ErrKindMissingExperimental},
		{"{gut.alpha_inv, tooltip=C99}", model.ErrKindMissingClaim},
		{"{gut.alpha_inv, format=integer}", model.ErrKindFormatMismatch},
		{"{gut.alpha_inv, colour=red}", model.ErrKindMalformed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			out, m := Render("doc.md", []byte("a "+tt.src+" b"), store, reg)
			assert.Equal(t, "a ⟦unresolved:"+tt.src+"⟧ b", string(out))

			require.Len(t, m.Entries, 1)
			e := m.Entries[0]
			assert.Equal(t, model.StatusError, e.Status)
			assert.Nil(t, e.Value)
			require.NotNil(t, e.Error)
			assert.Equal(t, tt.kind, e.Error.Kind)
			assert.Equal(t, 1, e.Directive.Location.Line)
			assert.Equal(t, 3, e.Directive.Location.Column)
			assert.Equal(t, "doc.md", e.Directive.Location.Document)
		})
	}
}

func TestRender_PartialFailureIsolation(t *testing.T) {
	store, reg := fixture(t)

	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "line %d {gut.alpha_inv}\n", i)
		if i == 4 {
			b.WriteString("broken {gut.nope}\n")
		}
	}

	out, m := Render("doc.md", []byte(b.String()), store, reg)
	assert.Equal(t, 10, strings.Count(string(out), "23.54"))
	assert.Equal(t, 1, strings.Count(string(out), "⟦unresolved:{gut.nope}⟧"))

	require.Len(t, m.Entries, 11)
	assert.Equal(t, 1, m.ErrorCount())
	assert.Equal(t, 6, m.Entries[5].Directive.Location.Line)
}

func TestRender_TooltipHTML(t *testing.T) {
	store, reg := fixture(t)

	out, m := Render("index.html", []byte(`<p>{gut.alpha_inv, tooltip=C3}</p>`), store, reg)
	assert.Equal(t,
		`<p><span class="claim-param" data-claim="C3" title="C3 (prediction) | inverse GUT coupling">23.54</span></p>`,
		string(out))

	tip := m.Entries[0].Tooltip
	require.NotNil(t, tip)
	assert.Equal(t, []string{"run couplings", "match at M_GUT"}, tip.DerivationSteps)
	assert.Empty(t, tip.Citations)
}

func TestRender_TooltipOutsideHTMLStaysInManifest(t *testing.T) {
	store, reg := fixture(t)

	out, m := Render("doc.md", []byte(`{gut.alpha_inv, tooltip=C1}`), store, reg)
	assert.Equal(t, "23.54", string(out))
	require.NotNil(t, m.Entries[0].Tooltip)
	assert.Equal(t, []model.CitationRef{{Authors: "Georgi, Glashow", Year: 1974, Locator: "PRL 32, 438"}}, m.Entries[0].Tooltip.Citations)
}

func TestRender_TooltipMarkupDisabled(t *testing.T) {
	store, reg := fixture(t)
	engine := NewEngine(store, reg, Options{TooltipMarkup: false})

	out, m := engine.Render("index.html", []byte(`<p>{gut.alpha_inv, tooltip=C3}</p>`))
	assert.Equal(t, `<p>23.54</p>`, string(out))
	assert.NotNil(t, m.Entries[0].Tooltip)
}

func TestRender_NoRegistry(t *testing.T) {
	store, _ := fixture(t)
	_, m := NewEngine(store, nil, DefaultOptions()).Render("d", []byte("{gut.alpha_inv, tooltip=C3}"))
	assert.Equal(t, model.ErrKindMissingClaim, m.Entries[0].Error.Kind)
}

func TestRender_Deterministic(t *testing.T) {
	store, reg := fixture(t)
	src := []byte("<p>{gut.alpha_inv, tooltip=C3} {gut.bad} {cosmo.h0, unit=true}</p>")

	out1, m1 := Render("a.html", src, store, reg)
	for i := 0; i < 20; i++ {
		out2, m2 := Render("a.html", src, store, reg)
		require.Equal(t, string(out1), string(out2))
		if diff := cmp.Diff(m1, m2); diff != "" {
			t.Fatalf("manifest differs between runs (-first +later):\n%s", diff)
		}
	}
}

func TestRender_EmptyDocument(t *testing.T) {
	store, reg := fixture(t)
	out, m := Render("empty.md", nil, store, reg)
	assert.Empty(t, out)
	assert.NotNil(t, m.Entries)
	assert.True(t, m.OK())
}
