package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimgraph/internal/model"
)

const paramsYAML = `
parameters:
  gut:
    alpha_inv:
      value: 23.54
      format: fixed:2
      experimental:
        value: 24.30
        error: 0.30
        source: "PDG 2024"
      source: C3
      updated: "2024-09-01"
    n_gen:
      value: 3
  cosmo:
    h0:
      value: 67.4
      unit: km/s/Mpc
aliases:
  - canonical: gut.alpha_inv
    alias: couplings.alpha_gut_inv
`

func decode(t *testing.T, doc string) RawTree {
	t.Helper()
	var raw RawTree
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return raw
}

func TestIngest_YAML(t *testing.T) {
	s, err := Ingest(decode(t, paramsYAML), WithStoreOptions(WithClock(fixedClock)))
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.True(t, s.Frozen())
	assert.Equal(t, 3, s.Len())

	v, err := s.Get(model.Path("gut", "alpha_inv"))
	require.NoError(t, err)
	assert.Equal(t, 23.54, v.Value)
	assert.Equal(t, model.Fixed(2), v.Format)
	assert.Equal(t, "C3", v.Source)
	assert.Equal(t, 2024, v.LastUpdated.Year())
	require.NotNil(t, v.Experimental)
	assert.Equal(t, 24.30, v.Experimental.Value)
	assert.Equal(t, 0.30, v.Experimental.Error)

	n, err := s.Get(model.Path("gut", "n_gen"))
	require.NoError(t, err)
	assert.Equal(t, model.Integer(), n.Format)
	assert.Equal(t, fixedClock(), n.LastUpdated)

	h0, err := s.Get(model.Path("cosmo", "h0"))
	require.NoError(t, err)
	assert.Equal(t, model.Fixed(4), h0.Format)
	assert.Equal(t, "km/s/Mpc", h0.Unit)

	viaAlias, err := s.Get(model.Path("couplings", "alpha_gut_inv"))
	require.NoError(t, err)
	assert.Equal(t, v, viaAlias)
}

func TestIngest_Mutable(t *testing.T) {
	s, err := Ingest(decode(t, paramsYAML), Mutable())
	require.NoError(t, err)
	assert.False(t, s.Frozen())
}

func TestIngest_ReportsEveryProblemAtomically(t *testing.T) {
	doc := `
parameters:
  a:
    ok:
      value: 1.5
    missing_value:
      unit: GeV
    bad_format:
      value: 2
      format: hex:3
    fractional_integer:
      value: 2.5
      format: integer
    bad_experimental:
      value: 1
      experimental:
        value: 1
        error: -0.1
aliases:
  - canonical: a.nope
    alias: b.x
  - canonical: ""
    alias: b.y
`
	s, err := Ingest(decode(t, doc))
	require.Error(t, err)
	assert.Nil(t, s, "a failed ingest must not yield a partial store")

	var ie *model.IngestionError
	require.ErrorAs(t, err, &ie)

	items := make(map[string]bool)
	for _, p := range ie.Problems {
		items[p.Item] = true
	}
	assert.True(t, items["a.missing_value"])
	assert.True(t, items["a.bad_format"])
	assert.True(t, items["a.fractional_integer"])
	assert.True(t, items["a.bad_experimental"])
	assert.True(t, items["alias b.x"])
	assert.True(t, items["alias b.y"])
	assert.False(t, items["a.ok"])
}

func TestIngest_RejectsUnreachablePaths(t *testing.T) {
	doc := `
parameters:
  gut.v2:
    alpha_inv:
      value: 23.54
  gut:
    "alpha inv":
      value: 1
    v2.alpha_inv:
      value: 2
`
	s, err := Ingest(decode(t, doc))
	require.Error(t, err)
	assert.Nil(t, s)

	var ie *model.IngestionError
	require.ErrorAs(t, err, &ie)
	items := make(map[string]bool)
	for _, p := range ie.Problems {
		items[p.Item] = true
	}
	assert.True(t, items["gut.v2.alpha_inv"], "dotted category must be rejected")
	assert.True(t, items["gut.alpha inv"])
	assert.Len(t, ie.Problems, 2, "dotted names stay valid")

	var iv *InvalidValueError
	assert.ErrorAs(t, err, &iv)
}

func TestParameterPath_TextRoundTripAfterIngest(t *testing.T) {
	s, err := Ingest(decode(t, "parameters:\n  gut:\n    v2.alpha_inv:\n      value: 2\n"))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	for p := range s.ListPaths("") {
		text, err := p.MarshalText()
		require.NoError(t, err)
		var back model.ParameterPath
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
		_, err = s.Get(back)
		assert.NoError(t, err)
	}
}

func TestIngest_AliasDefaultTolerance(t *testing.T) {
	doc := `
parameters:
  a:
    x:
      value: 100
    y:
      value: 100.5
aliases:
  - canonical: a.x
    alias: a.y
`
	_, err := Ingest(decode(t, doc))
	var ie *model.IngestionError
	require.ErrorAs(t, err, &ie)
	var mm *AliasMismatchError
	assert.ErrorAs(t, err, &mm)

	s, err := Ingest(decode(t, doc), WithAliasTolerance(0.01))
	require.NoError(t, err)
	assert.True(t, s.Aliases()[0].Shadow)
}

func TestInferFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want model.FormatHint
	}{
		{3, model.Integer()},
		{0, model.Integer()},
		{23.54, model.Fixed(4)},
		{6.674e-11, model.Scientific(6)},
		{2.998e8, model.Integer()},
		{12345678.5, model.Scientific(6)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferFormat(tt.in), "InferFormat(%v)", tt.in)
	}
}
