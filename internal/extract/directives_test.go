package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimgraph/internal/model"
)

func TestScan_Basic(t *testing.T) {
	src := []byte("The GUT coupling is {gut.alpha_inv, format=fixed:2}.\nGenerations: {gut.n_gen}\n")

	spans := Scan("doc.md", src)
	require.Len(t, spans, 2)

	first := spans[0]
	assert.False(t, first.Malformed())
	assert.Equal(t, "{gut.alpha_inv, format=fixed:2}", first.Directive.Raw)
	assert.Equal(t, model.Path("gut", "alpha_inv"), first.Directive.Path)
	require.NotNil(t, first.Directive.FormatOverride)
	assert.Equal(t, model.Fixed(2), *first.Directive.FormatOverride)
	assert.Equal(t, model.FieldValue, first.Directive.Field)
	assert.Equal(t, model.Location{Document: "doc.md", Offset: 20, Line: 1, Column: 21}, first.Directive.Location)
	assert.Equal(t, string(src[first.Start:first.End]), first.Directive.Raw)

	second := spans[1]
	assert.Equal(t, "{gut.n_gen}", second.Directive.Raw)
	assert.Equal(t, 2, second.Directive.Location.Line)
	assert.Equal(t, 14, second.Directive.Location.Column)
	assert.Nil(t, second.Directive.FormatOverride)
}

func TestScan_AllOptions(t *testing.T) {
	spans := Scan("d", []byte("{cosmo.omega_b, field=experimental, tooltip=C7, unit=true, format=scientific:3}"))
	require.Len(t, spans, 1)
	require.False(t, spans[0].Malformed(), "%v", spans[0].Err)

	d := spans[0].Directive
	assert.Equal(t, model.FieldExperimental, d.Field)
	assert.Equal(t, "C7", d.TooltipClaimID)
	assert.True(t, d.ShowUnit)
	assert.Equal(t, model.Scientific(3), *d.FormatOverride)
}

func TestScan_PassThroughText(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"latex group", `\frac{a}{b} and {x}`},
		{"escaped brace", `\{gut.alpha_inv\}`},
		{"escaped directive", `\{gut.alpha_inv}`},
		{"space before close", `{gut.alpha_inv }`},
		{"no dot", `{alpha}`},
		{"leading digit", `{1gut.alpha}`},
		{"trailing dot", `{gut.alpha.}`},
		{"json object", `{"gut": 1}`},
		{"template braces", `{{ .Values }}`},
		{"unterminated path", `{gut.alpha`},
		{"latex text argument", `\text{e.g}`},
		{"latex mathrm argument", `$\mathrm{d.x}$`},
		{"latex command with directive-shaped argument", `\operatorname{gut.alpha_inv}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Scan("d", []byte(tt.src)))
		})
	}
}

func TestScan_DirectiveInsideLatex(t *testing.T) {
	src := `$\alpha^{-1} = {gut.alpha_inv}$ and \text{see {cosmo.h0}}`
	spans := Scan("d", []byte(src))
	require.Len(t, spans, 2)
	assert.Equal(t, model.Path("gut", "alpha_inv"), spans[0].Directive.Path)
	assert.Equal(t, model.Path("cosmo", "h0"), spans[1].Directive.Path)
}

func TestScan_DottedName(t *testing.T) {
	spans := Scan("d", []byte("{masses.quark.top}"))
	require.Len(t, spans, 1)
	assert.Equal(t, model.Path("masses", "quark.top"), spans[0].Directive.Path)
}

func TestScan_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		raw     string
		message string
	}{
		{"unknown option", "{a.b, colour=red}", "{a.b, colour=red}", "unknown option"},
		{"duplicate option", "{a.b, unit=true, unit=false}", "{a.b, unit=true, unit=false}", "duplicate option"},
		{"bad format", "{a.b, format=fixed:99}", "{a.b, format=fixed:99}", "out of range"},
		{"bad field", "{a.b, field=sigma}", "{a.b, field=sigma}", "unknown field"},
		{"bad unit", "{a.b, unit=yes}", "{a.b, unit=yes}", "true or false"},
		{"missing value", "{a.b, tooltip}", "{a.b, tooltip}", "key=value"},
		{"trailing comma", "{a.b,}", "{a.b,}", "empty option"},
		{"missing close", "{a.b, format=fixed:2 and more\nnext", "{a.b, format=fixed:2 and more", "missing closing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := Scan("d", []byte(tt.src))
			require.Len(t, spans, 1)
			require.True(t, spans[0].Malformed())
			assert.Equal(t, model.ErrKindMalformed, spans[0].Err.Kind)
			assert.Contains(t, spans[0].Err.Message, tt.message)
			assert.Equal(t, tt.raw, spans[0].Directive.Raw)
		})
	}
}

func TestScan_MissingCloseKeepsLineNumbers(t *testing.T) {
	spans := Scan("d", []byte("{a.b, unit=true\n{c.d}"))
	require.Len(t, spans, 2)
	assert.True(t, spans[0].Malformed())
	assert.Equal(t, 2, spans[1].Directive.Location.Line)
	assert.Equal(t, 1, spans[1].Directive.Location.Column)
}

func TestScan_Deterministic(t *testing.T) {
	src := []byte("x {a.b} y {c.d, format=integer} z {bad.e, nope=1}")
	assert.Equal(t, Scan("d", src), Scan("d", src))
}
