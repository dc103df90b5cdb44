package render

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ppiankov/claimgraph/internal/extract"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/render/markup"
)

// ParameterSource resolves parameter paths. *params.Store implements it.
type ParameterSource interface {
	Get(path model.ParameterPath) (model.ParameterValue, error)
}

// ClaimSource resolves tooltip claims. *registry.Registry implements it.
type ClaimSource interface {
	Claim(id string) (*model.Claim, error)
}

// Options control rendering
type Options struct {
	TooltipMarkup bool // Inline tooltip spans in HTML documents
}

// DefaultOptions returns the default render options
func DefaultOptions() Options {
	return Options{TooltipMarkup: true}
}

// Engine renders documents against a store and a registry. It holds no
// per-document state and is safe for concurrent use.
type Engine struct {
	params  ParameterSource
	claims  ClaimSource
	markups *markup.Registry
	opts    Options
}

// NewEngine creates a render engine. claims may be nil, in which case every
// tooltip directive fails.
func NewEngine(params ParameterSource, claims ClaimSource, opts Options) *Engine {
	return &Engine{
		params:  params,
		claims:  claims,
		markups: markup.NewRegistry(opts.TooltipMarkup),
		opts:    opts,
	}
}

// Options returns the engine options
func (e *Engine) Options() Options {
	return e.opts
}

// Render renders one document with default options
func Render(document string, src []byte, params ParameterSource, claims ClaimSource) ([]byte, model.Manifest) {
	return NewEngine(params, claims, DefaultOptions()).Render(document, src)
}

// Render resolves every directive in src. Text between directives is copied
// byte for byte. Failed directives render as a visible placeholder and are
// recorded in the manifest; they never abort the document.
func (e *Engine) Render(document string, src []byte) ([]byte, model.Manifest) {
	manifest := model.Manifest{
		Document: document,
		Entries:  make([]model.ManifestEntry, 0),
	}

	spans := extract.Scan(document, src)
	writer := e.markups.Find(document).Begin(src)

	var out bytes.Buffer
	out.Grow(len(src))
	prev := 0

	for _, span := range spans {
		out.Write(src[prev:span.Start])
		prev = span.End

		entry := e.resolve(span)
		manifest.Entries = append(manifest.Entries, entry)

		if entry.Status == model.StatusResolved {
			out.WriteString(writer.Value(span.Start, entry.Value.Text, entry.Tooltip))
		} else {
			out.WriteString(writer.Unresolved(span.Start, span.Directive.Raw))
		}
	}
	out.Write(src[prev:])

	return out.Bytes(), manifest
}

// resolve turns one directive span into exactly one manifest entry
func (e *Engine) resolve(span extract.Span) model.ManifestEntry {
	d := span.Directive
	if span.Err != nil {
		return failed(d, span.Err)
	}

	value, err := e.params.Get(d.Path)
	if err != nil {
		return failed(d, &model.ResolutionError{
			Kind:    model.ErrKindMissingParameter,
			Message: err.Error(),
		})
	}

	number := value.Value
	switch d.Field {
	case model.FieldExperimental, model.FieldUncertainty:
		if value.Experimental == nil {
			return failed(d, &model.ResolutionError{
				Kind:    model.ErrKindMissingExperimental,
				Message: fmt.Sprintf("parameter %s has no experimental value", d.Path),
			})
		}
		number = value.Experimental.Value
		if d.Field == model.FieldUncertainty {
			number = value.Experimental.Error
		}
	}

	hint := value.Format
	if d.FormatOverride != nil {
		hint = *d.FormatOverride
	}
	text, err := Format(number, hint)
	if err != nil {
		return failed(d, &model.ResolutionError{Kind: model.ErrKindFormatMismatch, Message: err.Error()})
	}
	if d.ShowUnit && value.Unit != "" {
		text += " " + value.Unit
	}

	var tooltip *model.Tooltip
	if d.TooltipClaimID != "" {
		tooltip, err = e.tooltip(d.TooltipClaimID)
		if err != nil {
			return failed(d, &model.ResolutionError{
				Kind:    model.ErrKindMissingClaim,
				Message: err.Error(),
			})
		}
	}

	resolved := &model.ResolvedValue{
		Raw:               number,
		Text:              text,
		Unit:              value.Unit,
		Format:            hint.String(),
		ProvenanceVersion: value.ProvenanceVersion,
		Source:            value.Source,
	}
	if value.Experimental != nil {
		exp := *value.Experimental
		resolved.Experimental = &exp
	}

	return model.ManifestEntry{
		Directive: d,
		Status:    model.StatusResolved,
		Value:     resolved,
		Tooltip:   tooltip,
	}
}

func (e *Engine) tooltip(id string) (*model.Tooltip, error) {
	if e.claims == nil {
		return nil, fmt.Errorf("tooltip claim %q: no registry loaded", id)
	}
	claim, err := e.claims.Claim(id)
	if err != nil {
		return nil, err
	}

	tip := &model.Tooltip{
		ClaimID:   claim.ID,
		Tier:      claim.Tier,
		Symbolic:  claim.Display.Symbolic,
		PlainText: claim.Display.PlainText,
	}
	if len(claim.DerivationSteps) > 0 {
		tip.DerivationSteps = slices.Clone(claim.DerivationSteps)
	}
	for _, c := range claim.Citations {
		tip.Citations = append(tip.Citations, *c)
	}
	return tip, nil
}

func failed(d model.Directive, err *model.ResolutionError) model.ManifestEntry {
	return model.ManifestEntry{Directive: d, Status: model.StatusError, Error: err}
}
