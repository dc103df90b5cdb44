package params

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/util"
)

// RawTree is the hierarchical parameter definition document
type RawTree struct {
	Parameters map[string]map[string]RawValue `yaml:"parameters" json:"parameters" toml:"parameters"`
	Aliases    []RawAlias                     `yaml:"aliases,omitempty" json:"aliases,omitempty" toml:"aliases"`
}

// RawValue is one parameter leaf as written in a definition file
type RawValue struct {
	Value        *float64         `yaml:"value" json:"value" toml:"value" validate:"required"`
	Unit         string           `yaml:"unit,omitempty" json:"unit,omitempty" toml:"unit"`
	Format       string           `yaml:"format,omitempty" json:"format,omitempty" toml:"format"`
	Experimental *RawExperimental `yaml:"experimental,omitempty" json:"experimental,omitempty" toml:"experimental" validate:"-"`
	Source       string           `yaml:"source,omitempty" json:"source,omitempty" toml:"source"`
	Updated      string           `yaml:"updated,omitempty" json:"updated,omitempty" toml:"updated"`
}

// RawExperimental is the experimental comparison of a leaf
type RawExperimental struct {
	Value  *float64 `yaml:"value" json:"value" toml:"value" validate:"required"`
	Error  float64  `yaml:"error" json:"error" toml:"error" validate:"gte=0"`
	Source string   `yaml:"source" json:"source" toml:"source" validate:"required"`
}

// RawAlias declares two paths as the same constant
type RawAlias struct {
	Canonical string   `yaml:"canonical" json:"canonical" toml:"canonical" validate:"required"`
	Alias     string   `yaml:"alias" json:"alias" toml:"alias" validate:"required"`
	Tolerance *float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty" toml:"tolerance"`
}

// ingestOptions holds Ingest settings
type ingestOptions struct {
	storeOpts        []Option
	defaultTolerance float64
	keepMutable      bool
}

// IngestOption configures Ingest
type IngestOption func(*ingestOptions)

// WithStoreOptions passes options to the constructed store
func WithStoreOptions(opts ...Option) IngestOption {
	return func(o *ingestOptions) { o.storeOpts = append(o.storeOpts, opts...) }
}

// WithAliasTolerance sets the tolerance for aliases that do not declare one
func WithAliasTolerance(tol float64) IngestOption {
	return func(o *ingestOptions) { o.defaultTolerance = tol }
}

// Mutable leaves the constructed store unfrozen
func Mutable() IngestOption {
	return func(o *ingestOptions) { o.keepMutable = true }
}

// Ingest builds a store from a raw definition tree. Every leaf is validated
// and every problem reported; if any leaf is invalid no store is returned.
func Ingest(raw RawTree, opts ...IngestOption) (*Store, error) {
	o := ingestOptions{defaultTolerance: 1e-9}
	for _, opt := range opts {
		opt(&o)
	}

	store := NewStore(o.storeOpts...)
	problems := &model.IngestionError{Source: "parameters"}

	categories := make([]string, 0, len(raw.Parameters))
	for c := range raw.Parameters {
		categories = append(categories, c)
	}
	slices.Sort(categories)

	for _, category := range categories {
		leaves := raw.Parameters[category]
		names := make([]string, 0, len(leaves))
		for n := range leaves {
			names = append(names, n)
		}
		slices.Sort(names)

		for _, name := range names {
			path := model.Path(category, name)
			value, errs := convertLeaf(leaves[name])
			if len(errs) > 0 {
				for _, fe := range errs {
					problems.Add(path.String(), fe.Field, fe.Err)
				}
				continue
			}
			if err := store.Set(path, value); err != nil {
				problems.Add(path.String(), "", err)
			}
		}
	}

	aliases := slices.Clone(raw.Aliases)
	slices.SortStableFunc(aliases, func(a, b RawAlias) int {
		switch {
		case a.Alias < b.Alias:
			return -1
		case a.Alias > b.Alias:
			return 1
		}
		return 0
	})
	for _, ra := range aliases {
		item := "alias " + ra.Alias
		if fes := util.ValidateStruct(ra); len(fes) > 0 {
			for _, fe := range fes {
				problems.Add(item, fe.Field, fe.Err)
			}
			continue
		}
		canonical, err := model.ParsePath(ra.Canonical)
		if err != nil {
			problems.Add(item, "canonical", err)
			continue
		}
		alias, err := model.ParsePath(ra.Alias)
		if err != nil {
			problems.Add(item, "alias", err)
			continue
		}
		tol := o.defaultTolerance
		if ra.Tolerance != nil {
			tol = *ra.Tolerance
		}
		if err := store.Alias(canonical, alias, tol); err != nil {
			problems.Add(item, "", err)
		}
	}

	if err := problems.OrNil(); err != nil {
		return nil, err
	}

	if !o.keepMutable {
		store.Freeze()
	}
	return store, nil
}

// convertLeaf validates a raw leaf and converts it into a ParameterValue
func convertLeaf(raw RawValue) (model.ParameterValue, []util.FieldError) {
	errs := util.ValidateStruct(raw)
	if raw.Experimental != nil {
		for _, fe := range util.ValidateStruct(*raw.Experimental) {
			fe.Field = "experimental." + fe.Field
			errs = append(errs, fe)
		}
	}
	if len(errs) > 0 {
		return model.ParameterValue{}, errs
	}

	value := model.ParameterValue{
		Value:  *raw.Value,
		Unit:   raw.Unit,
		Source: raw.Source,
	}

	if raw.Format == "" {
		value.Format = InferFormat(value.Value)
	} else {
		hint, err := model.ParseFormatHint(raw.Format)
		if err != nil {
			return model.ParameterValue{}, []util.FieldError{{Field: "format", Err: err}}
		}
		value.Format = hint
	}

	if raw.Experimental != nil {
		value.Experimental = &model.Experimental{
			Value:  *raw.Experimental.Value,
			Error:  raw.Experimental.Error,
			Source: raw.Experimental.Source,
		}
	}

	if raw.Updated != "" {
		t, err := parseTimestamp(raw.Updated)
		if err != nil {
			return model.ParameterValue{}, []util.FieldError{{Field: "updated", Err: err}}
		}
		value.LastUpdated = t
	}

	return value, nil
}

// InferFormat picks a format for a leaf that does not declare one
func InferFormat(v float64) model.FormatHint {
	abs := math.Abs(v)
	switch {
	case model.IsIntegral(v) && abs < 1e15:
		return model.Integer()
	case abs != 0 && (abs < 1e-3 || abs >= 1e6):
		return model.Scientific(6)
	default:
		return model.Fixed(4)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: want RFC 3339 or YYYY-MM-DD", s)
}
