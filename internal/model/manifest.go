package model

import "fmt"

// Location is the position of a directive inside a document
type Location struct {
	Document string `json:"document"`
	Offset   int    `json:"offset"` // Byte offset of the opening brace
	Line     int    `json:"line"`   // 1-based
	Column   int    `json:"column"` // 1-based, in bytes
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Document, l.Line, l.Column)
}

// DirectiveField selects which number of a parameter a directive renders
type DirectiveField string

const (
	FieldValue        DirectiveField = "value"
	FieldExperimental DirectiveField = "experimental"
	FieldUncertainty  DirectiveField = "uncertainty"
)

// Directive is one placeholder found in a document. Created per scan, never persisted.
type Directive struct {
	Location       Location       `json:"location"`
	Raw            string         `json:"raw"` // Exact source text, braces included
	Path           ParameterPath  `json:"path"`
	FormatOverride *FormatHint    `json:"format_override,omitempty"`
	TooltipClaimID string         `json:"tooltip,omitempty"`
	Field          DirectiveField `json:"field,omitempty"`
	ShowUnit       bool           `json:"show_unit,omitempty"`
}

// ResolutionErrorKind classifies a non-fatal directive failure
type ResolutionErrorKind string

const (
	ErrKindMalformed           ResolutionErrorKind = "malformed_directive"
	ErrKindMissingParameter    ResolutionErrorKind = "missing_parameter"
	ErrKindMissingExperimental ResolutionErrorKind = "missing_experimental"
	ErrKindMissingClaim        ResolutionErrorKind = "missing_tooltip_claim"
	ErrKindFormatMismatch      ResolutionErrorKind = "format_mismatch"
)

// ResolutionError is recorded in the manifest instead of aborting the render
type ResolutionError struct {
	Kind    ResolutionErrorKind `json:"kind"`
	Message string              `json:"message"`
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ResolvedValue is the structured result of a resolved directive
type ResolvedValue struct {
	Raw               float64       `json:"raw"` // Unformatted number that was rendered
	Text              string        `json:"text"`
	Unit              string        `json:"unit,omitempty"`
	Format            string        `json:"format"`
	ProvenanceVersion string        `json:"provenance_version,omitempty"`
	Source            string        `json:"source,omitempty"`
	Experimental      *Experimental `json:"experimental,omitempty"`
}

// Tooltip is auxiliary, non-visible provenance attached to a resolved directive
type Tooltip struct {
	ClaimID         string        `json:"claim_id"`
	Tier            Tier          `json:"tier"`
	Symbolic        string        `json:"symbolic,omitempty"`
	PlainText       string        `json:"plain_text,omitempty"`
	DerivationSteps []string      `json:"derivation_steps,omitempty"`
	Citations       []CitationRef `json:"citations,omitempty"`
}

// EntryStatus is the outcome of one directive
type EntryStatus string

const (
	StatusResolved EntryStatus = "resolved"
	StatusError    EntryStatus = "error"
)

// ManifestEntry records exactly one directive outcome
type ManifestEntry struct {
	Directive Directive        `json:"directive"`
	Status    EntryStatus      `json:"status"`
	Value     *ResolvedValue   `json:"value,omitempty"`
	Tooltip   *Tooltip         `json:"tooltip,omitempty"`
	Error     *ResolutionError `json:"error,omitempty"`
}

// Manifest is the per-document resolution record. Read-only after creation.
type Manifest struct {
	Document      string          `json:"document"`
	Failed        bool            `json:"failed,omitempty"` // Document could not be rendered at all
	FailureReason string          `json:"failure_reason,omitempty"`
	Entries       []ManifestEntry `json:"entries"`
}

// ErrorCount returns the number of error entries
func (m *Manifest) ErrorCount() int {
	n := 0
	for _, e := range m.Entries {
		if e.Status == StatusError {
			n++
		}
	}
	return n
}

// OK reports whether the document rendered with every directive resolved
func (m *Manifest) OK() bool {
	return !m.Failed && m.ErrorCount() == 0
}

// ManifestCollection is the concatenation of every document manifest of a run
type ManifestCollection struct {
	StoreFingerprint    string     `json:"store_fingerprint,omitempty"`
	RegistryFingerprint string     `json:"registry_fingerprint,omitempty"`
	Manifests           []Manifest `json:"manifests"`
}

// OK reports whether every manifest is OK
func (c *ManifestCollection) OK() bool {
	for i := range c.Manifests {
		if !c.Manifests[i].OK() {
			return false
		}
	}
	return true
}
