package model

// AuditReport is the complete output of the validation and audit engine.
// Every slice is stable-ordered and the report carries no timestamps so that
// two runs can be diffed directly.
type AuditReport struct {
	Status  AuditStatus `json:"status"`
	Summary Summary     `json:"summary"`

	Categories []Category `json:"categories"` // category -> findings

	Claims    []ClaimStatus   `json:"claims"`
	Rejected  []Rejection     `json:"rejected,omitempty"`
	Coverage  []FieldCoverage `json:"coverage"`
	CrossRefs CrossReference  `json:"cross_references"`
	Ingestion []Problem       `json:"ingestion,omitempty"`

	Documents  int `json:"documents"`  // Manifests audited
	Directives int `json:"directives"` // Manifest entries audited

	Principles Principles `json:"principles"`
}

// AuditStatus is the overall verdict
type AuditStatus string

const (
	AuditPass AuditStatus = "pass"
	AuditFail AuditStatus = "fail"
)

// Category groups findings of one kind
type Category struct {
	Name     CategoryName `json:"name"`
	Passed   bool         `json:"passed"`
	Findings []Finding    `json:"findings"`
}

// CategoryName names a finding category
type CategoryName string

const (
	CategoryGraph          CategoryName = "graph"
	CategoryCoverage       CategoryName = "coverage"
	CategoryCrossReference CategoryName = "cross_reference"
	CategoryManifest       CategoryName = "manifest"
	CategoryIngestion      CategoryName = "ingestion"
)

// CategoryOrder is the fixed order categories appear in a report
var CategoryOrder = []CategoryName{
	CategoryIngestion,
	CategoryGraph,
	CategoryCoverage,
	CategoryCrossReference,
	CategoryManifest,
}

// Finding is a diagnostic with transparent data, like a scoring signal
type Finding struct {
	Severity Severity               `json:"severity"`
	Code     FindingCode            `json:"code"`
	Subject  string                 `json:"subject"` // Claim id, parameter path, document location
	Message  string                 `json:"message"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// FindingCode classifies a finding
type FindingCode string

const (
	CodeCycle             FindingCode = "cyclic_derivation"
	CodeUnrooted          FindingCode = "unrooted_claim"
	CodeMissingParent     FindingCode = "missing_parent"
	CodeDuplicateID       FindingCode = "duplicate_id"
	CodeInvalidTier       FindingCode = "invalid_tier"
	CodeRejected          FindingCode = "rejected_claim"
	CodeCoverageGap       FindingCode = "coverage_gap"
	CodeUnboundParam      FindingCode = "unresolved_bound_param"
	CodeUnusedParam       FindingCode = "unused_parameter"
	CodeStaleReference    FindingCode = "stale_reference"
	CodeOrphanedReference FindingCode = "orphaned_reference"
	CodeManifestError     FindingCode = "manifest_error"
	CodeDocumentFailed    FindingCode = "document_failed"
	CodeIngestion         FindingCode = "ingestion_problem"
)

// Severity indicates the importance of a finding
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// RootStatus is the derivation status of one claim
type RootStatus string

const (
	RootRooted   RootStatus = "rooted"
	RootUnrooted RootStatus = "unrooted"
	RootCyclic   RootStatus = "cyclic"
)

// ClaimStatus is the per-claim rooting/cycle result
type ClaimStatus struct {
	ID             string     `json:"id"`
	Tier           Tier       `json:"tier"`
	Status         RootStatus `json:"status"`
	Depth          int        `json:"depth"`
	Roots          []string   `json:"roots,omitempty"`
	Cycle          []string   `json:"cycle,omitempty"`
	MissingParents []string   `json:"missing_parents,omitempty"`
	UnrootedLeaves []string   `json:"unrooted_leaves,omitempty"` // Non-axiom leaves reached
}

// Rejection is a claim refused at registration time
type Rejection struct {
	ID     string      `json:"id"`
	Code   FindingCode `json:"code"`
	Reason string      `json:"reason"`
	Cycle  []string    `json:"cycle,omitempty"`
}

// FieldCoverage is the coverage of one required metadata field
type FieldCoverage struct {
	Field   string   `json:"field"`
	Covered int      `json:"covered"`
	Total   int      `json:"total"`
	Ratio   float64  `json:"ratio"`   // covered / total, 1 when total is 0
	Percent float64  `json:"percent"` // ratio * 100
	Missing []string `json:"missing,omitempty"`
}

// CrossReference holds the store <-> registry <-> manifest checks
type CrossReference struct {
	BoundParams      []BoundParamCheck `json:"bound_params"`
	ManifestErrors   []ManifestIssue   `json:"manifest_errors,omitempty"`
	FailedDocuments  []ManifestIssue   `json:"failed_documents,omitempty"`
	StaleReferences  []ManifestIssue   `json:"stale_references,omitempty"`
	UnusedParameters []ParameterPath   `json:"unused_parameters,omitempty"`
}

// BoundParamCheck records whether a claim's bound parameter resolves in the store
type BoundParamCheck struct {
	ClaimID  string        `json:"claim_id"`
	Path     ParameterPath `json:"path"`
	Resolved bool          `json:"resolved"`
}

// ManifestIssue points at one problem in a manifest
type ManifestIssue struct {
	Document string              `json:"document"`
	Location string              `json:"location,omitempty"`
	Raw      string              `json:"raw,omitempty"`
	Kind     ResolutionErrorKind `json:"kind,omitempty"`
	Message  string              `json:"message"`
}

// Summary holds itemized "N of M" counts and the integrity index
type Summary struct {
	Index   int      `json:"index"` // Integrity index 0-100
	Formula string   `json:"formula"`
	Counts  []Count  `json:"counts"`
	Signals []Signal `json:"signals,omitempty"`

	Critical int `json:"critical"`
	Warnings int `json:"warnings"`
}

// Count is an "N of M complete" line
type Count struct {
	Label string `json:"label"`
	N     int    `json:"n"`
	M     int    `json:"m"`
}

// Complete reports whether N == M
func (c Count) Complete() bool { return c.N == c.M }

// Signal is a scoring component with its transparent formula
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies an index component
type SignalType string

const (
	SignalRooting      SignalType = "rooting"
	SignalCoverage     SignalType = "metadata_coverage"
	SignalBinding      SignalType = "parameter_binding"
	SignalResolution   SignalType = "directive_resolution"
	SignalUnusedParams SignalType = "unused_parameters"
)

// Principles documents which core principles were applied
type Principles struct {
	Deterministic bool `json:"deterministic"` // Same inputs, same report
	Complete      bool `json:"complete"`      // Every input item has a status
	Transparent   bool `json:"transparent"`   // All scoring explainable
}

// DefaultPrinciples returns the standard report principles
func DefaultPrinciples() Principles {
	return Principles{
		Deterministic: true,
		Complete:      true,
		Transparent:   true,
	}
}

// Category returns the named category, or nil
func (r *AuditReport) Category(name CategoryName) *Category {
	for i := range r.Categories {
		if r.Categories[i].Name == name {
			return &r.Categories[i]
		}
	}
	return nil
}

// FieldCoverage returns the coverage entry for field, or nil
func (r *AuditReport) FieldCoverage(field string) *FieldCoverage {
	for i := range r.Coverage {
		if r.Coverage[i].Field == field {
			return &r.Coverage[i]
		}
	}
	return nil
}
