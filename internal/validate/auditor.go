package validate

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/params"
	"github.com/ppiankov/claimgraph/internal/registry"
	"github.com/ppiankov/claimgraph/internal/score"
)

// ErrMalformedManifest marks a manifest entry that is neither resolved nor failed
var ErrMalformedManifest = errors.New("malformed manifest entry")

// EngineError is returned when the audit inputs are internally inconsistent.
// Claim is set when a registered claim could not be analysed; otherwise the
// error points at a manifest entry.
type EngineError struct {
	Document string
	Entry    int
	Claim    string
	Reason   string
	Err      error
}

func (e *EngineError) Error() string {
	if e.Claim != "" {
		return fmt.Sprintf("audit: claim %s: %s", e.Claim, e.Reason)
	}
	return fmt.Sprintf("audit: %s entry %d: %s", e.Document, e.Entry, e.Reason)
}

func (e *EngineError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedManifest
}

// Options control an audit
type Options struct {
	RequireFullCoverage bool            // Coverage gaps are critical instead of warnings
	Ingestion           []model.Problem // Problems found while loading the inputs
}

// Coverage fields
const (
	FieldDerivationSteps = "derivation_steps"
	FieldVerificationRef = "verification_ref"
	FieldBoundParams     = "bound_params"
)

// Audit checks the store, the registry and render manifests against each
// other. It never mutates its inputs. A nil store or registry is audited as
// empty.
func Audit(store *params.Store, reg *registry.Registry, manifests []model.Manifest, opts Options) (*model.AuditReport, error) {
	if store == nil {
		store = params.NewStore()
	}
	if reg == nil {
		reg = registry.New()
	}
	if err := checkManifests(manifests); err != nil {
		return nil, err
	}

	a := &auditor{
		store:     store,
		reg:       reg,
		status:    reg.Status,
		manifests: manifests,
		opts:      opts,
		findings:  make(map[model.CategoryName][]model.Finding),
	}

	claims, err := a.claims()
	if err != nil {
		return nil, err
	}

	report := &model.AuditReport{
		Claims:     claims,
		Rejected:   a.rejections(),
		Coverage:   a.coverage(),
		CrossRefs:  a.crossReferences(),
		Ingestion:  a.ingestion(),
		Principles: model.DefaultPrinciples(),
	}
	a.graph()

	report.Documents = len(manifests)
	for _, m := range manifests {
		report.Directives += len(m.Entries)
	}

	report.Categories = a.categories()
	report.Summary = score.NewScorer().Calculate(report)

	report.Status = model.AuditPass
	if report.Summary.Critical > 0 {
		report.Status = model.AuditFail
	}
	return report, nil
}

// checkManifests rejects entries that carry both or neither of value and error
func checkManifests(manifests []model.Manifest) error {
	for _, m := range manifests {
		for i, e := range m.Entries {
			switch {
			case e.Value != nil && e.Error != nil:
				return &EngineError{Document: m.Document, Entry: i, Reason: "entry has both a value and an error"}
			case e.Value == nil && e.Error == nil:
				return &EngineError{Document: m.Document, Entry: i, Reason: "entry has neither a value nor an error"}
			case e.Status == model.StatusResolved && e.Value == nil,
				e.Status == model.StatusError && e.Error == nil:
				return &EngineError{Document: m.Document, Entry: i, Reason: fmt.Sprintf("status %q does not match entry contents", e.Status)}
			case e.Status != model.StatusResolved && e.Status != model.StatusError:
				return &EngineError{Document: m.Document, Entry: i, Reason: fmt.Sprintf("unknown status %q", e.Status)}
			}
		}
	}
	return nil
}

type auditor struct {
	store     *params.Store
	reg       *registry.Registry
	status    func(id string) (model.ClaimStatus, error)
	manifests []model.Manifest
	opts      Options
	findings  map[model.CategoryName][]model.Finding
}

func (a *auditor) add(category model.CategoryName, f model.Finding) {
	a.findings[category] = append(a.findings[category], f)
}

// claims computes the rooting status of every registered claim
func (a *auditor) claims() ([]model.ClaimStatus, error) {
	ids := a.reg.IDs()
	out := make([]model.ClaimStatus, 0, len(ids))

	for _, id := range ids {
		st, err := a.status(id)
		if err != nil {
			return nil, &EngineError{Claim: id, Reason: err.Error(), Err: err}
		}
		out = append(out, st)

		if st.Status == model.RootUnrooted {
			a.add(model.CategoryGraph, model.Finding{
				Severity: model.SeverityCritical,
				Code:     model.CodeUnrooted,
				Subject:  id,
				Message:  fmt.Sprintf("claim %s does not trace back to an axiom", id),
				Data: map[string]interface{}{
					"unrooted_leaves": st.UnrootedLeaves,
					"missing_parents": st.MissingParents,
				},
			})
		}
	}
	return out, nil
}

// graph reports cycles and dangling parent references
func (a *auditor) graph() {
	for _, cycle := range a.reg.Cycles() {
		a.add(model.CategoryGraph, model.Finding{
			Severity: model.SeverityCritical,
			Code:     model.CodeCycle,
			Subject:  cycle[0],
			Message:  "cyclic derivation: " + strings.Join(cycle, " -> "),
			Data:     map[string]interface{}{"cycle": cycle},
		})
	}

	for _, c := range a.reg.Claims() {
		for _, p := range c.Parents {
			if a.reg.Has(p) {
				continue
			}
			a.add(model.CategoryGraph, model.Finding{
				Severity: model.SeverityCritical,
				Code:     model.CodeMissingParent,
				Subject:  c.ID,
				Message:  fmt.Sprintf("claim %s names unknown parent %s", c.ID, p),
				Data:     map[string]interface{}{"parent": p},
			})
		}
	}
}

// rejections lists claims refused at registration
func (a *auditor) rejections() []model.Rejection {
	rejected := a.reg.Rejections()
	for _, r := range rejected {
		data := map[string]interface{}{}
		if len(r.Cycle) > 0 {
			data["cycle"] = r.Cycle
		}
		a.add(model.CategoryGraph, model.Finding{
			Severity: model.SeverityCritical,
			Code:     r.Code,
			Subject:  r.ID,
			Message:  "rejected: " + r.Reason,
			Data:     data,
		})
	}
	return rejected
}

// coverage measures the required metadata fields. derivation_steps and
// verification_ref are required of every non-axiom claim; bound_params of
// derived and prediction claims.
func (a *auditor) coverage() []model.FieldCoverage {
	claims := a.reg.Claims()

	fields := []struct {
		name    string
		applies func(c *model.Claim) bool
		covered func(c *model.Claim) bool
	}{
		{
			name:    FieldDerivationSteps,
			applies: func(c *model.Claim) bool { return !c.IsAxiom() },
			covered: func(c *model.Claim) bool { return len(c.DerivationSteps) > 0 },
		},
		{
			name:    FieldVerificationRef,
			applies: func(c *model.Claim) bool { return !c.IsAxiom() },
			covered: func(c *model.Claim) bool { return c.VerificationRef != "" },
		},
		{
			name:    FieldBoundParams,
			applies: func(c *model.Claim) bool { return c.Tier.RequiresNumericOutput() },
			covered: func(c *model.Claim) bool { return len(c.BoundParams) > 0 },
		},
	}

	severity := model.SeverityWarning
	if a.opts.RequireFullCoverage {
		severity = model.SeverityCritical
	}

	out := make([]model.FieldCoverage, 0, len(fields))
	for _, f := range fields {
		fc := model.FieldCoverage{Field: f.name}
		for _, c := range claims {
			if !f.applies(c) {
				continue
			}
			fc.Total++
			if f.covered(c) {
				fc.Covered++
			} else {
				fc.Missing = append(fc.Missing, c.ID)
			}
		}

		fc.Ratio = 1
		if fc.Total > 0 {
			fc.Ratio = float64(fc.Covered) / float64(fc.Total)
		}
		fc.Percent = fc.Ratio * 100
		out = append(out, fc)

		if len(fc.Missing) > 0 {
			a.add(model.CategoryCoverage, model.Finding{
				Severity: severity,
				Code:     model.CodeCoverageGap,
				Subject:  f.name,
				Message:  fmt.Sprintf("%s: %d of %d claims covered", f.name, fc.Covered, fc.Total),
				Data: map[string]interface{}{
					"covered": fc.Covered,
					"total":   fc.Total,
					"ratio":   fc.Ratio,
					"missing": fc.Missing,
					"formula": "covered / total",
				},
			})
		}
	}
	return out
}

// crossReferences ties the store, the registry and the manifests together
func (a *auditor) crossReferences() model.CrossReference {
	xr := model.CrossReference{BoundParams: make([]model.BoundParamCheck, 0)}
	used := make(map[model.ParameterPath]bool)

	for _, c := range a.reg.Claims() {
		for _, p := range c.BoundParams {
			used[p] = true
			resolved := a.store.Has(p)
			xr.BoundParams = append(xr.BoundParams, model.BoundParamCheck{ClaimID: c.ID, Path: p, Resolved: resolved})
			if !resolved {
				a.add(model.CategoryCrossReference, model.Finding{
					Severity: model.SeverityCritical,
					Code:     model.CodeUnboundParam,
					Subject:  c.ID,
					Message:  fmt.Sprintf("claim %s binds %s, which is not in the parameter store", c.ID, p),
					Data:     map[string]interface{}{"path": p.String()},
				})
			}
		}
	}

	type located struct {
		issue model.ManifestIssue
		loc   model.Location
	}
	var errs, failed, stale []located
	orphaned := make(map[string][]string)

	for _, m := range a.manifests {
		if m.Failed {
			failed = append(failed, located{
				issue: model.ManifestIssue{Document: m.Document, Message: m.FailureReason},
				loc:   model.Location{Document: m.Document},
			})
		}

		for _, e := range m.Entries {
			d := e.Directive
			used[d.Path] = true
			issue := model.ManifestIssue{
				Document: m.Document,
				Location: fmt.Sprintf("%d:%d", d.Location.Line, d.Location.Column),
				Raw:      d.Raw,
			}

			switch e.Status {
			case model.StatusError:
				issue.Kind = e.Error.Kind
				issue.Message = e.Error.Message
				errs = append(errs, located{issue, d.Location})
			case model.StatusResolved:
				if !a.store.Has(d.Path) {
					issue.Message = fmt.Sprintf("parameter %s was resolved when the manifest was written but is no longer in the store", d.Path)
					stale = append(stale, located{issue, d.Location})
				}
				if d.TooltipClaimID != "" && !a.reg.Has(d.TooltipClaimID) {
					ref := m.Document + ":" + issue.Location
					orphaned[d.TooltipClaimID] = append(orphaned[d.TooltipClaimID], ref)
				}
			}
		}
	}

	byLocation := func(x, y located) int {
		return cmp.Or(
			strings.Compare(x.loc.Document, y.loc.Document),
			cmp.Compare(x.loc.Line, y.loc.Line),
			cmp.Compare(x.loc.Column, y.loc.Column),
			strings.Compare(x.issue.Raw, y.issue.Raw),
		)
	}
	for _, list := range [][]located{errs, failed, stale} {
		slices.SortStableFunc(list, byLocation)
	}

	for _, l := range errs {
		xr.ManifestErrors = append(xr.ManifestErrors, l.issue)
		a.add(model.CategoryManifest, model.Finding{
			Severity: model.SeverityCritical,
			Code:     model.CodeManifestError,
			Subject:  l.issue.Document + ":" + l.issue.Location,
			Message:  fmt.Sprintf("%s %s: %s", l.issue.Raw, l.issue.Kind, l.issue.Message),
			Data:     map[string]interface{}{"kind": string(l.issue.Kind)},
		})
	}
	for _, l := range failed {
		xr.FailedDocuments = append(xr.FailedDocuments, l.issue)
		a.add(model.CategoryManifest, model.Finding{
			Severity: model.SeverityCritical,
			Code:     model.CodeDocumentFailed,
			Subject:  l.issue.Document,
			Message:  "document not rendered: " + l.issue.Message,
		})
	}
	for _, l := range stale {
		xr.StaleReferences = append(xr.StaleReferences, l.issue)
		a.add(model.CategoryCrossReference, model.Finding{
			Severity: model.SeverityCritical,
			Code:     model.CodeStaleReference,
			Subject:  l.issue.Document + ":" + l.issue.Location,
			Message:  l.issue.Message,
		})
	}
	for _, id := range sortedKeys(orphaned) {
		a.add(model.CategoryCrossReference, model.Finding{
			Severity: model.SeverityWarning,
			Code:     model.CodeOrphanedReference,
			Subject:  id,
			Message:  fmt.Sprintf("tooltip claim %s is no longer in the registry", id),
			Data:     map[string]interface{}{"references": orphaned[id]},
		})
	}

	// An alias and its canonical path name one constant
	for _, al := range a.store.Aliases() {
		if used[al.Alias] || used[al.Canonical] {
			used[al.Alias] = true
			used[al.Canonical] = true
		}
	}
	for p := range a.store.ListPaths("") {
		if used[p] {
			continue
		}
		xr.UnusedParameters = append(xr.UnusedParameters, p)
		a.add(model.CategoryCrossReference, model.Finding{
			Severity: model.SeverityWarning,
			Code:     model.CodeUnusedParam,
			Subject:  p.String(),
			Message:  fmt.Sprintf("parameter %s is bound by no claim and rendered by no directive", p),
		})
	}

	return xr
}

// ingestion folds load-time problems into the report
func (a *auditor) ingestion() []model.Problem {
	if len(a.opts.Ingestion) == 0 {
		return nil
	}
	problems := slices.Clone(a.opts.Ingestion)
	for _, p := range problems {
		data := map[string]interface{}{}
		if p.Field != "" {
			data["field"] = p.Field
		}
		a.add(model.CategoryIngestion, model.Finding{
			Severity: model.SeverityCritical,
			Code:     model.CodeIngestion,
			Subject:  p.Item,
			Message:  p.Message,
			Data:     data,
		})
	}
	return problems
}

// categories assembles the findings in fixed category order
func (a *auditor) categories() []model.Category {
	out := make([]model.Category, 0, len(model.CategoryOrder))
	for _, name := range model.CategoryOrder {
		findings := a.findings[name]
		if findings == nil {
			findings = make([]model.Finding, 0)
		}
		sortFindings(findings)

		passed := true
		for _, f := range findings {
			if f.Severity == model.SeverityCritical {
				passed = false
				break
			}
		}
		out = append(out, model.Category{Name: name, Passed: passed, Findings: findings})
	}
	return out
}

var severityRank = map[model.Severity]int{
	model.SeverityCritical: 0,
	model.SeverityWarning:  1,
	model.SeverityInfo:     2,
}

// sortFindings orders findings by severity, code, subject and message
func sortFindings(findings []model.Finding) {
	slices.SortStableFunc(findings, func(x, y model.Finding) int {
		return cmp.Or(
			cmp.Compare(severityRank[x.Severity], severityRank[y.Severity]),
			strings.Compare(string(x.Code), string(y.Code)),
			strings.Compare(x.Subject, y.Subject),
			strings.Compare(x.Message, y.Message),
		)
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
