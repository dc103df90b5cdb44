package score

import (
	"testing"

	"github.com/ppiankov/claimgraph/internal/model"
)

func findCount(t *testing.T, s model.Summary, label string) model.Count {
	t.Helper()
	for _, c := range s.Counts {
		if c.Label == label {
			return c
		}
	}
	t.Fatalf("count %q not found in %v", label, s.Counts)
	return model.Count{}
}

func findSignal(s model.Summary, typ model.SignalType) *model.Signal {
	for i := range s.Signals {
		if s.Signals[i].Type == typ {
			return &s.Signals[i]
		}
	}
	return nil
}

func TestScorer_Calculate_PerfectReport(t *testing.T) {
	report := &model.AuditReport{
		Claims: []model.ClaimStatus{
			{ID: "C1", Status: model.RootRooted},
			{ID: "C2", Status: model.RootRooted},
		},
		Coverage: []model.FieldCoverage{
			{Field: "derivation_steps", Covered: 1, Total: 1, Ratio: 1},
		},
		CrossRefs: model.CrossReference{
			BoundParams: []model.BoundParamCheck{{ClaimID: "C2", Resolved: true}},
		},
		Documents:  1,
		Directives: 4,
	}

	result := NewScorer().Calculate(report)

	if result.Index != 100 {
		t.Errorf("expected index 100, got %d", result.Index)
	}
	if result.Formula != Formula {
		t.Errorf("expected formula %q, got %q", Formula, result.Formula)
	}
	if c := findCount(t, result, "claims rooted"); !c.Complete() || c.M != 2 {
		t.Errorf("expected 2 of 2 claims rooted, got %d of %d", c.N, c.M)
	}
	if c := findCount(t, result, "directives resolved"); c.N != 4 || c.M != 4 {
		t.Errorf("expected 4 of 4 directives resolved, got %d of %d", c.N, c.M)
	}
	if findSignal(result, model.SignalUnusedParams) != nil {
		t.Error("expected no unused-parameter signal")
	}
}

func TestScorer_Calculate_ComponentsAreTransparent(t *testing.T) {
	report := &model.AuditReport{
		Claims: []model.ClaimStatus{
			{ID: "C1", Status: model.RootRooted},
			{ID: "C2", Status: model.RootUnrooted},
			{ID: "C3", Status: model.RootRooted},
			{ID: "C4", Status: model.RootRooted},
		},
		Coverage: []model.FieldCoverage{
			{Field: "derivation_steps", Covered: 1, Total: 2, Ratio: 0.5},
			{Field: "verification_ref", Covered: 2, Total: 2, Ratio: 1},
		},
		CrossRefs: model.CrossReference{
			BoundParams: []model.BoundParamCheck{
				{ClaimID: "C3", Resolved: true},
				{ClaimID: "C4", Resolved: false},
			},
			ManifestErrors:   []model.ManifestIssue{{Document: "a.md"}},
			FailedDocuments:  []model.ManifestIssue{{Document: "b.md"}},
			UnusedParameters: []model.ParameterPath{model.Path("cosmo", "x")},
		},
		Documents:  2,
		Directives: 4,
	}

	result := NewScorer().Calculate(report)

	// rooting 3/4*40 = 30, coverage 0.75*20 = 15, binding 1/2*20 = 10,
	// resolution 3/(4+1)*20 = 12
	if result.Index != 67 {
		t.Errorf("expected index 67, got %d", result.Index)
	}

	for _, typ := range []model.SignalType{model.SignalRooting, model.SignalCoverage, model.SignalBinding, model.SignalResolution} {
		sig := findSignal(result, typ)
		if sig == nil {
			t.Fatalf("missing %s signal", typ)
		}
		if _, ok := sig.Data["formula"]; !ok {
			t.Errorf("%s signal has no formula", typ)
		}
	}

	if sig := findSignal(result, model.SignalRooting); sig.Severity != model.SeverityCritical {
		t.Errorf("expected critical rooting signal, got %s", sig.Severity)
	}
	if sig := findSignal(result, model.SignalUnusedParams); sig == nil || sig.Data["penalty"] != 0 {
		t.Error("expected an unused-parameter signal without penalty")
	}

	if c := findCount(t, result, "documents rendered"); c.N != 1 || c.M != 2 {
		t.Errorf("expected 1 of 2 documents rendered, got %d of %d", c.N, c.M)
	}
	if c := findCount(t, result, "derivation_steps coverage"); c.N != 1 || c.M != 2 {
		t.Errorf("expected 1 of 2 derivation_steps coverage, got %d of %d", c.N, c.M)
	}
}

func TestScorer_Calculate_EmptyReport(t *testing.T) {
	result := NewScorer().Calculate(&model.AuditReport{})

	if result.Index != 100 {
		t.Errorf("expected vacuous index 100, got %d", result.Index)
	}
	if result.Critical != 0 || result.Warnings != 0 {
		t.Errorf("expected no findings, got %d critical, %d warnings", result.Critical, result.Warnings)
	}
}

func TestScorer_Calculate_CountsFindings(t *testing.T) {
	report := &model.AuditReport{
		Categories: []model.Category{
			{Name: model.CategoryGraph, Findings: []model.Finding{{Severity: model.SeverityCritical}, {Severity: model.SeverityWarning}}},
			{Name: model.CategoryCoverage, Findings: []model.Finding{{Severity: model.SeverityWarning}, {Severity: model.SeverityInfo}}},
		},
	}

	result := NewScorer().Calculate(report)
	if result.Critical != 1 {
		t.Errorf("expected 1 critical, got %d", result.Critical)
	}
	if result.Warnings != 2 {
		t.Errorf("expected 2 warnings, got %d", result.Warnings)
	}
}
