package score

import (
	"fmt"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Formula is the integrity index formula reported with every summary
const Formula = "rooting + metadata_coverage + parameter_binding + directive_resolution"

// Scorer calculates the integrity index and its itemized counts
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate summarizes an audit report. Every component of the index comes
// with a signal carrying its inputs and formula.
func (s *Scorer) Calculate(report *model.AuditReport) model.Summary {
	var signals []model.Signal

	// 1. Rooting (0-40 points)
	rootingScore, rooted, rootingSignal := s.calculateRooting(report.Claims)
	signals = append(signals, rootingSignal)

	// 2. Metadata coverage (0-20 points)
	coverageScore, coverageSignal := s.calculateCoverage(report.Coverage)
	signals = append(signals, coverageSignal)

	// 3. Parameter binding (0-20 points)
	bindingScore, bound, bindingSignal := s.calculateBinding(report.CrossRefs.BoundParams)
	signals = append(signals, bindingSignal)

	// 4. Directive resolution (0-20 points)
	resolutionScore, directives, resolutionSignal := s.calculateResolution(report)
	signals = append(signals, resolutionSignal)

	// 5. Unused parameters (informational, no points)
	if n := len(report.CrossRefs.UnusedParameters); n > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalUnusedParams,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d parameters are neither bound nor rendered", n),
			Data:        map[string]interface{}{"unused": n, "penalty": 0},
		})
	}

	summary := model.Summary{
		Index:   rootingScore + coverageScore + bindingScore + resolutionScore,
		Formula: Formula,
		Signals: signals,
	}

	summary.Counts = append(summary.Counts, model.Count{Label: "claims rooted", N: rooted, M: len(report.Claims)})
	for _, fc := range report.Coverage {
		summary.Counts = append(summary.Counts, model.Count{Label: fc.Field + " coverage", N: fc.Covered, M: fc.Total})
	}
	summary.Counts = append(summary.Counts,
		model.Count{Label: "bound params resolved", N: bound, M: len(report.CrossRefs.BoundParams)},
		model.Count{Label: "directives resolved", N: directives.resolved, M: directives.total},
		model.Count{Label: "documents rendered", N: directives.documents - directives.failed, M: directives.documents},
	)

	for _, c := range report.Categories {
		for _, f := range c.Findings {
			switch f.Severity {
			case model.SeverityCritical:
				summary.Critical++
			case model.SeverityWarning:
				summary.Warnings++
			}
		}
	}

	return summary
}

// calculateRooting scores the share of claims that reach an axiom (0-40 points)
func (s *Scorer) calculateRooting(claims []model.ClaimStatus) (int, int, model.Signal) {
	rooted, cyclic := 0, 0
	for _, c := range claims {
		switch c.Status {
		case model.RootRooted:
			rooted++
		case model.RootCyclic:
			cyclic++
		}
	}

	if len(claims) == 0 {
		return 40, 0, model.Signal{
			Type:        model.SignalRooting,
			Severity:    model.SeverityInfo,
			Description: "No claims registered",
			Data:        map[string]interface{}{"claims": 0, "score": 40},
		}
	}

	ratio := float64(rooted) / float64(len(claims))
	score := int(ratio * 40)

	severity := model.SeverityInfo
	if rooted < len(claims) {
		severity = model.SeverityCritical
	}

	return score, rooted, model.Signal{
		Type:        model.SignalRooting,
		Severity:    severity,
		Description: fmt.Sprintf("Rooted claims: %d of %d", rooted, len(claims)),
		Data: map[string]interface{}{
			"rooted":  rooted,
			"cyclic":  cyclic,
			"claims":  len(claims),
			"ratio":   ratio,
			"score":   score,
			"formula": "rooted / claims * 40",
		},
	}
}

// calculateCoverage scores the mean metadata coverage ratio (0-20 points)
func (s *Scorer) calculateCoverage(coverage []model.FieldCoverage) (int, model.Signal) {
	if len(coverage) == 0 {
		return 20, model.Signal{
			Type:        model.SignalCoverage,
			Severity:    model.SeverityInfo,
			Description: "No coverage fields measured",
			Data:        map[string]interface{}{"fields": 0, "score": 20},
		}
	}

	sum := 0.0
	ratios := make(map[string]interface{}, len(coverage))
	gaps := 0
	for _, fc := range coverage {
		sum += fc.Ratio
		ratios[fc.Field] = fc.Ratio
		if fc.Covered < fc.Total {
			gaps++
		}
	}
	mean := sum / float64(len(coverage))
	score := int(mean * 20)

	severity := model.SeverityInfo
	if gaps > 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Mean metadata coverage: %.1f%%", mean*100),
		Data: map[string]interface{}{
			"ratios":  ratios,
			"mean":    mean,
			"score":   score,
			"formula": "mean(field_ratio) * 20",
		},
	}
}

// calculateBinding scores bound parameters that resolve in the store (0-20 points)
func (s *Scorer) calculateBinding(checks []model.BoundParamCheck) (int, int, model.Signal) {
	resolved := 0
	for _, c := range checks {
		if c.Resolved {
			resolved++
		}
	}

	if len(checks) == 0 {
		return 20, 0, model.Signal{
			Type:        model.SignalBinding,
			Severity:    model.SeverityInfo,
			Description: "No bound parameters declared",
			Data:        map[string]interface{}{"bound": 0, "score": 20},
		}
	}

	ratio := float64(resolved) / float64(len(checks))
	score := int(ratio * 20)

	severity := model.SeverityInfo
	if resolved < len(checks) {
		severity = model.SeverityCritical
	}

	return score, resolved, model.Signal{
		Type:        model.SignalBinding,
		Severity:    severity,
		Description: fmt.Sprintf("Bound parameters resolved: %d of %d", resolved, len(checks)),
		Data: map[string]interface{}{
			"resolved": resolved,
			"bound":    len(checks),
			"ratio":    ratio,
			"score":    score,
			"formula":  "resolved / bound * 20",
		},
	}
}

type directiveCounts struct {
	resolved  int
	total     int
	documents int
	failed    int
}

// calculateResolution scores directives that resolved in the audited
// manifests (0-20 points)
func (s *Scorer) calculateResolution(report *model.AuditReport) (int, directiveCounts, model.Signal) {
	xr := report.CrossRefs
	counts := directiveCounts{
		documents: report.Documents,
		failed:    len(xr.FailedDocuments),
		total:     report.Directives,
	}
	counts.resolved = counts.total - len(xr.ManifestErrors)

	if counts.total == 0 && counts.failed == 0 {
		return 20, counts, model.Signal{
			Type:        model.SignalResolution,
			Severity:    model.SeverityInfo,
			Description: "No directives audited",
			Data:        map[string]interface{}{"directives": 0, "score": 20},
		}
	}

	// Failed documents count as unresolved units
	units := counts.total + counts.failed
	ratio := float64(counts.resolved) / float64(units)
	score := int(ratio * 20)

	severity := model.SeverityInfo
	if counts.resolved < units {
		severity = model.SeverityCritical
	}

	return score, counts, model.Signal{
		Type:        model.SignalResolution,
		Severity:    severity,
		Description: fmt.Sprintf("Directives resolved: %d of %d", counts.resolved, counts.total),
		Data: map[string]interface{}{
			"resolved":         counts.resolved,
			"directives":       counts.total,
			"failed_documents": counts.failed,
			"ratio":            ratio,
			"score":            score,
			"formula":          "resolved / (directives + failed_documents) * 20",
		},
	}
}
