package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/params"
	"github.com/ppiankov/claimgraph/internal/pipeline"
	"github.com/ppiankov/claimgraph/internal/registry"
	"github.com/ppiankov/claimgraph/internal/validate"
)

var (
	auditJSON string
	auditMD   string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <store> <registry> [<manifest>...]",
	Short: "Audit the store, the registry and render manifests",
	Long: `Audit cross-checks the parameter store, the formula registry and any
render manifests:
- every claim's derivation is rooted in established axioms, without cycles
- required metadata coverage (derivation steps, verification refs, bindings)
- every bound parameter exists in the store
- every manifest directive resolved, and still resolves

The JSON report is always written. Definition files that fail to load are
reported in the ingestion category instead of aborting the audit.

Exit codes:
  0  the report passes (no critical findings)
  1  the report fails

Example:
  claimgraph audit params.yaml formulas.yaml
  claimgraph audit params.yaml formulas.yaml rendered/manifest.json --md audit.md`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditJSON, "json", "", "output JSON path (default: output.report_json)")
	auditCmd.Flags().StringVar(&auditMD, "md", "", "output Markdown path (optional)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	storePath, registryPath, manifestPaths := args[0], args[1], args[2:]
	stderr := cmd.ErrOrStderr()

	if auditJSON != "" {
		cfg.Output.ReportJSON = auditJSON
	}
	if auditMD != "" {
		cfg.Output.ReportMD = auditMD
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loader := pipeline.NewLoader(0, logger)
	defs, err := loader.LoadDefinitions(ctx, storePath, registryPath, params.WithAliasTolerance(cfg.Audit.AliasTolerance))
	if err != nil {
		return err
	}

	manifests, err := loader.LoadManifests(manifestPaths)
	if err != nil {
		return err
	}

	report, err := validate.Audit(defs.Store, defs.Registry, manifests, validate.Options{
		RequireFullCoverage: cfg.Audit.RequireFullCoverage,
		Ingestion:           ingestionProblems(defs),
	})
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	renderer := newRenderer(stderr)
	if err := renderer.RenderJSON(report, cfg.Output.ReportJSON); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if cfg.Output.ReportMD != "" {
		if err := renderer.RenderMarkdown(report, cfg.Output.ReportMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}

	logger.Debug("Audit complete",
		zap.String("status", string(report.Status)),
		zap.Int("index", report.Summary.Index),
		zap.Int("manifests", len(manifests)))

	renderer.RenderSummary(stderr, report)
	fmt.Fprintf(stderr, "\n  Report:    %s\n", cfg.Output.ReportJSON)
	if cfg.Output.ReportMD != "" {
		fmt.Fprintf(stderr, "  Markdown:  %s\n", cfg.Output.ReportMD)
	}
	fmt.Fprintf(stderr, "\n")

	if report.Status != model.AuditPass {
		return &ExitError{Code: 1}
	}
	return nil
}

// ingestionProblems collects load problems not already reported as registry
// rejections
func ingestionProblems(defs *pipeline.Definitions) []model.Problem {
	problems := problemsOf(defs.StoreErr)

	rejected := make(map[string]bool)
	if defs.Registry != nil {
		for _, r := range defs.Registry.Rejections() {
			rejected[r.ID] = true
		}
	}
	for _, p := range problemsOf(defs.RegistryErr) {
		if rejected[p.Item] && isRegistrationError(p.Err) {
			continue
		}
		problems = append(problems, p)
	}
	return problems
}

func problemsOf(err error) []model.Problem {
	if err == nil {
		return nil
	}
	var ie *model.IngestionError
	if errors.As(err, &ie) {
		return ie.Problems
	}
	return []model.Problem{{Item: "input", Message: err.Error(), Err: err}}
}

func isRegistrationError(err error) bool {
	var gie *registry.GraphIntegrityError
	var te *registry.TierError
	return errors.As(err, &gie) || errors.As(err, &te)
}
