package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/claimgraph/internal/params"
	"github.com/ppiankov/claimgraph/internal/pipeline"
	"github.com/ppiankov/claimgraph/internal/worker"
)

var (
	outDir        string
	manifestPath  string
	workers       int
	renderTimeout time.Duration
	noCache       bool
	filesFrom     string
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <doc-tree> <store> <registry>",
	Short: "Render parameter directives in a document tree",
	Long: `Render resolves every {category.name} directive in the documents under
<doc-tree> against the parameter store, and writes:
- each rendered document under --out-dir, mirroring the tree
- a manifest collection recording every directive outcome

Unresolvable directives are marked in the output and recorded in the
manifest; they never stop the run.

Exit codes:
  0  every directive resolved
  1  some directive failed or some document could not be rendered
  2  the store or registry failed to load (nothing written)

Example:
  claimgraph render docs/ params.yaml formulas.yaml
  claimgraph render docs/ params.toml formulas.json --out-dir site --workers 8
  claimgraph render docs/ params.yaml formulas.yaml --files-from changed.txt`,
	Args: cobra.ExactArgs(3),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&outDir, "out-dir", "rendered", "output directory for rendered documents")
	renderCmd.Flags().StringVar(&manifestPath, "manifest", "", "manifest output path (default: <out-dir>/manifest.json)")
	renderCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (default: render.workers)")
	renderCmd.Flags().DurationVar(&renderTimeout, "timeout", 0, "overall render deadline (default: render.timeout)")
	renderCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the render cache")
	renderCmd.Flags().StringVar(&filesFrom, "files-from", "", "render only the documents listed in this file (one per line, relative to <doc-tree>)")
}

func runRender(cmd *cobra.Command, args []string) error {
	tree, storePath, registryPath := args[0], args[1], args[2]
	stderr := cmd.ErrOrStderr()

	// Flags override configuration only when set
	if cmd.Flags().Changed("workers") {
		cfg.Render.Workers = workers
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Render.Timeout = renderTimeout
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	manifestOut := manifestPath
	if manifestOut == "" {
		manifestOut = filepath.Join(outDir, "manifest.json")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Render.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Render.Timeout)
		defer cancel()
	}

	banner(stderr, "claimgraph render")
	fmt.Fprintf(stderr, "  Documents:  %s\n", tree)
	fmt.Fprintf(stderr, "  Store:      %s\n", storePath)
	fmt.Fprintf(stderr, "  Registry:   %s\n", registryPath)
	fmt.Fprintf(stderr, "  Workers:    %d\n", cfg.Render.Workers)
	fmt.Fprintf(stderr, "  Output dir: %s\n", outDir)
	fmt.Fprintf(stderr, "  Cache:      %v\n", cfg.Cache.Enabled)
	fmt.Fprintf(stderr, "\n")

	loader := pipeline.NewLoader(0, logger)
	defs, err := loader.LoadDefinitions(ctx, storePath, registryPath, params.WithAliasTolerance(cfg.Audit.AliasTolerance))
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	if err := defs.Err(); err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	fmt.Fprintf(stderr, "✓ Loaded %d parameters and %d claims\n", defs.Store.Len(), defs.Registry.Len())

	p := pipeline.NewPipeline(defs.Store, defs.Registry, cfg, logger)
	processor := worker.NewBatchProcessor(p, cfg.Render.Workers)

	var results []*pipeline.DocumentResult
	if filesFrom != "" {
		results, err = processor.ProcessFile(ctx, tree, filesFrom)
		if err != nil {
			return fmt.Errorf("process file: %w", err)
		}
	} else {
		docs, err := pipeline.DiscoverDocuments(tree, cfg.Render.Extensions, outDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "⚙️  Rendering %d documents...\n\n", len(docs))
		results = processor.ProcessDocuments(ctx, docs)
	}

	if err := pipeline.WriteOutputs(outDir, results); err != nil {
		return err
	}
	collection := p.Collect(results)
	if err := pipeline.WriteJSON(manifestOut, collection); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.Debug("Render complete",
		zap.Int("documents", len(results)),
		zap.String("manifest", manifestOut))

	newRenderer(stderr).RenderRunSummary(stderr, results)
	fmt.Fprintf(stderr, "\n  Manifest:  %s\n\n", manifestOut)

	if !collection.OK() {
		return &ExitError{Code: 1}
	}
	return nil
}
