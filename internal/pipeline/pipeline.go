package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/params"
	"github.com/ppiankov/claimgraph/internal/registry"
	"github.com/ppiankov/claimgraph/internal/render"
)

// Pipeline renders documents against one frozen store and registry
type Pipeline struct {
	loader  *Loader
	engine  *render.Engine
	cache   *cache.RenderCache
	logger  *zap.Logger
	options string

	storeFingerprint    string
	registryFingerprint string
}

// NewPipeline creates a pipeline. A nil logger discards log output.
func NewPipeline(store *params.Store, reg *registry.Registry, cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := render.Options{TooltipMarkup: cfg.Render.TooltipMarkup}

	var claims render.ClaimSource
	if reg != nil {
		claims = reg
	}

	return &Pipeline{
		loader:  NewLoader(0, logger),
		engine:  render.NewEngine(store, claims, opts),
		cache:   cache.NewRenderCache(cache.New(cfg.Cache), cfg.Cache.TTL),
		logger:  logger,
		options: fmt.Sprintf("tooltip_markup=%t", opts.TooltipMarkup),

		storeFingerprint:    store.Fingerprint(),
		registryFingerprint: registryFingerprint(reg),
	}
}

// DocumentResult is the outcome of rendering one document
type DocumentResult struct {
	Document Document
	Output   []byte
	Manifest model.Manifest
	Cached   bool
	Err      error // Set when the document could not be rendered at all
}

// FailedResult is the result of a document that produced no output
func FailedResult(doc Document, err error) *DocumentResult {
	return &DocumentResult{
		Document: doc,
		Manifest: model.Manifest{
			Document:      doc.Name,
			Failed:        true,
			FailureReason: err.Error(),
			Entries:       make([]model.ManifestEntry, 0),
		},
		Err: err,
	}
}

// RenderDocument reads and renders one document. Directive failures stay in
// the manifest; only an unreadable document yields a failed result.
func (p *Pipeline) RenderDocument(ctx context.Context, doc Document) *DocumentResult {
	if err := ctx.Err(); err != nil {
		return FailedResult(doc, fmt.Errorf("not rendered: %w", err))
	}

	src, err := p.loader.ReadFile(doc.Path)
	if err != nil {
		p.logger.Warn("Document unreadable", zap.String("document", doc.Name), zap.Error(err))
		return FailedResult(doc, err)
	}

	key := cache.RenderKey(cache.KeyInput{
		Document:            doc.Name,
		Content:             src,
		StoreFingerprint:    p.storeFingerprint,
		RegistryFingerprint: p.registryFingerprint,
		Options:             p.options,
	})
	if entry, ok := p.cache.Get(key); ok {
		p.logger.Debug("Render cache hit", zap.String("document", doc.Name))
		return &DocumentResult{Document: doc, Output: entry.Output, Manifest: entry.Manifest, Cached: true}
	}

	out, manifest := p.engine.Render(doc.Name, src)
	if err := p.cache.Put(key, cache.Entry{Output: out, Manifest: manifest}); err != nil {
		p.logger.Warn("Render cache write failed", zap.String("document", doc.Name), zap.Error(err))
	}

	p.logger.Debug("Rendered document",
		zap.String("document", doc.Name),
		zap.Int("directives", len(manifest.Entries)),
		zap.Int("errors", manifest.ErrorCount()))

	return &DocumentResult{Document: doc, Output: out, Manifest: manifest}
}

func registryFingerprint(reg *registry.Registry) string {
	if reg == nil {
		return ""
	}
	return reg.Fingerprint()
}

// Collect concatenates the manifests of a run in result order
func (p *Pipeline) Collect(results []*DocumentResult) model.ManifestCollection {
	c := model.ManifestCollection{
		StoreFingerprint:    p.storeFingerprint,
		RegistryFingerprint: p.registryFingerprint,
		Manifests:           make([]model.Manifest, 0, len(results)),
	}
	for _, r := range results {
		c.Manifests = append(c.Manifests, r.Manifest)
	}
	return c
}

// CheckOutputName rejects document names that would resolve outside the
// output directory, such as absolute or ../ paths
func CheckOutputName(name string) error {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return fmt.Errorf("document name %q resolves outside the output directory", name)
	}
	return nil
}

// WriteOutputs writes every rendered document under outDir, mirroring the
// document tree. Failed documents are skipped. A document whose name escapes
// outDir is not written and its result becomes a failed one.
func WriteOutputs(outDir string, results []*DocumentResult) error {
	for i, r := range results {
		if r.Manifest.Failed {
			continue
		}
		if err := CheckOutputName(r.Document.Name); err != nil {
			results[i] = FailedResult(r.Document, err)
			continue
		}
		target := filepath.Join(outDir, filepath.FromSlash(r.Document.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(target, r.Output, 0644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	}
	return nil
}

// WriteJSON writes v as indented JSON, creating parent directories
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
