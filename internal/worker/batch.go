package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/claimgraph/internal/pipeline"
)

// Renderer defines the interface for rendering one document
type Renderer interface {
	RenderDocument(ctx context.Context, doc pipeline.Document) *pipeline.DocumentResult
}

// RenderJob represents one document render
type RenderJob struct {
	Index    int
	Doc      pipeline.Document
	Renderer Renderer
}

// Execute executes the render job
func (j *RenderJob) Execute(ctx context.Context) Result {
	result := j.Renderer.RenderDocument(ctx, j.Doc)
	if result == nil {
		result = pipeline.FailedResult(j.Doc, errors.New("renderer returned no result"))
	}
	return &RenderResult{Index: j.Index, DocumentResult: result}
}

// Recover turns a panic during rendering into a failed manifest
func (j *RenderJob) Recover(v any) Result {
	return &RenderResult{
		Index:          j.Index,
		DocumentResult: pipeline.FailedResult(j.Doc, fmt.Errorf("render panicked: %v", v)),
	}
}

// RenderResult represents the result of a render job
type RenderResult struct {
	Index int
	*pipeline.DocumentResult
}

// GetError returns the error from the render result
func (r *RenderResult) GetError() error {
	return r.Err
}

// BatchProcessor renders multiple documents concurrently
type BatchProcessor struct {
	renderer    Renderer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(renderer Renderer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		renderer:    renderer,
		concurrency: concurrency,
	}
}

// ProcessDocuments renders every document and returns one result per input,
// in input order. Documents not reached before ctx is done get a failed
// manifest.
func (b *BatchProcessor) ProcessDocuments(ctx context.Context, docs []pipeline.Document) []*pipeline.DocumentResult {
	if len(docs) == 0 {
		return []*pipeline.DocumentResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, doc := range docs {
		job := &RenderJob{
			Index:    i,
			Doc:      doc,
			Renderer: b.renderer,
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()

	ordered := make([]*pipeline.DocumentResult, len(docs))
	for _, result := range results {
		if r, ok := result.(*RenderResult); ok {
			ordered[r.Index] = r.DocumentResult
		}
	}

	for i, r := range ordered {
		if r != nil {
			continue
		}
		reason := errors.New("not rendered")
		if err := ctx.Err(); err != nil {
			reason = fmt.Errorf("not rendered: %w", err)
		}
		ordered[i] = pipeline.FailedResult(docs[i], reason)
	}

	return ordered
}

// ProcessFile reads document paths from a file and renders them
// concurrently. Relative paths are resolved against root and keep their
// listed form as the document name; absolute paths are named relative to
// root. Entries that resolve outside root fail without being read.
func (b *BatchProcessor) ProcessFile(ctx context.Context, root, filePath string) ([]*pipeline.DocumentResult, error) {
	paths, err := ReadDocumentList(filePath)
	if err != nil {
		return nil, fmt.Errorf("read document list: %w", err)
	}

	results := make([]*pipeline.DocumentResult, len(paths))
	docs := make([]pipeline.Document, 0, len(paths))
	slots := make([]int, 0, len(paths))
	for i, p := range paths {
		doc := listedDocument(root, p)
		if err := pipeline.CheckOutputName(doc.Name); err != nil {
			results[i] = pipeline.FailedResult(doc, err)
			continue
		}
		docs = append(docs, doc)
		slots = append(slots, i)
	}

	for j, res := range b.ProcessDocuments(ctx, docs) {
		results[slots[j]] = res
	}
	return results, nil
}

func listedDocument(root, p string) pipeline.Document {
	if !filepath.IsAbs(p) {
		return pipeline.Document{Path: filepath.Join(root, p), Name: filepath.ToSlash(filepath.Clean(p))}
	}
	name := p
	if rel, err := filepath.Rel(root, p); err == nil {
		name = rel
	}
	return pipeline.Document{Path: p, Name: filepath.ToSlash(filepath.Clean(name))}
}

// ReadDocumentList reads document paths from a file (one per line)
func ReadDocumentList(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
