package markup

import (
	"path/filepath"
	"strings"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Adapter decides how resolved values are written into one kind of document
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter can handle the given document path
	CanHandle(document string) bool

	// Begin prepares a writer for one document source
	Begin(src []byte) Writer
}

// Writer produces the replacement text for directives of one document.
// Offsets are byte offsets of the directive's opening brace.
type Writer interface {
	// Value returns the text for a resolved directive. tip may be nil.
	Value(offset int, text string, tip *model.Tooltip) string

	// Unresolved returns the visible placeholder for a failed directive
	Unresolved(offset int, raw string) string
}

// Placeholder is the visible marker left where a directive failed
func Placeholder(raw string) string {
	return "⟦unresolved:" + raw + "⟧"
}

// Registry manages document adapters
type Registry struct {
	adapters []Adapter
	fallback Adapter
}

// NewRegistry creates a registry with the built-in adapters. tooltips
// enables inline tooltip markup where the document kind supports it.
func NewRegistry(tooltips bool) *Registry {
	registry := &Registry{}

	// Register built-in adapters
	registry.Register(NewHTMLAdapter(tooltips))

	// Plain text is the fallback
	registry.fallback = NewPlainAdapter()

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// Find returns the first adapter that handles document, or the fallback
func (r *Registry) Find(document string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(document) {
			return adapter
		}
	}
	return r.fallback
}

// hasExt reports whether document ends in one of exts (case-insensitive)
func hasExt(document string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(document))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
