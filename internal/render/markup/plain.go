package markup

import "github.com/ppiankov/claimgraph/internal/model"

// PlainAdapter writes values verbatim. Tooltips stay in the manifest only.
type PlainAdapter struct{}

// NewPlainAdapter creates the fallback adapter
func NewPlainAdapter() *PlainAdapter {
	return &PlainAdapter{}
}

// Name returns the adapter name
func (a *PlainAdapter) Name() string {
	return "plain"
}

// CanHandle always returns true (fallback adapter)
func (a *PlainAdapter) CanHandle(document string) bool {
	return true
}

// Begin returns the verbatim writer
func (a *PlainAdapter) Begin(src []byte) Writer {
	return plainWriter{}
}

type plainWriter struct{}

func (plainWriter) Value(_ int, text string, _ *model.Tooltip) string { return text }

func (plainWriter) Unresolved(_ int, raw string) string { return Placeholder(raw) }
