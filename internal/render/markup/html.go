package markup

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/claimgraph/internal/model"
)

// HTMLAdapter wraps values that carry a tooltip in a claim-param span
type HTMLAdapter struct {
	tooltips bool
}

// NewHTMLAdapter creates the HTML adapter
func NewHTMLAdapter(tooltips bool) *HTMLAdapter {
	return &HTMLAdapter{tooltips: tooltips}
}

// Name returns the adapter name
func (a *HTMLAdapter) Name() string {
	return "html"
}

// CanHandle checks for .html and .htm documents
func (a *HTMLAdapter) CanHandle(document string) bool {
	return hasExt(document, ".html", ".htm")
}

// Begin tokenizes src to find where element markup cannot be inserted
func (a *HTMLAdapter) Begin(src []byte) Writer {
	return &htmlWriter{tooltips: a.tooltips, regions: scanRegions(src)}
}

type regionKind int

const (
	regionTag     regionKind = iota + 1 // Inside a tag, comment or doctype
	regionRawText                       // Content of script, style, textarea, ...
)

type region struct {
	start, end int
	kind       regionKind
}

// Elements whose content the tokenizer treats as raw text
var rawTextElements = map[string]bool{
	"script":    true,
	"style":     true,
	"textarea":  true,
	"title":     true,
	"xmp":       true,
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"noscript":  true,
	"plaintext": true,
}

// scanRegions returns the non-text regions of src in offset order
func scanRegions(src []byte) []region {
	z := html.NewTokenizer(bytes.NewReader(src))

	var regions []region
	offset := 0
	inRawText := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		n := len(z.Raw())

		switch tt {
		case html.TextToken:
			if inRawText {
				regions = append(regions, region{offset, offset + n, regionRawText})
			}
		case html.StartTagToken:
			regions = append(regions, region{offset, offset + n, regionTag})
			name, _ := z.TagName()
			inRawText = rawTextElements[string(name)]
		case html.EndTagToken:
			regions = append(regions, region{offset, offset + n, regionTag})
			inRawText = false
		default:
			regions = append(regions, region{offset, offset + n, regionTag})
		}

		offset += n
	}

	return regions
}

type htmlWriter struct {
	tooltips bool
	regions  []region
}

// kindAt returns the region kind containing offset, or 0 for plain text
func (w *htmlWriter) kindAt(offset int) regionKind {
	i := sort.Search(len(w.regions), func(i int) bool { return w.regions[i].end > offset })
	if i < len(w.regions) && w.regions[i].start <= offset {
		return w.regions[i].kind
	}
	return 0
}

func (w *htmlWriter) Value(offset int, text string, tip *model.Tooltip) string {
	switch w.kindAt(offset) {
	case regionRawText:
		return text
	case regionTag:
		return html.EscapeString(text)
	}

	escaped := html.EscapeString(text)
	if tip == nil || !w.tooltips {
		return escaped
	}

	var b strings.Builder
	b.WriteString(`<span class="claim-param" data-claim="`)
	b.WriteString(html.EscapeString(tip.ClaimID))
	b.WriteString(`" title="`)
	b.WriteString(html.EscapeString(Title(tip)))
	b.WriteString(`">`)
	b.WriteString(escaped)
	b.WriteString(`</span>`)
	return b.String()
}

func (w *htmlWriter) Unresolved(offset int, raw string) string {
	if w.kindAt(offset) == regionRawText {
		return Placeholder(raw)
	}
	return html.EscapeString(Placeholder(raw))
}

// Title is the one-line tooltip text for a claim
func Title(tip *model.Tooltip) string {
	parts := []string{tip.ClaimID + " (" + string(tip.Tier) + ")"}
	switch {
	case tip.PlainText != "":
		parts = append(parts, tip.PlainText)
	case tip.Symbolic != "":
		parts = append(parts, tip.Symbolic)
	}
	for _, c := range tip.Citations {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " | ")
}
