package extract

import (
	"fmt"
	"strings"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Span is one directive candidate found in a document
type Span struct {
	Start     int // Byte offset of the opening brace
	End       int // Byte offset just past the directive text
	Directive model.Directive
	Err       *model.ResolutionError // Set when the candidate is malformed
}

// Malformed reports whether the candidate failed to parse
func (s Span) Malformed() bool { return s.Err != nil }

// Scan finds every directive candidate in src, in document order.
//
// A candidate is a '{' immediately followed by a category.name path and
// then '}' or ','. A '{' preceded by '\' or directly following a \command
// name (\text{e.g}, \mathrm{d.x}) is an argument group, not a candidate.
// Everything else is opaque text.
// Candidates whose options fail to parse are returned with Err set so the
// caller can record them instead of dropping them.
func Scan(document string, src []byte) []Span {
	var spans []Span

	line, lineStart := 1, 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\n':
			line++
			lineStart = i + 1
			continue
		case '{':
		default:
			continue
		}

		if escaped(src, i) {
			continue
		}

		span, ok := scanCandidate(src, i)
		if !ok {
			continue
		}
		span.Directive.Location = model.Location{
			Document: document,
			Offset:   i,
			Line:     line,
			Column:   i - lineStart + 1,
		}
		spans = append(spans, span)

		// Directives never span lines, so line bookkeeping stays valid
		i = span.End - 1
	}

	return spans
}

// escaped reports whether the brace at i is escaped or opens the argument of
// a \command such as \text
func escaped(src []byte, i int) bool {
	j := i
	for j > 0 && isLetter(src[j-1]) {
		j--
	}
	return j > 0 && src[j-1] == '\\'
}

// scanCandidate parses the candidate whose opening brace is at start
func scanCandidate(src []byte, start int) (Span, bool) {
	j := start + 1

	catEnd := scanIdent(src, j, false)
	if catEnd == j || catEnd >= len(src) || src[catEnd] != '.' {
		return Span{}, false
	}
	nameStart := catEnd + 1
	nameEnd := scanIdent(src, nameStart, true)
	if nameEnd == nameStart || src[nameEnd-1] == '.' || nameEnd >= len(src) {
		return Span{}, false
	}

	path := model.Path(string(src[j:catEnd]), string(src[nameStart:nameEnd]))
	span := Span{
		Start: start,
		Directive: model.Directive{
			Path:  path,
			Field: model.FieldValue,
		},
	}

	switch src[nameEnd] {
	case '}':
		span.End = nameEnd + 1
		span.Directive.Raw = string(src[start:span.End])
		return span, true
	case ',':
	default:
		return Span{}, false
	}

	// Options run to the first closing brace on the same line
	closeAt := -1
	for k := nameEnd + 1; k < len(src) && src[k] != '\n'; k++ {
		if src[k] == '}' {
			closeAt = k
			break
		}
	}
	if closeAt < 0 {
		end := nameEnd + 1
		for end < len(src) && src[end] != '\n' {
			end++
		}
		span.End = end
		span.Directive.Raw = string(src[start:end])
		span.Err = malformed("missing closing '}'")
		return span, true
	}

	span.End = closeAt + 1
	span.Directive.Raw = string(src[start:span.End])
	if err := parseOptions(&span.Directive, string(src[nameEnd+1:closeAt])); err != nil {
		span.Err = malformed(err.Error())
	}
	return span, true
}

// scanIdent returns the end of the identifier starting at i, or i if none.
// Names may contain dots; categories may not.
func scanIdent(src []byte, i int, allowDot bool) int {
	if i >= len(src) || !isIdentStart(src[i]) {
		return i
	}
	j := i + 1
	for j < len(src) && (isIdentStart(src[j]) || isDigit(src[j]) || src[j] == '-' || (allowDot && src[j] == '.')) {
		j++
	}
	return j
}

func isIdentStart(c byte) bool {
	return c == '_' || isLetter(c)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parseOptions applies the comma-separated key=value list to d
func parseOptions(d *model.Directive, opts string) error {
	seen := make(map[string]bool)

	for _, item := range strings.Split(opts, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return fmt.Errorf("empty option")
		}

		key, value, ok := strings.Cut(item, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || value == "" {
			return fmt.Errorf("option %q: want key=value", item)
		}
		if seen[key] {
			return fmt.Errorf("duplicate option %q", key)
		}
		seen[key] = true

		switch key {
		case "format":
			hint, err := model.ParseFormatHint(value)
			if err != nil {
				return err
			}
			d.FormatOverride = &hint
		case "tooltip":
			d.TooltipClaimID = value
		case "field":
			switch f := model.DirectiveField(value); f {
			case model.FieldValue, model.FieldExperimental, model.FieldUncertainty:
				d.Field = f
			default:
				return fmt.Errorf("unknown field %q (want value, experimental or uncertainty)", value)
			}
		case "unit":
			switch value {
			case "true":
				d.ShowUnit = true
			case "false":
				d.ShowUnit = false
			default:
				return fmt.Errorf("unit must be true or false, got %q", value)
			}
		default:
			return fmt.Errorf("unknown option %q", key)
		}
	}

	return nil
}

func malformed(msg string) *model.ResolutionError {
	return &model.ResolutionError{Kind: model.ErrKindMalformed, Message: msg}
}
