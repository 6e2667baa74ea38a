// Package marker inserts and removes sentinel-delimited code blocks in text.
//
// Everything here operates on in-memory strings. Anchor matching is syntax
// unaware: anchors are literal substrings and sentinels are whole lines.
// Sentinels are written as "//" line comments, so target files must be in a
// language that accepts them (TypeScript, JavaScript, Go and similar). Files
// with other comment syntax, such as CSS, YAML or .env, would be broken by the
// inserted sentinels.
package marker

import (
	"fmt"
	"strings"
)

// Marker is the begin/end sentinel pair for one module.
type Marker struct {
	Begin string
	End   string
}

// Detection describes where a module's marked block sits in a buffer.
type Detection struct {
	Found bool

	// BeginLine and EndLine are 1-based line numbers of the sentinels
	BeginLine int
	EndLine   int

	// InnerContent is the text strictly between the sentinel lines
	InnerContent string
}

// CreateMarker derives the sentinel pair for moduleName. The closing bracket
// keeps one module's sentinel from being a prefix of another's.
func CreateMarker(moduleName string) Marker {
	return Marker{
		Begin: fmt.Sprintf("// [graft:begin:%s]", moduleName),
		End:   fmt.Sprintf("// [graft:end:%s]", moduleName),
	}
}

// HasModule reports whether both sentinels appear anywhere in content.
// Ordering is not checked.
func HasModule(content, moduleName string) bool {
	m := CreateMarker(moduleName)
	return strings.Contains(content, m.Begin) && strings.Contains(content, m.End)
}

// DetectMarkers finds the first begin sentinel and the first end sentinel
// after it. An end sentinel that shows up before any begin makes the block
// undetectable.
func DetectMarkers(content, moduleName string) Detection {
	span, ok := findBlock(content, CreateMarker(moduleName))
	if !ok {
		return Detection{}
	}

	return Detection{
		Found:        true,
		BeginLine:    span.beginLine + 1,
		EndLine:      span.endLine + 1,
		InnerContent: strings.Join(span.lines[span.beginLine+1:span.endLine], "\n"),
	}
}

// InjectModule inserts code right after the first occurrence of anchor,
// wrapped in the module's sentinels and separated by a blank line.
func InjectModule(content, anchor, moduleName, code string) (string, error) {
	if HasModule(content, moduleName) {
		return "", &AlreadyInjectedError{Module: moduleName}
	}

	idx := strings.Index(content, anchor)
	if anchor == "" || idx == -1 {
		return "", &AnchorNotFoundError{Module: moduleName, Anchor: anchor}
	}

	m := CreateMarker(moduleName)
	code = strings.TrimSuffix(code, "\n")

	var b strings.Builder
	b.Grow(len(content) + len(code) + len(m.Begin) + len(m.End) + 5)

	at := idx + len(anchor)
	b.WriteString(content[:at])
	b.WriteString("\n\n")
	b.WriteString(m.Begin)
	b.WriteString("\n")
	b.WriteString(code)
	b.WriteString("\n")
	b.WriteString(m.End)
	b.WriteString("\n")
	b.WriteString(content[at:])

	return b.String(), nil
}

// RemoveModule deletes the module's first marked block, sentinels included,
// together with the blank line the injector placed before it. When the block
// is followed by a line break or the end of the buffer, the line break the
// injector added after the anchor goes too, so removal restores the exact
// pre-injection bytes.
func RemoveModule(content, moduleName string) (string, error) {
	span, ok := findBlock(content, CreateMarker(moduleName))
	if !ok {
		return "", &ModuleNotFoundError{Module: moduleName}
	}

	start := span.beginOffset
	if strings.HasSuffix(content[:start], "\n\n") {
		rest := content[span.endOffset:]
		if rest == "" || strings.HasPrefix(rest, "\n") || strings.HasPrefix(rest, "\r\n") {
			start -= 2
		} else {
			start--
		}
	}

	out := content[:start] + content[span.endOffset:]
	if out == content {
		return "", &ModuleNotFoundError{Module: moduleName}
	}
	return out, nil
}

type blockSpan struct {
	lines []string

	// zero-based line indexes of the sentinels
	beginLine int
	endLine   int

	// byte offsets: start of the begin line, just past the end line's newline
	beginOffset int
	endOffset   int
}

func findBlock(content string, m Marker) (blockSpan, bool) {
	lines := strings.Split(content, "\n")

	span := blockSpan{lines: lines, beginLine: -1, endLine: -1}
	offset := 0
	for i, line := range lines {
		next := offset + len(line) + 1
		if next > len(content) {
			next = len(content)
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case span.beginLine == -1 && trimmed == m.End:
			return blockSpan{}, false
		case span.beginLine == -1 && trimmed == m.Begin:
			span.beginLine = i
			span.beginOffset = offset
		case span.beginLine != -1 && trimmed == m.End:
			span.endLine = i
			span.endOffset = next
			return span, true
		}

		offset = next
	}

	return blockSpan{}, false
}
