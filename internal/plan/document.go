// Package plan implements the plan file data model. A plan file is the
// durable checkpoint of a workflow run: a markdown document with an opaque
// frontmatter region, second-level sections, and an Acceptance Criteria
// checklist that records completion state.
package plan

import (
	"fmt"
	"os"
	"strings"
)

// Document is a parsed plan file. Frontmatter and section bodies hold the
// original text verbatim so that serialization round-trips byte for byte.
type Document struct {
	// Frontmatter is everything before the first second-level heading,
	// including the top-level title line if present.
	Frontmatter string
	Sections    []Section
}

// Section is one "## " section of a plan document.
type Section struct {
	// HeadingLine is the raw heading line including the "## " marker and
	// trailing newline.
	HeadingLine string
	// Heading is the trimmed heading text.
	Heading string
	// Body is the raw section body up to the next heading or EOF.
	Body string
}

// Parse splits raw plan text into a frontmatter region and sections. The
// frontmatter region is everything before the first line starting with
// "## "; each section runs from its heading line to the next one or EOF.
func Parse(raw string) *Document {
	lines := splitAfterNewlines(raw)

	// First pass: find heading line boundaries.
	var headingIdx []int
	for i, line := range lines {
		if isSectionHeading(line) {
			headingIdx = append(headingIdx, i)
		}
	}

	doc := &Document{}
	if len(headingIdx) == 0 {
		doc.Frontmatter = raw
		return doc
	}

	// Second pass: slice.
	doc.Frontmatter = strings.Join(lines[:headingIdx[0]], "")
	for n, start := range headingIdx {
		end := len(lines)
		if n+1 < len(headingIdx) {
			end = headingIdx[n+1]
		}
		headingLine := lines[start]
		doc.Sections = append(doc.Sections, Section{
			HeadingLine: headingLine,
			Heading:     headingText(headingLine),
			Body:        strings.Join(lines[start+1:end], ""),
		})
	}
	return doc
}

// Load reads and parses a plan file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(string(data)), nil
}

// String serializes the document. An unmodified document reproduces its
// input exactly.
func (d *Document) String() string {
	var b strings.Builder
	b.WriteString(d.Frontmatter)
	for _, s := range d.Sections {
		b.WriteString(s.HeadingLine)
		b.WriteString(s.Body)
	}
	return b.String()
}

// Write persists the document to path.
func (d *Document) Write(path string) error {
	if err := os.WriteFile(path, []byte(d.String()), 0o644); err != nil {
		return fmt.Errorf("write plan file: %w", err)
	}
	return nil
}

// Title returns the text of the first top-level "# " heading in the
// frontmatter, or empty if none exists.
func (d *Document) Title() string {
	for _, line := range splitAfterNewlines(d.Frontmatter) {
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Section returns the section whose heading matches name, compared
// case-insensitively with interior whitespace collapsed. Position is not
// considered; the first match wins.
func (d *Document) Section(name string) *Section {
	want := normalizeHeading(name)
	for i := range d.Sections {
		if normalizeHeading(d.Sections[i].Heading) == want {
			return &d.Sections[i]
		}
	}
	return nil
}

// IsEmpty reports whether the section body contains only whitespace after
// HTML-comment markers are stripped.
func (s *Section) IsEmpty() bool {
	body := s.Body
	for {
		start := strings.Index(body, "<!--")
		if start == -1 {
			break
		}
		end := strings.Index(body[start:], "-->")
		if end == -1 {
			body = body[:start]
			break
		}
		body = body[:start] + body[start+end+len("-->"):]
	}
	return strings.TrimSpace(body) == ""
}

func isSectionHeading(line string) bool {
	return strings.HasPrefix(line, "## ")
}

func headingText(line string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimRight(line, "\r\n"), "## "))
}

func normalizeHeading(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// splitAfterNewlines splits s into lines, each retaining its trailing
// newline, so that joining with "" reproduces s exactly.
func splitAfterNewlines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for {
		i := strings.IndexByte(s, '\n')
		if i == -1 {
			lines = append(lines, s)
			return lines
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
		if s == "" {
			return lines
		}
	}
}
