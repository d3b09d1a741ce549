// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package paragraph reads and writes the RFC 822-like control-file format
// used for all port, package, and status metadata.
package paragraph

import (
	"fmt"
	"strings"
)

// Paragraph is an ordered set of unique Name: value fields.
type Paragraph struct {
	values map[string]string
	order  []string
}

// ParseError reports a malformed control file.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v:%v: %v", e.Path, e.Line, e.Reason)
}

// Get returns the value of a field, or "" if absent.
func (p *Paragraph) Get(name string) string {
	return p.values[name]
}

// Has reports whether the field is present.
func (p *Paragraph) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Set adds or replaces a field, preserving first-seen order.
func (p *Paragraph) Set(name, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[name]; !ok {
		p.order = append(p.order, name)
	}
	p.values[name] = value
}

// Fields returns the field names in the order they appeared.
func (p *Paragraph) Fields() []string {
	return p.order
}

// Len returns the number of fields.
func (p *Paragraph) Len() int {
	return len(p.order)
}

// Parse splits data into its paragraphs. path is only used in error messages.
//
// Fields start at column 0 as "Name: value"; lines beginning with a space
// continue the previous field, with a lone "." standing in for an empty
// line. Blank lines separate paragraphs. CRLF input is accepted.
func Parse(data []byte, path string) ([]Paragraph, error) {
	lines := strings.Split(string(data), "\n")

	var pghs []Paragraph
	var cur *Paragraph
	var field string

	flush := func() {
		if cur != nil && cur.Len() > 0 {
			pghs = append(pghs, *cur)
		}
		cur = nil
		field = ""
	}

	for i, line := range lines {
		lineno := i + 1
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			flush()
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if field == "" {
				return nil, &ParseError{path, lineno, "continuation line without a preceding field"}
			}
			text := line[1:]
			if text == "." {
				text = ""
			}
			cur.values[field] += "\n" + text
			continue
		}

		colon := strings.Index(line, ":")
		if colon <= 0 {
			return nil, &ParseError{path, lineno, fmt.Sprintf("expected 'Name: value', got %q", line)}
		}

		name := line[:colon]
		value := strings.TrimPrefix(line[colon+1:], " ")

		if cur == nil {
			cur = &Paragraph{values: make(map[string]string)}
		}
		if cur.Has(name) {
			return nil, &ParseError{path, lineno, fmt.Sprintf("duplicate field %q", name)}
		}
		cur.Set(name, value)
		field = name
	}
	flush()

	return pghs, nil
}

// ParseSingle expects exactly one paragraph in data.
func ParseSingle(data []byte, path string) (Paragraph, error) {
	pghs, err := Parse(data, path)
	if err != nil {
		return Paragraph{}, err
	}
	if len(pghs) != 1 {
		return Paragraph{}, &ParseError{path, 1, fmt.Sprintf("expected a single paragraph, found %v", len(pghs))}
	}
	return pghs[0], nil
}

// Serialize renders a paragraph back to its on-disk form, LF line endings,
// without a trailing blank line.
func Serialize(p Paragraph) []byte {
	var sb strings.Builder
	for _, name := range p.order {
		value := p.values[name]
		vlines := strings.Split(value, "\n")
		fmt.Fprintf(&sb, "%v: %v\n", name, vlines[0])
		for _, vl := range vlines[1:] {
			if vl == "" {
				vl = "."
			}
			fmt.Fprintf(&sb, " %v\n", vl)
		}
	}
	return []byte(sb.String())
}

// SerializeMany joins paragraphs with blank-line separators.
func SerializeMany(pghs []Paragraph) []byte {
	parts := make([]string, 0, len(pghs))
	for _, p := range pghs {
		parts = append(parts, string(Serialize(p)))
	}
	return []byte(strings.Join(parts, "\n"))
}
