// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package paragraph

import (
	"fmt"
	"strings"
)

// Fields walks a parsed paragraph and batches up every missing required
// field so a malformed file is reported in one pass.
type Fields struct {
	pgh     Paragraph
	origin  string
	missing []string
}

// NewFields wraps a paragraph for field extraction. origin names the file
// in error messages.
func NewFields(pgh Paragraph, origin string) *Fields {
	return &Fields{pgh: pgh, origin: origin}
}

// Required returns the named field, recording an error if it is absent.
func (f *Fields) Required(name string) string {
	if !f.pgh.Has(name) {
		f.missing = append(f.missing, name)
		return ""
	}
	return f.pgh.Get(name)
}

// Optional returns the named field or "" if absent.
func (f *Fields) Optional(name string) string {
	return f.pgh.Get(name)
}

// Err returns the accumulated extraction error, or nil.
func (f *Fields) Err() error {
	if len(f.missing) == 0 {
		return nil
	}
	return &MissingFieldError{Origin: f.origin, Fields: f.missing}
}

// MissingFieldError reports required fields absent from a paragraph.
type MissingFieldError struct {
	Origin string
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%v: missing required field(s): %v", e.Origin, strings.Join(e.Fields, ", "))
}
