// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package control

import (
	"fmt"
	"strings"

	"github.com/zosopentools/stevedore/internal/paragraph"
)

// Want is the desired lifecycle state recorded for a package.
type Want uint8

const (
	WANT_UNKNOWN Want = iota
	WANT_INSTALL
	WANT_HOLD
	WANT_PURGE
)

func (w Want) String() string {
	switch w {
	case WANT_INSTALL:
		return "install"
	case WANT_HOLD:
		return "hold"
	case WANT_PURGE:
		return "purge"
	default:
		return "unknown"
	}
}

func parseWant(s string) (Want, bool) {
	switch s {
	case "install":
		return WANT_INSTALL, true
	case "hold":
		return WANT_HOLD, true
	case "purge", "deinstall":
		return WANT_PURGE, true
	case "unknown":
		return WANT_UNKNOWN, true
	}
	return WANT_UNKNOWN, false
}

// InstallState is the actual lifecycle state recorded for a package.
type InstallState uint8

const (
	STATE_ERROR InstallState = iota
	STATE_NOT_INSTALLED
	STATE_HALF_INSTALLED
	STATE_INSTALLED
)

func (s InstallState) String() string {
	switch s {
	case STATE_NOT_INSTALLED:
		return "not-installed"
	case STATE_HALF_INSTALLED:
		return "half-installed"
	case STATE_INSTALLED:
		return "installed"
	default:
		return "error"
	}
}

func parseInstallState(s string) (InstallState, bool) {
	switch s {
	case "not-installed":
		return STATE_NOT_INSTALLED, true
	case "half-installed":
		return STATE_HALF_INSTALLED, true
	case "installed":
		return STATE_INSTALLED, true
	}
	return STATE_ERROR, false
}

// StatusParagraph is one record of the status database: a binary manifest
// plus the desired and actual state. (name, triplet, feature) is the key;
// later records supersede earlier ones.
type StatusParagraph struct {
	Package BinaryParagraph
	Want    Want
	State   InstallState
}

// IsInstalled reports the terminal success state.
func (s *StatusParagraph) IsInstalled() bool {
	return s.Want == WANT_INSTALL && s.State == STATE_INSTALLED
}

// Paragraph renders the record, with its dpkg-style Status line.
func (s *StatusParagraph) Paragraph() paragraph.Paragraph {
	out := s.Package.Paragraph()
	out.Set("Status", fmt.Sprintf("%v ok %v", s.Want, s.State))
	return out
}

// ParseStatusParagraph types one record of the status database.
func ParseStatusParagraph(origin string, pgh paragraph.Paragraph) (StatusParagraph, error) {
	bp, err := ParseBinaryParagraph(origin, pgh)
	if err != nil {
		return StatusParagraph{}, err
	}

	status := pgh.Get("Status")
	parts := strings.Fields(status)
	if len(parts) != 3 || parts[1] != "ok" {
		return StatusParagraph{}, fmt.Errorf("%v: malformed Status line %q for %v", origin, status, bp.Spec)
	}
	want, ok := parseWant(parts[0])
	if !ok {
		return StatusParagraph{}, fmt.Errorf("%v: unknown want %q for %v", origin, parts[0], bp.Spec)
	}
	state, ok := parseInstallState(parts[2])
	if !ok {
		return StatusParagraph{}, fmt.Errorf("%v: unknown install state %q for %v", origin, parts[2], bp.Spec)
	}

	return StatusParagraph{Package: bp, Want: want, State: state}, nil
}
