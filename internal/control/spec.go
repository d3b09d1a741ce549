// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package control holds the typed views of the paragraph files: source
// manifests (CONTROL), binary manifests, status records, and the package
// spec / triplet vocabulary shared by all of them.
package control

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CoreFeature marks the bare package in a feature list.
const CoreFeature = "core"

// Triplet tags the ABI variant (architecture, OS, linkage) a package is
// built for. It is canonical: identity is string equality.
type Triplet string

func (t Triplet) String() string { return string(t) }

// Contains reports whether component is one of the dash-separated parts of
// the triplet, e.g. Triplet("x64-windows-static").Contains("windows").
func (t Triplet) Contains(component string) bool {
	for _, part := range strings.Split(string(t), "-") {
		if part == component {
			return true
		}
	}
	return false
}

var identRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidIdentifier reports whether s is a well-formed package, feature, or
// triplet name.
func ValidIdentifier(s string) bool {
	return identRE.MatchString(s)
}

// PackageSpec identifies one package pinned to a triplet.
type PackageSpec struct {
	Name    string
	Triplet Triplet
}

func (s PackageSpec) String() string {
	return fmt.Sprintf("%v:%v", s.Name, s.Triplet)
}

// Dir returns the per-package sandbox directory name, "<name>_<triplet>".
func (s PackageSpec) Dir() string {
	return fmt.Sprintf("%v_%v", s.Name, s.Triplet)
}

// FullPackageSpec is a PackageSpec plus the requested feature set.
type FullPackageSpec struct {
	Spec     PackageSpec
	Features []string
}

func (s FullPackageSpec) String() string {
	if len(s.Features) == 0 {
		return s.Spec.String()
	}
	return fmt.Sprintf("%v[%v]:%v", s.Spec.Name, strings.Join(s.Features, ","), s.Spec.Triplet)
}

// FeatureSpec pins a single feature (or "core") of a package.
type FeatureSpec struct {
	Spec    PackageSpec
	Feature string
}

func (s FeatureSpec) String() string {
	if s.Feature == "" || s.Feature == CoreFeature {
		return s.Spec.String()
	}
	return fmt.Sprintf("%v[%v]:%v", s.Spec.Name, s.Feature, s.Spec.Triplet)
}

// ParseFullSpec parses "name", "name:triplet", "name[f1,f2]", or
// "name[f1,f2]:triplet", lowercasing the name and applying defaultTriplet
// when none is given.
func ParseFullSpec(input string, defaultTriplet Triplet) (FullPackageSpec, error) {
	rest := input
	triplet := defaultTriplet
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		triplet = Triplet(rest[i+1:])
		rest = rest[:i]
	}

	var features []string
	if i := strings.IndexByte(rest, '['); i >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return FullPackageSpec{}, fmt.Errorf("invalid package spec %q: unterminated feature list", input)
		}
		for _, f := range strings.Split(rest[i+1:len(rest)-1], ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" {
				continue
			}
			if f != CoreFeature && !ValidIdentifier(f) {
				return FullPackageSpec{}, fmt.Errorf("invalid package spec %q: bad feature name %q", input, f)
			}
			features = append(features, f)
		}
		rest = rest[:i]
	}

	name := strings.ToLower(rest)
	if !ValidIdentifier(name) {
		return FullPackageSpec{}, fmt.Errorf("invalid package spec %q: bad package name %q", input, name)
	}
	if triplet == "" {
		return FullPackageSpec{}, fmt.Errorf("invalid package spec %q: no triplet given and no default configured", input)
	}
	if !ValidIdentifier(string(triplet)) {
		return FullPackageSpec{}, fmt.Errorf("invalid package spec %q: bad triplet %q", input, triplet)
	}

	return FullPackageSpec{
		Spec:     PackageSpec{Name: name, Triplet: triplet},
		Features: features,
	}, nil
}

// ToFeatureSpecs explodes full specs into (spec, feature) pairs. A spec
// without features yields a single "core" entry; listed features are
// emitted alongside "core". Duplicates collapse.
func ToFeatureSpecs(specs []FullPackageSpec) []FeatureSpec {
	seen := make(map[FeatureSpec]bool)
	var out []FeatureSpec
	add := func(fs FeatureSpec) {
		if !seen[fs] {
			seen[fs] = true
			out = append(out, fs)
		}
	}
	for _, full := range specs {
		add(FeatureSpec{Spec: full.Spec, Feature: CoreFeature})
		for _, f := range full.Features {
			add(FeatureSpec{Spec: full.Spec, Feature: f})
		}
	}
	return out
}

// SortSpecs orders specs lexicographically by name then triplet.
func SortSpecs(specs []PackageSpec) {
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Name != specs[j].Name {
			return specs[i].Name < specs[j].Name
		}
		return specs[i].Triplet < specs[j].Triplet
	})
}
