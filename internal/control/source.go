// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package control

import (
	"fmt"
	"strings"

	"github.com/zosopentools/stevedore/internal/paragraph"
)

// Dependency is one entry of a Build-Depends list. Qualifier, when set,
// restricts the dependency to triplets matching the predicate; Features
// names extra features of the dependency to enable, with "core" acting as
// an opt-out of the dependency's default features.
type Dependency struct {
	Name      string
	Features  []string
	Qualifier string
}

func (d Dependency) String() string {
	s := d.Name
	if len(d.Features) > 0 {
		s += "[" + strings.Join(d.Features, ",") + "]"
	}
	if d.Qualifier != "" {
		s += " (" + d.Qualifier + ")"
	}
	return s
}

// AppliesTo evaluates the qualifier predicate against a triplet. An empty
// qualifier always applies; "windows" matches any triplet with a windows
// component; "!windows" is the negation.
func (d Dependency) AppliesTo(triplet Triplet) bool {
	q := d.Qualifier
	if q == "" {
		return true
	}
	negate := false
	if strings.HasPrefix(q, "!") {
		negate = true
		q = q[1:]
	}
	return triplet.Contains(q) != negate
}

// ParseDepends splits a comma-separated Build-Depends value into its
// entries, e.g. "zlib, libevent[openssl] (!static), curl (windows)".
func ParseDepends(value string) []Dependency {
	var deps []Dependency
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		var dep Dependency
		if i := strings.IndexByte(entry, '('); i >= 0 {
			dep.Qualifier = strings.TrimSpace(strings.TrimSuffix(entry[i+1:], ")"))
			entry = strings.TrimSpace(entry[:i])
		}
		if i := strings.IndexByte(entry, '['); i >= 0 && strings.HasSuffix(entry, "]") {
			for _, f := range strings.Split(entry[i+1:len(entry)-1], ",") {
				if f = strings.TrimSpace(f); f != "" {
					dep.Features = append(dep.Features, f)
				}
			}
			entry = entry[:i]
		}
		dep.Name = entry
		deps = append(deps, dep)
	}
	return deps
}

// FilterDependencies returns the names of the dependencies that apply to
// the triplet, in declaration order.
func FilterDependencies(deps []Dependency, triplet Triplet) []string {
	var names []string
	for _, dep := range deps {
		if dep.AppliesTo(triplet) {
			names = append(names, dep.Name)
		}
	}
	return names
}

// SourceParagraph is the first paragraph of a port CONTROL file.
type SourceParagraph struct {
	Name            string
	Version         string
	Description     string
	Maintainer      string
	Depends         []Dependency
	DefaultFeatures []string
}

// FeatureParagraph describes one optional feature of a port.
type FeatureParagraph struct {
	Name        string
	Description string
	Depends     []Dependency
}

// SourceControlFile is a fully parsed port manifest: the core paragraph
// plus any feature paragraphs. Feature names are unique and never "core".
type SourceControlFile struct {
	Core     SourceParagraph
	Features []FeatureParagraph
}

// FindFeature returns the named feature paragraph, or nil.
func (scf *SourceControlFile) FindFeature(name string) *FeatureParagraph {
	for i := range scf.Features {
		if scf.Features[i].Name == name {
			return &scf.Features[i]
		}
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseSourceControlFile types the paragraphs of a CONTROL file. The first
// paragraph must be the source paragraph; any following paragraphs must be
// feature paragraphs.
func ParseSourceControlFile(origin string, pghs []paragraph.Paragraph) (*SourceControlFile, error) {
	if len(pghs) == 0 {
		return nil, fmt.Errorf("%v: no paragraphs found", origin)
	}

	core := paragraph.NewFields(pghs[0], origin)
	scf := &SourceControlFile{
		Core: SourceParagraph{
			Name:            core.Required("Source"),
			Version:         core.Required("Version"),
			Description:     core.Optional("Description"),
			Maintainer:      core.Optional("Maintainer"),
			Depends:         ParseDepends(core.Optional("Build-Depends")),
			DefaultFeatures: splitList(core.Optional("Default-Features")),
		},
	}
	if err := core.Err(); err != nil {
		return nil, err
	}

	seen := map[string]bool{CoreFeature: true}
	for _, pgh := range pghs[1:] {
		f := paragraph.NewFields(pgh, origin)
		feature := FeatureParagraph{
			Name:        f.Required("Feature"),
			Description: f.Optional("Description"),
			Depends:     ParseDepends(f.Optional("Build-Depends")),
		}
		if err := f.Err(); err != nil {
			return nil, err
		}
		if seen[feature.Name] {
			return nil, fmt.Errorf("%v: feature %q declared more than once", origin, feature.Name)
		}
		seen[feature.Name] = true
		scf.Features = append(scf.Features, feature)
	}

	return scf, nil
}
