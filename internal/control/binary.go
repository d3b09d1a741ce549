// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package control

import (
	"fmt"
	"strings"

	"github.com/zosopentools/stevedore/internal/paragraph"
)

// BinaryParagraph is the built-package manifest: the source paragraph
// projected through a triplet, with dependencies resolved to plain names.
type BinaryParagraph struct {
	Spec            PackageSpec
	Version         string
	Description     string
	Maintainer      string
	Feature         string
	Depends         []string
	DefaultFeatures []string
}

// NewBinaryParagraph projects a source paragraph onto a triplet.
func NewBinaryParagraph(spgh SourceParagraph, triplet Triplet) BinaryParagraph {
	return BinaryParagraph{
		Spec:            PackageSpec{Name: spgh.Name, Triplet: triplet},
		Version:         spgh.Version,
		Description:     spgh.Description,
		Maintainer:      spgh.Maintainer,
		Depends:         FilterDependencies(spgh.Depends, triplet),
		DefaultFeatures: spgh.DefaultFeatures,
	}
}

// NewBinaryFeatureParagraph projects one feature of a source paragraph
// onto a triplet.
func NewBinaryFeatureParagraph(spgh SourceParagraph, fpgh FeatureParagraph, triplet Triplet) BinaryParagraph {
	return BinaryParagraph{
		Spec:        PackageSpec{Name: spgh.Name, Triplet: triplet},
		Version:     spgh.Version,
		Description: fpgh.Description,
		Maintainer:  spgh.Maintainer,
		Feature:     fpgh.Name,
		Depends:     FilterDependencies(fpgh.Depends, triplet),
	}
}

// DisplayName is "name:triplet" or "name[feature]:triplet".
func (p *BinaryParagraph) DisplayName() string {
	if p.Feature == "" {
		return p.Spec.String()
	}
	return fmt.Sprintf("%v[%v]:%v", p.Spec.Name, p.Feature, p.Spec.Triplet)
}

// FullStem is "<name>_<version>_<triplet>", the listfile stem.
func (p *BinaryParagraph) FullStem() string {
	return fmt.Sprintf("%v_%v_%v", p.Spec.Name, p.Version, p.Spec.Triplet)
}

// Dir is the sandbox directory name, "<name>_<triplet>".
func (p *BinaryParagraph) Dir() string {
	return p.Spec.Dir()
}

// Paragraph renders the manifest back to its field form.
func (p *BinaryParagraph) Paragraph() paragraph.Paragraph {
	var out paragraph.Paragraph
	out.Set("Package", p.Spec.Name)
	if p.Feature != "" {
		out.Set("Feature", p.Feature)
	}
	out.Set("Version", p.Version)
	if len(p.Depends) > 0 {
		out.Set("Depends", strings.Join(p.Depends, ", "))
	}
	out.Set("Architecture", string(p.Spec.Triplet))
	out.Set("Multi-Arch", "same")
	if p.Maintainer != "" {
		out.Set("Maintainer", p.Maintainer)
	}
	if len(p.DefaultFeatures) > 0 {
		out.Set("Default-Features", strings.Join(p.DefaultFeatures, ", "))
	}
	if p.Description != "" {
		out.Set("Description", p.Description)
	}
	return out
}

// ParseBinaryParagraph types one paragraph of a generated CONTROL or of
// the status database.
func ParseBinaryParagraph(origin string, pgh paragraph.Paragraph) (BinaryParagraph, error) {
	f := paragraph.NewFields(pgh, origin)
	bp := BinaryParagraph{
		Spec: PackageSpec{
			Name:    f.Required("Package"),
			Triplet: Triplet(f.Required("Architecture")),
		},
		Version:         f.Required("Version"),
		Description:     f.Optional("Description"),
		Maintainer:      f.Optional("Maintainer"),
		Feature:         f.Optional("Feature"),
		Depends:         splitList(f.Optional("Depends")),
		DefaultFeatures: splitList(f.Optional("Default-Features")),
	}
	if err := f.Err(); err != nil {
		return BinaryParagraph{}, err
	}
	return bp, nil
}

// BinaryControlFile is the generated CONTROL of one build: the core
// manifest plus one manifest per built feature.
type BinaryControlFile struct {
	Core     BinaryParagraph
	Features []BinaryParagraph
}

// Serialize renders the whole control file, core paragraph first.
func (bcf *BinaryControlFile) Serialize() []byte {
	pghs := make([]paragraph.Paragraph, 0, 1+len(bcf.Features))
	pghs = append(pghs, bcf.Core.Paragraph())
	for i := range bcf.Features {
		pghs = append(pghs, bcf.Features[i].Paragraph())
	}
	return paragraph.SerializeMany(pghs)
}

// ParseBinaryControlFile types a generated CONTROL file.
func ParseBinaryControlFile(origin string, pghs []paragraph.Paragraph) (*BinaryControlFile, error) {
	if len(pghs) == 0 {
		return nil, fmt.Errorf("%v: no paragraphs found", origin)
	}
	bcf := new(BinaryControlFile)
	for i, pgh := range pghs {
		bp, err := ParseBinaryParagraph(origin, pgh)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			if bp.Feature != "" {
				return nil, fmt.Errorf("%v: first paragraph must be the core package", origin)
			}
			bcf.Core = bp
		} else {
			if bp.Feature == "" {
				return nil, fmt.Errorf("%v: trailing paragraph for %v is missing a Feature field", origin, bp.Spec)
			}
			bcf.Features = append(bcf.Features, bp)
		}
	}
	return bcf, nil
}
