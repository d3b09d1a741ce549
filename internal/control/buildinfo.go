// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package control

import (
	"fmt"

	"github.com/zosopentools/stevedore/internal/paragraph"
)

// Linkage is a CRT or library linkage kind.
type Linkage uint8

const (
	LINKAGE_DYNAMIC Linkage = iota
	LINKAGE_STATIC
)

func (l Linkage) String() string {
	if l == LINKAGE_STATIC {
		return "static"
	}
	return "dynamic"
}

func parseLinkage(s string) (Linkage, bool) {
	switch s {
	case "dynamic":
		return LINKAGE_DYNAMIC, true
	case "static":
		return LINKAGE_STATIC, true
	}
	return LINKAGE_DYNAMIC, false
}

// BuildPolicy suppresses one post-build check when enabled by the port.
type BuildPolicy uint8

const (
	POLICY_EMPTY_PACKAGE BuildPolicy = iota
	POLICY_DLLS_WITHOUT_LIBS
	POLICY_ONLY_RELEASE_CRT
	POLICY_EMPTY_INCLUDE_FOLDER
	POLICY_ALLOW_OBSOLETE_MSVCRT
)

// AllPolicies enumerates every known policy.
var AllPolicies = []BuildPolicy{
	POLICY_EMPTY_PACKAGE,
	POLICY_DLLS_WITHOUT_LIBS,
	POLICY_ONLY_RELEASE_CRT,
	POLICY_EMPTY_INCLUDE_FOLDER,
	POLICY_ALLOW_OBSOLETE_MSVCRT,
}

// Field returns the BUILD_INFO field name carrying the policy setting.
func (p BuildPolicy) Field() string {
	switch p {
	case POLICY_EMPTY_PACKAGE:
		return "VCPKG_POLICY_EMPTY_PACKAGE"
	case POLICY_DLLS_WITHOUT_LIBS:
		return "VCPKG_POLICY_DLLS_WITHOUT_LIBS"
	case POLICY_ONLY_RELEASE_CRT:
		return "VCPKG_POLICY_ONLY_RELEASE_CRT"
	case POLICY_EMPTY_INCLUDE_FOLDER:
		return "VCPKG_POLICY_EMPTY_INCLUDE_FOLDER"
	case POLICY_ALLOW_OBSOLETE_MSVCRT:
		return "VCPKG_POLICY_ALLOW_OBSOLETE_MSVCRT"
	default:
		panic("unknown build policy")
	}
}

// BuildInfo is the post-build metadata paragraph the external driver
// leaves in the package sandbox.
type BuildInfo struct {
	CRTLinkage     Linkage
	LibraryLinkage Linkage
	Version        string
	Policies       map[BuildPolicy]bool
}

// PolicyEnabled reports whether the port enabled the policy.
func (b *BuildInfo) PolicyEnabled(p BuildPolicy) bool {
	return b.Policies[p]
}

// ParseBuildInfo types a BUILD_INFO paragraph.
func ParseBuildInfo(origin string, pgh paragraph.Paragraph) (*BuildInfo, error) {
	f := paragraph.NewFields(pgh, origin)
	crt := f.Required("CRTLinkage")
	lib := f.Required("LibraryLinkage")
	if err := f.Err(); err != nil {
		return nil, err
	}

	info := &BuildInfo{
		Version:  f.Optional("Version"),
		Policies: make(map[BuildPolicy]bool),
	}

	var ok bool
	if info.CRTLinkage, ok = parseLinkage(crt); !ok {
		return nil, fmt.Errorf("%v: invalid crt linkage type [%v]", origin, crt)
	}
	if info.LibraryLinkage, ok = parseLinkage(lib); !ok {
		return nil, fmt.Errorf("%v: invalid library linkage type [%v]", origin, lib)
	}

	for _, policy := range AllPolicies {
		switch setting := f.Optional(policy.Field()); setting {
		case "":
		case "enabled":
			info.Policies[policy] = true
		case "disabled":
			info.Policies[policy] = false
		default:
			return nil, fmt.Errorf("%v: unknown setting for policy %v: %v", origin, policy.Field(), setting)
		}
	}

	return info, nil
}

// ReadBuildInfo parses the single-paragraph BUILD_INFO file contents.
func ReadBuildInfo(data []byte, origin string) (*BuildInfo, error) {
	pgh, err := paragraph.ParseSingle(data, origin)
	if err != nil {
		return nil, fmt.Errorf("invalid BUILD_INFO file: %w", err)
	}
	return ParseBuildInfo(origin, pgh)
}
