// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// Host-to-target pairs every modern Visual Studio layout provides, with
// the vcvarsall argument selecting each.
var standardArchOptions = []ToolsetArchOption{
	{Name: "x86", Host: CPU_X86, Target: CPU_X86},
	{Name: "x86_amd64", Host: CPU_X86, Target: CPU_X64},
	{Name: "x86_arm", Host: CPU_X86, Target: CPU_ARM},
	{Name: "amd64", Host: CPU_X64, Target: CPU_X64},
	{Name: "amd64_x86", Host: CPU_X64, Target: CPU_X86},
	{Name: "amd64_arm", Host: CPU_X64, Target: CPU_ARM},
}

const defaultPlatformToolset = "v141"

// StandardResolver locates vcvarsall inside the Visual Studio
// installation the triplet names.
type StandardResolver struct{}

func (StandardResolver) Resolve(platformToolset, visualStudioPath string) (*Toolset, error) {
	if visualStudioPath == "" {
		return nil, fmt.Errorf("no Visual Studio path configured; set VCPKG_VISUAL_STUDIO_PATH in the triplet")
	}
	vcvarsall := filepath.Join(visualStudioPath, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	if _, err := os.Stat(vcvarsall); err != nil {
		return nil, fmt.Errorf("unable to locate vcvarsall.bat under %v: %w", visualStudioPath, err)
	}

	version := platformToolset
	if version == "" {
		version = defaultPlatformToolset
	}
	return &Toolset{
		Vcvarsall:              vcvarsall,
		Version:                version,
		SupportedArchitectures: standardArchOptions,
	}, nil
}
