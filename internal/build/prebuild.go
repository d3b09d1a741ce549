// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package build

import (
	"fmt"
	"strings"
)

// The triplet environment script prints this line before the structured
// KEY=VALUE block. Everything before it is toolchain noise and is
// discarded.
const flagGUID = "c35112b6-d1ba-415b-aa5d-81de856ef8eb"

// PreBuildInfo is the triplet environment extracted from the external
// toolchain before a build.
type PreBuildInfo struct {
	TargetArchitecture string
	CMakeSystemName    string
	CMakeSystemVersion string
	PlatformToolset    string
	VisualStudioPath   string
}

// ParsePreBuildInfo reads the captured output of the triplet
// environment script. Lines are KEY=VALUE; a bare KEY means the value
// is empty; an unknown key is fatal.
func ParsePreBuildInfo(output string) (*PreBuildInfo, error) {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == flagGUID {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("triplet environment output is missing the marker line")
	}

	info := new(PreBuildInfo)
	for _, line := range lines[start:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		if !found {
			value = ""
		}
		if strings.Contains(value, "=") {
			return nil, fmt.Errorf("expected format is [VARIABLE_NAME=VARIABLE_VALUE], but was [%v]", line)
		}

		switch name {
		case "VCPKG_TARGET_ARCHITECTURE":
			info.TargetArchitecture = value
		case "VCPKG_CMAKE_SYSTEM_NAME":
			info.CMakeSystemName = value
		case "VCPKG_CMAKE_SYSTEM_VERSION":
			info.CMakeSystemVersion = value
		case "VCPKG_PLATFORM_TOOLSET":
			info.PlatformToolset = value
		case "VCPKG_VISUAL_STUDIO_PATH":
			info.VisualStudioPath = value
		default:
			return nil, fmt.Errorf("unknown variable name %v", line)
		}
	}

	return info, nil
}
