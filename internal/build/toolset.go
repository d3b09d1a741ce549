// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package build

import (
	"fmt"
	"strings"
)

// CPUArchitecture names one host or target CPU kind.
type CPUArchitecture uint8

const (
	CPU_X86 CPUArchitecture = iota
	CPU_X64
	CPU_ARM
	CPU_ARM64
)

func (a CPUArchitecture) String() string {
	switch a {
	case CPU_X86:
		return "x86"
	case CPU_X64:
		return "x64"
	case CPU_ARM:
		return "arm"
	default:
		return "arm64"
	}
}

// ToCPUArchitecture parses a triplet architecture component.
func ToCPUArchitecture(s string) (CPUArchitecture, bool) {
	switch strings.ToLower(s) {
	case "x86":
		return CPU_X86, true
	case "x64", "amd64":
		return CPU_X64, true
	case "arm":
		return CPU_ARM, true
	case "arm64":
		return CPU_ARM64, true
	}
	return CPU_X86, false
}

// ToolsetArchOption is one host-to-target pair a toolset supports, with
// the vcvarsall argument selecting it.
type ToolsetArchOption struct {
	Name   string
	Host   CPUArchitecture
	Target CPUArchitecture
}

// Toolset is one resolved compiler environment.
type Toolset struct {
	Vcvarsall              string
	VcvarsallOptions       []string
	Version                string
	SupportedArchitectures []ToolsetArchOption
}

// ToolchainResolver finds the toolset matching a triplet's requested
// platform toolset and Visual Studio path. Resolution is an external
// concern; the driver only consumes the result.
type ToolchainResolver interface {
	Resolve(platformToolset, visualStudioPath string) (*Toolset, error)
}

// UnsupportedToolchainError reports that no resolved toolset can target
// the requested architecture from any supported host.
type UnsupportedToolchainError struct {
	TargetArchitecture string
}

func (e *UnsupportedToolchainError) Error() string {
	return fmt.Sprintf("unsupported toolchain combination for target architecture %v", e.TargetArchitecture)
}

// vcvarsallTarget maps the cmake system name onto the vcvarsall store
// argument.
func vcvarsallTarget(cmakeSystemName string) (string, error) {
	switch cmakeSystemName {
	case "", "Windows":
		return "", nil
	case "WindowsStore":
		return "store", nil
	}
	return "", fmt.Errorf("unsupported vcvarsall target %v", cmakeSystemName)
}

// vcvarsallToolchain picks the arch option matching the target
// architecture against the host architectures, preferred first.
func vcvarsallToolchain(targetArchitecture string, toolset *Toolset, hosts []CPUArchitecture) (string, error) {
	target, ok := ToCPUArchitecture(targetArchitecture)
	if !ok {
		return "", fmt.Errorf("invalid architecture string: %v", targetArchitecture)
	}

	for _, host := range hosts {
		for _, opt := range toolset.SupportedArchitectures {
			if opt.Host == host && opt.Target == target {
				return opt.Name, nil
			}
		}
	}
	return "", &UnsupportedToolchainError{TargetArchitecture: targetArchitecture}
}

// MakeBuildEnvCmd composes the vcvarsall invocation that prepares the
// compiler environment. Output is squelched unless debugging.
func MakeBuildEnvCmd(info *PreBuildInfo, toolset *Toolset, hosts []CPUArchitecture, debug bool) (string, error) {
	arch, err := vcvarsallToolchain(info.TargetArchitecture, toolset, hosts)
	if err != nil {
		return "", err
	}
	target, err := vcvarsallTarget(info.CMakeSystemName)
	if err != nil {
		return "", err
	}

	tonull := " >nul"
	if debug {
		tonull = ""
	}

	return fmt.Sprintf(`"%v" %v %v %v%v 2>&1`,
		toolset.Vcvarsall,
		strings.Join(toolset.VcvarsallOptions, " "),
		arch,
		target,
		tonull,
	), nil
}
