// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package plan

import (
	"fmt"
	"strings"

	"github.com/zosopentools/stevedore/internal/control"
)

// InstallPlanType classifies what an install action has to do.
type InstallPlanType uint8

const (
	PLAN_UNKNOWN InstallPlanType = iota
	PLAN_BUILD_AND_INSTALL
	PLAN_INSTALL
	PLAN_ALREADY_INSTALLED
)

func (t InstallPlanType) String() string {
	switch t {
	case PLAN_BUILD_AND_INSTALL:
		return "build and install"
	case PLAN_INSTALL:
		return "install"
	case PLAN_ALREADY_INSTALLED:
		return "already installed"
	default:
		return "unknown"
	}
}

// RequestType records whether a spec was asked for or pulled in.
type RequestType uint8

const (
	REQUEST_AUTO_SELECTED RequestType = iota
	REQUEST_USER_REQUESTED
)

func (r RequestType) String() string {
	if r == REQUEST_USER_REQUESTED {
		return "user requested"
	}
	return "auto selected"
}

// InstallPlanAction is one install step. Exactly one of Source and
// Binary is set for the build-and-install and cached-install kinds;
// already-installed actions carry neither.
type InstallPlanAction struct {
	Spec    control.PackageSpec
	Type    InstallPlanType
	Request RequestType

	// Features is the effective feature set to build, including "core".
	// Empty for legacy plans.
	Features []string

	Source *control.SourceControlFile
	Binary *control.BinaryControlFile
}

// DisplayName renders "name:triplet" or "name[f1,f2]:triplet".
func (a *InstallPlanAction) DisplayName() string {
	if len(a.Features) == 0 {
		return a.Spec.String()
	}
	return fmt.Sprintf("%v[%v]:%v", a.Spec.Name, strings.Join(a.Features, ","), a.Spec.Triplet)
}

// RemovePlanAction removes every record of a spec, features included.
type RemovePlanAction struct {
	Spec    control.PackageSpec
	Request RequestType
}

// AnyAction is one step of a feature-aware plan: a remove or an
// install, never both.
type AnyAction struct {
	Remove  *RemovePlanAction
	Install *InstallPlanAction
}

func (a *AnyAction) DisplayName() string {
	if a.Remove != nil {
		return a.Remove.Spec.String()
	}
	return a.Install.DisplayName()
}
