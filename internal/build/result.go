// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package build

import (
	"fmt"

	"github.com/zosopentools/stevedore/internal/control"
)

// BuildResult classifies the outcome of one build or install action.
// These are normal return values, not errors.
type BuildResult uint8

const (
	RESULT_NULLVALUE BuildResult = iota
	RESULT_SUCCEEDED
	RESULT_BUILD_FAILED
	RESULT_POST_BUILD_CHECKS_FAILED
	RESULT_FILE_CONFLICTS
	RESULT_CASCADED_DUE_TO_MISSING_DEPENDENCIES
)

func (r BuildResult) String() string {
	switch r {
	case RESULT_SUCCEEDED:
		return "SUCCEEDED"
	case RESULT_BUILD_FAILED:
		return "BUILD_FAILED"
	case RESULT_POST_BUILD_CHECKS_FAILED:
		return "POST_BUILD_CHECKS_FAILED"
	case RESULT_FILE_CONFLICTS:
		return "FILE_CONFLICTS"
	case RESULT_CASCADED_DUE_TO_MISSING_DEPENDENCIES:
		return "CASCADED_DUE_TO_MISSING_DEPENDENCIES"
	default:
		return "NULLVALUE"
	}
}

// AllResults enumerates every terminal result code, for summaries.
var AllResults = []BuildResult{
	RESULT_SUCCEEDED,
	RESULT_BUILD_FAILED,
	RESULT_POST_BUILD_CHECKS_FAILED,
	RESULT_FILE_CONFLICTS,
	RESULT_CASCADED_DUE_TO_MISSING_DEPENDENCIES,
}

// ExtendedBuildResult carries the unmet dependency list alongside a
// cascade result.
type ExtendedBuildResult struct {
	Code      BuildResult
	UnmetDeps []control.PackageSpec
}

// ErrorMessage renders the user-facing failure line for a spec.
func ErrorMessage(code BuildResult, spec control.PackageSpec) string {
	return fmt.Sprintf("Error: Building package %v failed with: %v", spec, code)
}

// TroubleshootMessage directs the user to the issue tracker with the
// context a report needs.
func TroubleshootMessage(spec control.PackageSpec, version string) string {
	return fmt.Sprintf("Please ensure you're using the latest portfiles with `stevedore update`, then\n"+
		"submit an issue at https://github.com/zosopentools/stevedore/issues including:\n"+
		"  Package: %v\n"+
		"  Stevedore version: %v\n"+
		"\n"+
		"Additionally, attach any relevant sections from the log files above.", spec, version)
}
