// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package plan

import (
	"fmt"
	"strings"

	"github.com/zosopentools/stevedore/internal/control"
)

// NotFoundError reports a requested or depended-on package with no port.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("package %v is not found in the ports tree", e.Name)
}

// UnknownFeatureError reports a feature the port does not declare.
type UnknownFeatureError struct {
	Spec    control.PackageSpec
	Feature string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("package %v has no feature named %q", e.Spec, e.Feature)
}

// CycleError reports a dependency cycle in the needed set. Stack holds
// the cycle members in dependency order.
type CycleError struct {
	Stack []string
}

func (e *CycleError) Error() string {
	var sb strings.Builder
	sb.WriteString("cyclic dependency detected:\n")
	sb.WriteString(e.Stack[0])
	for _, name := range e.Stack[1:] {
		sb.WriteString("\n<- ")
		sb.WriteString(name)
		if name == e.Stack[0] {
			sb.WriteString(" --- SEEN HERE BEFORE")
		}
	}
	return sb.String()
}
