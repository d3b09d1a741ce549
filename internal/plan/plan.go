// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package plan turns requested specs, port manifests, and the status
// database into dependency-ordered action lists.
package plan

import (
	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/status"
)

// PortProvider resolves a package name to its port manifest. A nil
// manifest with a nil error means the port does not exist.
type PortProvider interface {
	GetSourceControlFile(name string) (*control.SourceControlFile, error)
}

// BinaryProvider resolves a spec to the manifest of a previously built
// package sandbox. A nil manifest with a nil error means no cached
// build exists.
type BinaryProvider interface {
	GetBinaryControlFile(spec control.PackageSpec) (*control.BinaryControlFile, error)
}

type node struct {
	action InstallPlanAction
	deps   []control.PackageSpec
}

// CreateInstallPlan computes the legacy, feature-unaware plan: every
// requested spec plus the transitive closure of its qualified
// dependencies, dependencies ordered before dependents. Installed specs
// appear as already-installed actions and contribute no edges.
func CreateInstallPlan(pp PortProvider, bp BinaryProvider, requested []control.PackageSpec, db *status.Database) ([]InstallPlanAction, error) {
	nodes := make(map[control.PackageSpec]*node)

	var worklist []control.PackageSpec
	for _, spec := range requested {
		if _, ok := nodes[spec]; ok {
			// Duplicate user requests collapse to one action.
			continue
		}
		nodes[spec] = &node{action: InstallPlanAction{
			Spec:    spec,
			Request: REQUEST_USER_REQUESTED,
		}}
		worklist = append(worklist, spec)
	}

	for len(worklist) > 0 {
		spec := worklist[0]
		worklist = worklist[1:]
		nd := nodes[spec]

		if db.FindInstalled(spec.Name, spec.Triplet, "") != nil {
			nd.action.Type = PLAN_ALREADY_INSTALLED
			continue
		}

		var deps []string
		bcf, err := bp.GetBinaryControlFile(spec)
		if err != nil {
			return nil, err
		}
		if bcf != nil {
			nd.action.Type = PLAN_INSTALL
			nd.action.Binary = bcf
			deps = bcf.Core.Depends
		} else {
			scf, err := pp.GetSourceControlFile(spec.Name)
			if err != nil {
				return nil, err
			}
			if scf == nil {
				return nil, &NotFoundError{Name: spec.Name}
			}
			nd.action.Type = PLAN_BUILD_AND_INSTALL
			nd.action.Source = scf
			deps = control.FilterDependencies(scf.Core.Depends, spec.Triplet)
		}

		for _, dep := range deps {
			depSpec := control.PackageSpec{Name: dep, Triplet: spec.Triplet}
			nd.deps = append(nd.deps, depSpec)
			if _, ok := nodes[depSpec]; ok {
				continue
			}
			nodes[depSpec] = &node{action: InstallPlanAction{
				Spec:    depSpec,
				Request: REQUEST_AUTO_SELECTED,
			}}
			worklist = append(worklist, depSpec)
		}
	}

	order, err := toposort(nodes)
	if err != nil {
		return nil, err
	}

	actions := make([]InstallPlanAction, 0, len(order))
	for _, spec := range order {
		actions = append(actions, nodes[spec].action)
	}
	return actions, nil
}

// toposort orders nodes dependencies-first. Installed nodes never
// contribute edges, so a cycle through an installed package is not a
// planning failure. Ties between independent packages break
// lexicographically.
func toposort(nodes map[control.PackageSpec]*node) ([]control.PackageSpec, error) {
	indeg := make(map[control.PackageSpec]int, len(nodes))
	dependents := make(map[control.PackageSpec][]control.PackageSpec, len(nodes))
	for spec := range nodes {
		indeg[spec] = 0
	}
	for spec, nd := range nodes {
		if nd.action.Type == PLAN_ALREADY_INSTALLED {
			continue
		}
		for _, dep := range nd.deps {
			if _, ok := nodes[dep]; !ok {
				continue
			}
			dependents[dep] = append(dependents[dep], spec)
			indeg[spec]++
		}
	}

	var ready []control.PackageSpec
	for spec, d := range indeg {
		if d == 0 {
			ready = append(ready, spec)
		}
	}
	control.SortSpecs(ready)

	order := make([]control.PackageSpec, 0, len(nodes))
	for len(ready) > 0 {
		spec := ready[0]
		ready = ready[1:]
		order = append(order, spec)

		woken := false
		for _, dependent := range dependents[spec] {
			indeg[dependent]--
			if indeg[dependent] == 0 {
				ready = append(ready, dependent)
				woken = true
			}
		}
		if woken {
			control.SortSpecs(ready)
		}
	}

	if len(order) != len(nodes) {
		return nil, &CycleError{Stack: findCycle(nodes, indeg)}
	}
	return order, nil
}

// findCycle walks the leftover subgraph until a spec repeats.
func findCycle(nodes map[control.PackageSpec]*node, indeg map[control.PackageSpec]int) []string {
	var leftover []control.PackageSpec
	for spec, d := range indeg {
		if d > 0 {
			leftover = append(leftover, spec)
		}
	}
	control.SortSpecs(leftover)

	stuck := make(map[control.PackageSpec]bool, len(leftover))
	for _, spec := range leftover {
		stuck[spec] = true
	}

	seen := make(map[control.PackageSpec]int)
	var stack []string
	cur := leftover[0]
	for {
		if at, ok := seen[cur]; ok {
			return append(stack[at:], cur.String())
		}
		seen[cur] = len(stack)
		stack = append(stack, cur.String())

		var next control.PackageSpec
		for _, dep := range nodes[cur].deps {
			if stuck[dep] {
				next = dep
				break
			}
		}
		cur = next
	}
}
