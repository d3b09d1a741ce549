// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package plan

import (
	"sort"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/status"
)

// cluster accumulates everything the feature planner learns about one
// spec: the manifest, the features the closure requires, and what the
// status database says is already present.
type cluster struct {
	spec control.PackageSpec
	scf  *control.SourceControlFile

	required  map[string]bool
	installed map[string]bool
	present   bool
	unhealthy bool

	userRequested bool
	wantDefaults  bool
	defaultsDone  bool

	deps map[string]bool
}

func (c *cluster) sortedFeatures() []string {
	out := make([]string, 0, len(c.required))
	for f := range c.required {
		if f != control.CoreFeature {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return append([]string{control.CoreFeature}, out...)
}

// needsWork reports whether an install action is required at all.
func (c *cluster) needsWork() bool {
	if c.unhealthy || !c.present {
		return true
	}
	for f := range c.required {
		if !c.installed[f] {
			return true
		}
	}
	return false
}

// needsRemove reports whether the spec must be removed before the
// rebuild: something of it is on disk but the feature set has to grow,
// or a crash left it half installed.
func (c *cluster) needsRemove() bool {
	return c.present && c.needsWork()
}

type featureGraph struct {
	pp       PortProvider
	db       *status.Database
	clusters map[control.PackageSpec]*cluster
	queue    []control.FeatureSpec
}

func (g *featureGraph) cluster(spec control.PackageSpec) *cluster {
	c := g.clusters[spec]
	if c != nil {
		return c
	}
	c = &cluster{
		spec:      spec,
		required:  make(map[string]bool),
		installed: make(map[string]bool),
		deps:      make(map[string]bool),
	}
	for _, sp := range g.db.All() {
		if sp.Package.Spec != spec {
			continue
		}
		feature := sp.Package.Feature
		if feature == "" {
			feature = control.CoreFeature
		}
		if sp.IsInstalled() {
			c.present = true
			c.installed[feature] = true
		} else if sp.State == control.STATE_HALF_INSTALLED {
			c.present = true
			c.unhealthy = true
			c.installed[feature] = true
		}
	}
	g.clusters[spec] = c
	return c
}

func (g *featureGraph) enqueue(fs control.FeatureSpec) {
	g.queue = append(g.queue, fs)
}

// requireDefaults arranges for the cluster's default features to join
// the closure once its manifest is known.
func (g *featureGraph) requireDefaults(c *cluster) {
	c.wantDefaults = true
	if c.scf != nil && !c.defaultsDone {
		c.defaultsDone = true
		for _, f := range c.scf.Core.DefaultFeatures {
			g.enqueue(control.FeatureSpec{Spec: c.spec, Feature: f})
		}
	}
}

func (g *featureGraph) process(fs control.FeatureSpec) error {
	c := g.cluster(fs.Spec)

	if c.scf == nil {
		scf, err := g.pp.GetSourceControlFile(fs.Spec.Name)
		if err != nil {
			return err
		}
		if scf == nil {
			return &NotFoundError{Name: fs.Spec.Name}
		}
		c.scf = scf
		if c.wantDefaults && !c.defaultsDone {
			c.defaultsDone = true
			for _, f := range scf.Core.DefaultFeatures {
				g.enqueue(control.FeatureSpec{Spec: c.spec, Feature: f})
			}
		}
	}

	var deps []control.Dependency
	if fs.Feature == control.CoreFeature {
		deps = c.scf.Core.Depends
	} else {
		fpgh := c.scf.FindFeature(fs.Feature)
		if fpgh == nil {
			return &UnknownFeatureError{Spec: fs.Spec, Feature: fs.Feature}
		}
		deps = fpgh.Depends
	}

	if c.required[fs.Feature] {
		return nil
	}
	c.required[fs.Feature] = true

	for _, dep := range deps {
		if !dep.AppliesTo(fs.Spec.Triplet) {
			continue
		}
		depSpec := control.PackageSpec{Name: dep.Name, Triplet: fs.Spec.Triplet}
		c.deps[dep.Name] = true

		g.enqueue(control.FeatureSpec{Spec: depSpec, Feature: control.CoreFeature})
		suppressed := false
		for _, f := range dep.Features {
			if f == control.CoreFeature {
				suppressed = true
				continue
			}
			g.enqueue(control.FeatureSpec{Spec: depSpec, Feature: f})
		}
		if !suppressed {
			g.requireDefaults(g.cluster(depSpec))
		}
	}
	return nil
}

func (g *featureGraph) drain() error {
	for len(g.queue) > 0 {
		fs := g.queue[0]
		g.queue = g.queue[1:]
		if err := g.process(fs); err != nil {
			return err
		}
	}
	return nil
}

// CreateFeatureInstallPlan computes the feature-aware plan. Features are
// additive: a rebuilt spec carries the union of the requested features
// and whatever was installed before. A spec whose installed set must
// grow, or that a crash left half installed, is removed first and
// rebuilt with the full set.
func CreateFeatureInstallPlan(pp PortProvider, requested []control.FeatureSpec, db *status.Database) ([]AnyAction, error) {
	g := &featureGraph{
		pp:       pp,
		db:       db,
		clusters: make(map[control.PackageSpec]*cluster),
	}

	for _, fs := range requested {
		g.cluster(fs.Spec).userRequested = true
		g.enqueue(fs)
	}
	if err := g.drain(); err != nil {
		return nil, err
	}

	// Rebuilding a spec rebuilds its installed features too, so their
	// dependencies join the closure. New members can flip further
	// clusters into a rebuild, so iterate to a fixed point.
	for {
		before := len(g.queue)
		for _, c := range g.clusters {
			if !c.needsRemove() {
				continue
			}
			for f := range c.installed {
				if !c.required[f] {
					g.enqueue(control.FeatureSpec{Spec: c.spec, Feature: f})
				}
			}
		}
		if len(g.queue) == before {
			break
		}
		if err := g.drain(); err != nil {
			return nil, err
		}
	}

	nodes := make(map[control.PackageSpec]*node, len(g.clusters))
	for _, c := range g.clusters {
		request := REQUEST_AUTO_SELECTED
		if c.userRequested {
			request = REQUEST_USER_REQUESTED
		}
		action := InstallPlanAction{
			Spec:    c.spec,
			Request: request,
		}
		if c.needsWork() {
			action.Type = PLAN_BUILD_AND_INSTALL
			action.Features = c.sortedFeatures()
			action.Source = c.scf
		} else {
			action.Type = PLAN_ALREADY_INSTALLED
		}
		nd := &node{action: action}
		for dep := range c.deps {
			nd.deps = append(nd.deps, control.PackageSpec{Name: dep, Triplet: c.spec.Triplet})
		}
		control.SortSpecs(nd.deps)
		nodes[c.spec] = nd
	}

	order, err := toposort(nodes)
	if err != nil {
		return nil, err
	}

	// Removes run before any install, dependents before dependencies.
	var actions []AnyAction
	for i := len(order) - 1; i >= 0; i-- {
		c := g.clusters[order[i]]
		if c.needsRemove() {
			actions = append(actions, AnyAction{Remove: &RemovePlanAction{
				Spec:    c.spec,
				Request: nodes[order[i]].action.Request,
			}})
		}
	}
	for _, spec := range order {
		action := nodes[spec].action
		actions = append(actions, AnyAction{Install: &action})
	}
	return actions, nil
}

// CreateRemovePlan orders the requested specs so that dependents are
// removed before their dependencies, pulling in installed dependents
// when recurse is set.
func CreateRemovePlan(requested []control.PackageSpec, db *status.Database, recurse bool) ([]RemovePlanAction, []control.PackageSpec) {
	requestedSet := make(map[control.PackageSpec]bool, len(requested))
	for _, spec := range requested {
		requestedSet[spec] = true
	}

	// Installed reverse-dependency edges, by core package name within a
	// triplet.
	installed := db.InstalledPackages()
	dependents := make(map[control.PackageSpec][]control.PackageSpec)
	for _, sp := range installed {
		for _, dep := range sp.Package.Depends {
			depSpec := control.PackageSpec{Name: dep, Triplet: sp.Package.Spec.Triplet}
			dependents[depSpec] = append(dependents[depSpec], sp.Package.Spec)
		}
	}

	selected := make(map[control.PackageSpec]bool)
	var blockers []control.PackageSpec
	var visit func(spec control.PackageSpec)
	visit = func(spec control.PackageSpec) {
		if selected[spec] {
			return
		}
		selected[spec] = true
		for _, dependent := range dependents[spec] {
			if recurse {
				visit(dependent)
			} else if !requestedSet[dependent] && !selected[dependent] {
				blockers = append(blockers, dependent)
			}
		}
	}
	for _, spec := range requested {
		visit(spec)
	}

	if len(blockers) > 0 {
		control.SortSpecs(blockers)
		return nil, blockers
	}

	// Order dependents first via DFS from each selected spec.
	var order []control.PackageSpec
	done := make(map[control.PackageSpec]bool)
	var emit func(spec control.PackageSpec)
	emit = func(spec control.PackageSpec) {
		if done[spec] {
			return
		}
		done[spec] = true
		deps := append([]control.PackageSpec(nil), dependents[spec]...)
		control.SortSpecs(deps)
		for _, dependent := range deps {
			if selected[dependent] {
				emit(dependent)
			}
		}
		order = append(order, spec)
	}
	all := make([]control.PackageSpec, 0, len(selected))
	for spec := range selected {
		all = append(all, spec)
	}
	control.SortSpecs(all)
	for _, spec := range all {
		emit(spec)
	}

	actions := make([]RemovePlanAction, 0, len(order))
	for _, spec := range order {
		request := REQUEST_AUTO_SELECTED
		if requestedSet[spec] {
			request = REQUEST_USER_REQUESTED
		}
		actions = append(actions, RemovePlanAction{Spec: spec, Request: request})
	}
	return actions, nil
}
