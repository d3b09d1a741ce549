// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/executor"
	"github.com/zosopentools/stevedore/internal/plan"
	"github.com/zosopentools/stevedore/internal/ports"
)

type installOptions struct {
	dryRun          bool
	head            bool
	noDownloads     bool
	recurse         bool
	keepGoing       bool
	featurePackages bool
}

func installCommand(a *app) *cobra.Command {
	opts := &installOptions{}
	cmd := &cobra.Command{
		Use:   "install <pkg>...",
		Short: "Build and install packages",
		Long: "Build and install packages. Each argument is a package spec of the form\n" +
			"name[feature1,feature2]:triplet; the default triplet applies when none is\n" +
			"given, e.g. `stevedore install zlib zlib:x64-windows curl boost`.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInstall(a.context(cmd), args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the plan without executing it")
	cmd.Flags().BoolVar(&opts.head, "head", false, "Build the requested packages from HEAD instead of the pinned version")
	cmd.Flags().BoolVar(&opts.noDownloads, "no-downloads", false, "Fail instead of downloading missing sources")
	cmd.Flags().BoolVar(&opts.recurse, "recurse", false, "Allow removing installed packages to change feature sets")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "Continue past failed packages and summarize at the end")
	cmd.Flags().BoolVar(&opts.featurePackages, "featurepackages", false, "Use the feature-aware planner")
	return cmd
}

// expandDefaults turns the argument specs into feature specs, pulling in
// each port's default features unless the user listed "core".
func expandDefaults(fulls []control.FullPackageSpec, reg *ports.Registry) []control.FeatureSpec {
	expanded := make([]control.FullPackageSpec, 0, len(fulls))
	for _, full := range fulls {
		suppressed := false
		for _, f := range full.Features {
			if f == control.CoreFeature {
				suppressed = true
			}
		}
		if !suppressed {
			if port := reg.Find(full.Spec.Name); port != nil {
				full.Features = append(full.Features, port.Core.DefaultFeatures...)
			}
		}
		expanded = append(expanded, full)
	}
	return control.ToFeatureSpecs(expanded)
}

func (a *app) runInstall(ctx context.Context, args []string, opts *installOptions) error {
	fulls, err := a.parseSpecs(args)
	if err != nil {
		return err
	}
	reg, err := a.loadPorts(ctx)
	if err != nil {
		return err
	}
	db, err := a.loadDB()
	if err != nil {
		return err
	}

	var actions []plan.AnyAction
	if a.cfg.FeaturePackages || opts.featurePackages {
		actions, err = plan.CreateFeatureInstallPlan(registryPorts{reg}, expandDefaults(fulls, reg), db)
		if err != nil {
			return err
		}
	} else {
		specs := make([]control.PackageSpec, 0, len(fulls))
		for _, full := range fulls {
			if len(full.Features) > 0 {
				return fmt.Errorf("feature installs need the --featurepackages flag: %v", full)
			}
			specs = append(specs, full.Spec)
		}
		installs, err := plan.CreateInstallPlan(registryPorts{reg}, packagesBinaries{a.cfg.PackagesRoot()}, specs, db)
		if err != nil {
			return err
		}
		for i := range installs {
			actions = append(actions, plan.AnyAction{Install: &installs[i]})
		}
	}

	removesAnything := a.printPlan(actions)
	if removesAnything && !opts.recurse {
		return fmt.Errorf("the plan removes installed packages; re-run with --recurse to confirm")
	}
	if opts.dryRun {
		return nil
	}

	exec, err := a.newExecutor(db)
	if err != nil {
		return err
	}
	summary, err := exec.Execute(ctx, actions, executor.Options{
		KeepGoing:   opts.keepGoing,
		UseHead:     opts.head,
		NoDownloads: opts.noDownloads,
	})
	if opts.keepGoing {
		a.out.Printf("%v", summary)
	}
	if err != nil {
		return err
	}
	if n := summary.FailureCount(); n > 0 {
		return fmt.Errorf("%v package(s) failed to install", n)
	}
	a.out.Successf("Installed %v package(s)", len(summary.Results))
	return nil
}

// printPlan lists the plan and reports whether it removes anything.
func (a *app) printPlan(actions []plan.AnyAction) bool {
	removes := false
	for _, action := range actions {
		if action.Remove != nil {
			removes = true
			a.out.Printf("  remove:  %v", action.Remove.Spec)
			continue
		}
		a.out.Printf("  %v: %v", action.Install.Type, action.Install.DisplayName())
	}
	return removes
}
