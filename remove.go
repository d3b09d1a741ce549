// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/install"
	"github.com/zosopentools/stevedore/internal/plan"
)

type removeOptions struct {
	dryRun   bool
	recurse  bool
	outdated bool
	purge    bool
	noPurge  bool
}

func removeCommand(a *app) *cobra.Command {
	opts := &removeOptions{}
	cmd := &cobra.Command{
		Use:   "remove <pkg>...",
		Short: "Uninstall packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRemove(a.context(cmd), args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the plan without executing it")
	cmd.Flags().BoolVar(&opts.recurse, "recurse", false, "Also remove packages that depend on the named ones")
	cmd.Flags().BoolVar(&opts.outdated, "outdated", false, "Remove every installed package whose port carries a different version")
	cmd.Flags().BoolVar(&opts.purge, "purge", true, "Also delete the built package sandbox under packages/")
	cmd.Flags().BoolVar(&opts.noPurge, "no-purge", false, "Keep the built package sandbox under packages/")
	return cmd
}

func (a *app) runRemove(ctx context.Context, args []string, opts *removeOptions) error {
	db, err := a.loadDB()
	if err != nil {
		return err
	}

	var requested []control.PackageSpec
	if opts.outdated {
		if len(args) > 0 {
			return fmt.Errorf("--outdated takes no package arguments")
		}
		reg, err := a.loadPorts(ctx)
		if err != nil {
			return err
		}
		for _, sp := range db.InstalledPackages() {
			if sp.Package.Feature != "" {
				continue
			}
			port := reg.Find(sp.Package.Spec.Name)
			if port != nil && port.Core.Version != sp.Package.Version {
				requested = append(requested, sp.Package.Spec)
			}
		}
		if len(requested) == 0 {
			a.out.Printf("There are no outdated packages.")
			return nil
		}
	} else {
		if len(args) == 0 {
			return fmt.Errorf("no packages named; see `stevedore remove --help`")
		}
		fulls, err := a.parseSpecs(args)
		if err != nil {
			return err
		}
		for _, full := range fulls {
			if len(full.Features) > 0 {
				return fmt.Errorf("remove operates on whole packages, not features: %v", full)
			}
			if db.Find(full.Spec.Name, full.Spec.Triplet, "") == nil {
				a.out.Warnf("%v is not installed", full.Spec)
				continue
			}
			requested = append(requested, full.Spec)
		}
		if len(requested) == 0 {
			return nil
		}
	}

	removes, blockers := plan.CreateRemovePlan(requested, db, opts.recurse)
	if len(blockers) > 0 {
		names := make([]string, len(blockers))
		for i, spec := range blockers {
			names[i] = spec.String()
		}
		return fmt.Errorf("the following packages still depend on the named ones; use --recurse to remove them too: %v",
			strings.Join(names, ", "))
	}

	for _, action := range removes {
		a.out.Printf("  remove: %v (%v)", action.Spec, action.Request)
	}
	if opts.dryRun {
		return nil
	}

	for _, action := range removes {
		if err := install.RemovePackage(ctx, a.cfg.InstalledRoot(), action.Spec, db); err != nil {
			return err
		}
		if opts.purge && !opts.noPurge {
			sandbox := filepath.Join(a.cfg.PackagesRoot(), action.Spec.Dir())
			if err := os.RemoveAll(sandbox); err != nil {
				a.out.Warnf("unable to purge %v: %v", sandbox, err)
			}
		}
	}
	a.out.Successf("Removed %v package(s)", len(removes))
	return nil
}
