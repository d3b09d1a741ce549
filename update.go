// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"context"

	"github.com/Masterminds/semver"
	"github.com/spf13/cobra"
)

func updateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Show installed packages whose port carries a newer version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(a.context(cmd))
		},
	}
}

// versionBehind reports whether installed is older than available. Port
// versions are not required to be semver, so unparseable versions fall
// back to plain inequality.
func versionBehind(installed, available string) bool {
	iv, err1 := semver.NewVersion(installed)
	av, err2 := semver.NewVersion(available)
	if err1 != nil || err2 != nil {
		return installed != available
	}
	return iv.LessThan(av)
}

func (a *app) runUpdate(ctx context.Context) error {
	reg, err := a.loadPorts(ctx)
	if err != nil {
		return err
	}
	db, err := a.loadDB()
	if err != nil {
		return err
	}

	outdated := 0
	for _, sp := range db.InstalledPackages() {
		if sp.Package.Feature != "" {
			continue
		}
		port := reg.Find(sp.Package.Spec.Name)
		if port == nil || !versionBehind(sp.Package.Version, port.Core.Version) {
			continue
		}
		outdated++
		a.out.Printf("%-42v %v -> %v", sp.Package.Spec, sp.Package.Version, port.Core.Version)
	}
	if outdated == 0 {
		a.out.Printf("All installed packages are up to date with their ports.")
		return nil
	}
	a.out.Printf("To update these packages, remove and reinstall them.")
	return nil
}
