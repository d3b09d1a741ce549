// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zosopentools/stevedore/internal/build"
)

func buildCommand(a *app) *cobra.Command {
	var head, noDownloads bool
	cmd := &cobra.Command{
		Use:   "build <pkg>",
		Short: "Build a single package without installing it",
		Long: "Build a single package into its sandbox without installing it. Every\n" +
			"dependency must already be installed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(a.context(cmd), args[0], head, noDownloads)
		},
	}
	cmd.Flags().BoolVar(&head, "head", false, "Build from HEAD instead of the pinned version")
	cmd.Flags().BoolVar(&noDownloads, "no-downloads", false, "Fail instead of downloading missing sources")
	return cmd
}

func (a *app) runBuild(ctx context.Context, arg string, head, noDownloads bool) error {
	fulls, err := a.parseSpecs([]string{arg})
	if err != nil {
		return err
	}
	full := fulls[0]
	if len(full.Features) > 0 {
		return fmt.Errorf("build operates on whole packages, not features: %v", full)
	}

	reg, err := a.loadPorts(ctx)
	if err != nil {
		return err
	}
	port := reg.Find(full.Spec.Name)
	if port == nil {
		return fmt.Errorf("the port directory for %v does not exist", full.Spec.Name)
	}
	db, err := a.loadDB()
	if err != nil {
		return err
	}
	driver, err := a.newDriver()
	if err != nil {
		return err
	}

	result, err := driver.Build(ctx, build.Config{
		Source:      port.SourceControlFile,
		Triplet:     full.Spec.Triplet,
		PortDir:     a.cfg.PortDir(full.Spec.Name),
		UseHead:     head,
		NoDownloads: noDownloads,
	}, db)
	if err != nil {
		return err
	}

	switch result.Code {
	case build.RESULT_SUCCEEDED:
		a.out.Successf("Built %v", full.Spec)
		return nil
	case build.RESULT_CASCADED_DUE_TO_MISSING_DEPENDENCIES:
		a.out.Errorf("%v", build.ErrorMessage(result.Code, full.Spec))
		for _, dep := range result.UnmetDeps {
			a.out.Printf("  missing: %v", dep)
		}
		return fmt.Errorf("install the missing dependencies first")
	default:
		a.out.Errorf("%v", build.ErrorMessage(result.Code, full.Spec))
		a.out.Printf("%v", build.TroubleshootMessage(full.Spec, versionString()))
		return fmt.Errorf("build failed")
	}
}
