// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func dependInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "depend-info [pkg...]",
		Short: "Show the dependency lists of ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDependInfo(a.context(cmd), args)
		},
	}
}

func (a *app) runDependInfo(ctx context.Context, args []string) error {
	reg, err := a.loadPorts(ctx)
	if err != nil {
		return err
	}

	ports := reg.All()
	if len(args) > 0 {
		fulls, err := a.parseSpecs(args)
		if err != nil {
			return err
		}
		ports = ports[:0]
		for _, full := range fulls {
			port := reg.Find(full.Spec.Name)
			if port == nil {
				return fmt.Errorf("the port directory for %v does not exist", full.Spec.Name)
			}
			ports = append(ports, port)
		}
	}

	for _, port := range ports {
		deps := make([]string, len(port.Core.Depends))
		for i, dep := range port.Core.Depends {
			deps[i] = dep.String()
		}
		a.out.Printf("%v: %v", port.Core.Name, strings.Join(deps, ", "))
	}
	return nil
}
