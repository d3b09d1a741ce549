// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/zosopentools/stevedore/internal/ports"
)

func searchCommand(a *app) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the available ports",
		Long: "Search the available ports by name. Without a query every port is\n" +
			"listed. With --full the query also matches descriptions.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return a.runSearch(a.context(cmd), query, full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Also match against port descriptions")
	return cmd
}

func (a *app) runSearch(ctx context.Context, query string, full bool) error {
	reg, err := a.loadPorts(ctx)
	if err != nil {
		return err
	}

	selected := selectPorts(reg, query, full)
	if len(selected) == 0 {
		a.out.Printf("No ports matched %q.", query)
		return nil
	}
	for _, port := range selected {
		a.out.Printf("%-30v %-16v %v", port.Core.Name, port.Core.Version, firstLine(port.Core.Description))
		for _, feat := range port.Features {
			a.out.Printf("%-47v %v", port.Core.Name+"["+feat.Name+"]", firstLine(feat.Description))
		}
	}
	return nil
}

func selectPorts(reg *ports.Registry, query string, full bool) []*ports.Port {
	all := reg.All()
	if query == "" {
		return all
	}

	haystack := make([]string, len(all))
	for i, port := range all {
		haystack[i] = port.Core.Name
		if full {
			haystack[i] += " " + port.Core.Description
		}
	}
	matches := fuzzy.Find(strings.ToLower(query), haystack)
	selected := make([]*ports.Port, 0, len(matches))
	for _, m := range matches {
		selected = append(selected, all[m.Index])
	}
	return selected
}
