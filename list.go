// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func listCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [filter]",
		Short: "List installed packages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = strings.ToLower(args[0])
			}
			return a.runList(filter)
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (a *app) runList(filter string) error {
	db, err := a.loadDB()
	if err != nil {
		return err
	}

	matched := 0
	for _, sp := range db.InstalledPackages() {
		name := sp.Package.DisplayName()
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		matched++
		a.out.Printf("%-42v %-16v %v", name, sp.Package.Version, firstLine(sp.Package.Description))
	}
	if matched == 0 {
		a.out.Printf("No packages are installed.")
	}
	return nil
}
