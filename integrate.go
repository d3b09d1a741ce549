// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func integrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrate",
		Short: "Hook the install tree into build systems",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Make installed packages available user-wide",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runIntegrateInstall()
			},
		},
		&cobra.Command{
			Use:   "remove",
			Short: "Remove the user-wide integration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runIntegrateRemove()
			},
		},
		&cobra.Command{
			Use:   "project",
			Short: "Generate a per-project NuGet integration package",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runIntegrateProject()
			},
		},
	)
	return cmd
}

const userTargetsTemplate = `<Project ToolsVersion="4.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <Import Condition="Exists('%[1]v') and '$(StevedoreLocalAppDataDisabled)' == ''" Project="%[1]v" />
</Project>
`

const projectTargetsTemplate = `<Project ToolsVersion="4.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <StevedoreRoot>%v</StevedoreRoot>
  </PropertyGroup>
  <Import Condition="Exists('$(StevedoreRoot)\scripts\buildsystems\msbuild\stevedore.targets')" Project="$(StevedoreRoot)\scripts\buildsystems\msbuild\stevedore.targets" />
</Project>
`

const nuspecTemplate = `<package>
  <metadata>
    <id>%v</id>
    <version>1.0.0</version>
    <authors>stevedore</authors>
    <description>Per-project integration for the install tree at %v.</description>
  </metadata>
  <files>
    <file src="stevedore.nuget.targets" target="build\native\%v.targets" />
    <file src="stevedore.nuget.props" target="build\native\%v.props" />
  </files>
</package>
`

const nugetPropsTemplate = `<Project ToolsVersion="4.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <StevedoreEnabled>true</StevedoreEnabled>
  </PropertyGroup>
</Project>
`

// userTargetsPath locates the user-wide MSBuild hook file,
// stevedore/stevedore.user.targets under local app data, or under the
// user config directory when LOCALAPPDATA is unset.
func userTargetsPath() (string, error) {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("unable to locate the local application data directory: %w", err)
		}
		base = dir
	}
	return filepath.Join(base, "stevedore", "stevedore.user.targets"), nil
}

// nugetID derives a stable package id from the root path: every
// character outside [A-Za-z0-9] becomes a dot, and leading and trailing
// dots are trimmed.
func nugetID(root string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '.'
		}
	}, filepath.ToSlash(root))
	return "stevedore." + strings.Trim(sanitized, ".")
}

func (a *app) runIntegrateInstall() error {
	path, err := userTargetsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	imported := filepath.Join(a.cfg.ScriptsDir(), "buildsystems", "msbuild", "stevedore.targets")
	content := fmt.Sprintf(userTargetsTemplate, imported)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("unable to write the user-wide targets file: %w", err)
	}
	a.out.Successf("Applied user-wide integration for this root.")
	a.out.Printf("All MSBuild C++ projects can now #include any installed libraries.")
	a.out.Printf("Linking will be handled automatically. Installing new libraries will make them instantly available.")
	return nil
}

func (a *app) runIntegrateRemove() error {
	path, err := userTargetsPath()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		a.out.Printf("User-wide integration is not installed.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to remove the user-wide targets file: %w", err)
	}
	a.out.Successf("User-wide integration was removed.")
	return nil
}

func (a *app) runIntegrateProject() error {
	id := nugetID(a.cfg.Root)
	projectRoot := a.cfg.Root

	files := map[string]string{
		id + ".nuspec":            fmt.Sprintf(nuspecTemplate, id, projectRoot, id, id),
		"stevedore.nuget.targets": fmt.Sprintf(projectTargetsTemplate, projectRoot),
		"stevedore.nuget.props":   nugetPropsTemplate,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(projectRoot, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("unable to write %v: %w", name, err)
		}
	}

	a.out.Successf("Created nuspec %v", filepath.Join(projectRoot, id+".nuspec"))
	a.out.Printf("Run `nuget pack %v.nuspec` and add the resulting package to your project", id)
	a.out.Printf("with the Visual Studio package manager to hook this install tree in.")
	return nil
}
