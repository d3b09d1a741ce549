// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package base

import "path/filepath"

// The directory layout under Root. Everything the run touches resolves
// through these accessors.

func (c *Config) PortsRoot() string {
	return filepath.Join(c.Root, "ports")
}

func (c *Config) TripletsDir() string {
	return filepath.Join(c.Root, "triplets")
}

func (c *Config) PackagesRoot() string {
	return filepath.Join(c.Root, "packages")
}

func (c *Config) InstalledRoot() string {
	return filepath.Join(c.Root, "installed")
}

// StatusDir holds the status database, its journal and the listfiles.
func (c *Config) StatusDir() string {
	return filepath.Join(c.Root, "installed", "vcpkg")
}

func (c *Config) BuildtreesRoot() string {
	return filepath.Join(c.Root, "buildtrees")
}

func (c *Config) ScriptsDir() string {
	return filepath.Join(c.Root, "scripts")
}

// PortsCMake is the external build driver script.
func (c *Config) PortsCMake() string {
	return filepath.Join(c.Root, "scripts", "ports.cmake")
}

// TripletEnvScript prints the structured triplet environment block.
func (c *Config) TripletEnvScript() string {
	return filepath.Join(c.Root, "scripts", "get_triplet_environment.cmake")
}

// PortDir is the directory of one port's files.
func (c *Config) PortDir(name string) string {
	return filepath.Join(c.PortsRoot(), name)
}
