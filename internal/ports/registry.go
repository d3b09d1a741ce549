// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package ports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/paragraph"
)

// Port is one entry of the registry: the parsed CONTROL plus the
// directory it came from.
type Port struct {
	*control.SourceControlFile
	Dir string
}

func (p *Port) Name() string {
	return p.Core.Name
}

// LoadError collects the per-port failures of a registry scan. The scan
// itself only fails when the ports root cannot be read; broken ports are
// reported here and the remaining ports stay usable.
type LoadError struct {
	Errors []error
}

func (le *LoadError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v port(s) failed to load:", len(le.Errors))
	for _, err := range le.Errors {
		sb.WriteString("\n\t")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Registry is the set of known ports, keyed by package name.
type Registry struct {
	ports map[string]*Port
	names []string
}

// Find returns the named port, or nil. Lookups are case-insensitive the
// same way spec parsing is.
func (r *Registry) Find(name string) *Port {
	return r.ports[strings.ToLower(name)]
}

// Len returns the number of loaded ports.
func (r *Registry) Len() int {
	return len(r.ports)
}

// All returns the ports sorted case-insensitively by name.
func (r *Registry) All() []*Port {
	out := make([]*Port, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.ports[name])
	}
	return out
}

// LoadAll scans the immediate subdirectories of portsRoot for CONTROL
// files and parses them concurrently. Directories without a CONTROL file
// are skipped. Ports that fail to parse, or whose Source field does not
// match the directory name, are dropped and reported through a combined
// *LoadError; the returned registry still holds every port that loaded.
func LoadAll(ctx context.Context, portsRoot string) (*Registry, error) {
	entries, err := os.ReadDir(portsRoot)
	if err != nil {
		return nil, fmt.Errorf("unable to read ports directory: %w", err)
	}

	reg := &Registry{ports: make(map[string]*Port, len(entries))}

	var mu sync.Mutex
	var broken []error

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirname := entry.Name()
		eg.Go(func() error {
			port, err := loadPort(portsRoot, dirname)
			if err != nil {
				if os.IsNotExist(err) {
					// No CONTROL file, not a port.
					return nil
				}
				mu.Lock()
				broken = append(broken, err)
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			reg.ports[port.Name()] = port
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	reg.names = make([]string, 0, len(reg.ports))
	for name := range reg.ports {
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)

	zlog.Debug(ctx).
		Str("root", portsRoot).
		Int("ports", len(reg.ports)).
		Int("broken", len(broken)).
		Msg("loaded port registry")

	if len(broken) > 0 {
		sort.Slice(broken, func(i, j int) bool {
			return broken[i].Error() < broken[j].Error()
		})
		return reg, &LoadError{Errors: broken}
	}
	return reg, nil
}

func loadPort(portsRoot, dirname string) (*Port, error) {
	origin := filepath.Join(portsRoot, dirname, "CONTROL")
	data, err := os.ReadFile(origin)
	if err != nil {
		return nil, err
	}

	pghs, err := paragraph.Parse(data, origin)
	if err != nil {
		return nil, err
	}
	scf, err := control.ParseSourceControlFile(origin, pghs)
	if err != nil {
		return nil, err
	}

	if scf.Core.Name != strings.ToLower(dirname) {
		return nil, fmt.Errorf("%v: Source field %q does not match port directory %q", origin, scf.Core.Name, dirname)
	}

	return &Port{SourceControlFile: scf, Dir: filepath.Join(portsRoot, dirname)}, nil
}
