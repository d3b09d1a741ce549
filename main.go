// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Command stevedore builds and installs native library packages from
// source ports.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	rtdebug "runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/quay/zlog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zosopentools/stevedore/internal/base"
	"github.com/zosopentools/stevedore/internal/build"
	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/executor"
	"github.com/zosopentools/stevedore/internal/metrics"
	"github.com/zosopentools/stevedore/internal/paragraph"
	"github.com/zosopentools/stevedore/internal/plan"
	"github.com/zosopentools/stevedore/internal/ports"
	"github.com/zosopentools/stevedore/internal/status"
	"github.com/zosopentools/stevedore/internal/util"
)

const shaLen = 7

var (
	// Version contains the application version number. It's set via ldflags
	// when building. (-ldflags="-X 'main.Version=${STEVEDORE_VERSION}'")
	Version = ""

	// CommitSHA contains the SHA of the commit that this application was built
	// against. It's set via ldflags when building.
	// (-ldflags="-X 'main.CommitSHA=$(git rev-parse HEAD)'")
	CommitSHA = ""
)

func versionString() string {
	v := Version
	if v == "" {
		if info, ok := rtdebug.ReadBuildInfo(); ok && info.Main.Sum != "" {
			v = info.Main.Version
		} else {
			v = "unknown (built from source)"
		}
	}
	if len(CommitSHA) >= shaLen {
		v += " (" + CommitSHA[:shaLen] + ")"
	}
	return v
}

// hostArchitectures lists the CPU kinds the running machine can host a
// compiler for, preferred first.
func hostArchitectures() []build.CPUArchitecture {
	switch runtime.GOARCH {
	case "386":
		return []build.CPUArchitecture{build.CPU_X86}
	case "arm":
		return []build.CPUArchitecture{build.CPU_ARM}
	case "arm64":
		return []build.CPUArchitecture{build.CPU_ARM64, build.CPU_X64, build.CPU_X86}
	default:
		return []build.CPUArchitecture{build.CPU_X64, build.CPU_X86}
	}
}

// app carries the per-invocation state the subcommands share.
type app struct {
	rootFlag    string
	tripletFlag string
	debug       bool

	cfg      *base.Config
	out      *util.Printer
	registry *prometheus.Registry
}

// setup resolves the environment. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := base.Resolve(a.rootFlag)
	if err != nil {
		return err
	}
	if a.tripletFlag != "" {
		if !control.ValidIdentifier(a.tripletFlag) {
			return fmt.Errorf("invalid triplet %q", a.tripletFlag)
		}
		cfg.DefaultTriplet = control.Triplet(a.tripletFlag)
	}
	cfg.Debug = a.debug

	level := zerolog.WarnLevel
	if a.debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).Level(level).With().Timestamp().Logger()
	zlog.Set(&logger)

	if a.debug {
		a.registry = prometheus.NewRegistry()
		cfg.Metrics = metrics.NewPrometheus(a.registry)
	}

	a.cfg = cfg
	a.out = util.NewPrinter(os.Stdout)
	return nil
}

// teardown dumps gathered metrics when debugging.
func (a *app) teardown(cmd *cobra.Command, args []string) {
	if a.registry == nil {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		return
	}
	enc := expfmt.NewEncoder(os.Stderr, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		_ = enc.Encode(fam)
	}
}

func (a *app) context(cmd *cobra.Command) context.Context {
	return zlog.ContextWithValues(cmd.Context(), "run_id", a.cfg.RunID)
}

func (a *app) loadDB() (*status.Database, error) {
	return status.Load(a.cfg.StatusDir())
}

func (a *app) loadPorts(ctx context.Context) (*ports.Registry, error) {
	reg, err := ports.LoadAll(ctx, a.cfg.PortsRoot())
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (a *app) newDriver() (*build.Driver, error) {
	if err := a.cfg.RequireTools(); err != nil {
		return nil, err
	}
	return &build.Driver{
		PackagesRoot: a.cfg.PackagesRoot(),
		TripletsDir:  a.cfg.TripletsDir(),
		PortsCMake:   a.cfg.PortsCMake(),
		TripletEnv:   a.cfg.TripletEnvScript(),
		CMake:        a.cfg.CMake,
		Git:          a.cfg.Git,
		Runner:       util.ShellRunner{},
		Resolver:     build.StandardResolver{},
		Hosts:        hostArchitectures(),
		Metrics:      a.cfg.Metrics,
		Debug:        a.cfg.Debug,
	}, nil
}

func (a *app) newExecutor(db *status.Database) (*executor.Executor, error) {
	driver, err := a.newDriver()
	if err != nil {
		return nil, err
	}
	return &executor.Executor{
		PortsRoot:     a.cfg.PortsRoot(),
		PackagesRoot:  a.cfg.PackagesRoot(),
		InstalledRoot: a.cfg.InstalledRoot(),
		Builder:       driver,
		DB:            db,
		Metrics:       a.cfg.Metrics,
	}, nil
}

// parseSpecs parses the command line package arguments, dropping exact
// duplicates.
func (a *app) parseSpecs(args []string) ([]control.FullPackageSpec, error) {
	seen := make(map[string]bool)
	var out []control.FullPackageSpec
	for _, arg := range args {
		full, err := control.ParseFullSpec(arg, a.cfg.DefaultTriplet)
		if err != nil {
			return nil, err
		}
		if key := full.String(); !seen[key] {
			seen[key] = true
			out = append(out, full)
		}
	}
	return out, nil
}

// registryPorts adapts the port registry to the planner.
type registryPorts struct {
	reg *ports.Registry
}

func (r registryPorts) GetSourceControlFile(name string) (*control.SourceControlFile, error) {
	p := r.reg.Find(name)
	if p == nil {
		return nil, nil
	}
	return p.SourceControlFile, nil
}

// packagesBinaries serves cached binary manifests out of the package
// sandboxes.
type packagesBinaries struct {
	root string
}

func (p packagesBinaries) GetBinaryControlFile(spec control.PackageSpec) (*control.BinaryControlFile, error) {
	path := filepath.Join(p.root, spec.Dir(), "CONTROL")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	pghs, err := paragraph.Parse(data, path)
	if err != nil {
		return nil, err
	}
	return control.ParseBinaryControlFile(path, pghs)
}

var _ plan.PortProvider = registryPorts{}
var _ plan.BinaryProvider = packagesBinaries{}

func rootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "stevedore",
		Short:             "Source-based native library package manager",
		Version:           versionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.rootFlag, "root", "", "Root directory of the package tree")
	root.PersistentFlags().StringVar(&a.tripletFlag, "triplet", "", "Default triplet for unqualified package specs")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug output")

	root.AddCommand(
		installCommand(a),
		removeCommand(a),
		buildCommand(a),
		listCommand(a),
		searchCommand(a),
		updateCommand(a),
		dependInfoCommand(a),
		integrateCommand(a),
	)
	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
