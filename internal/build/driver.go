// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package build drives the external toolchain to produce one package
// sandbox, classifies the outcome, and writes the binary manifest.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quay/zlog"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/lint"
	"github.com/zosopentools/stevedore/internal/metrics"
	"github.com/zosopentools/stevedore/internal/status"
)

// Runner executes composed shell commands. Capture returns the child's
// combined output for protocol parsing; Run streams it to the user.
// Both return the child's exit code; err is reserved for failures to
// start the child at all.
type Runner interface {
	Capture(ctx context.Context, command string) (string, int, error)
	Run(ctx context.Context, command string) (int, error)
}

// Config describes one package build.
type Config struct {
	Source  *control.SourceControlFile
	Triplet control.Triplet
	PortDir string

	// Features to build alongside core. Empty in legacy mode.
	Features []string

	UseHead     bool
	NoDownloads bool
}

// Driver holds the paths and collaborators a build needs. All fields
// are required except Debug.
type Driver struct {
	PackagesRoot string
	TripletsDir  string
	PortsCMake   string
	TripletEnv   string
	CMake        string
	Git          string

	Runner   Runner
	Resolver ToolchainResolver
	Hosts    []CPUArchitecture
	Metrics  metrics.Sink
	Debug    bool
}

// makeCMakeCmd composes a cmake script invocation with -D definitions.
func makeCMakeCmd(cmake, script string, defines [][2]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `"%v"`, cmake)
	for _, def := range defines {
		fmt.Fprintf(&sb, ` "-D%v=%v"`, def[0], def[1])
	}
	fmt.Fprintf(&sb, ` -P "%v"`, script)
	return sb.String()
}

// FetchPreBuildInfo runs the triplet environment script and parses the
// structured block it prints.
func (d *Driver) FetchPreBuildInfo(ctx context.Context, triplet control.Triplet) (*PreBuildInfo, error) {
	cmd := makeCMakeCmd(d.CMake, d.TripletEnv, [][2]string{
		{"CMAKE_TRIPLET_FILE", filepath.Join(d.TripletsDir, string(triplet)+".cmake")},
	})
	output, code, err := d.Runner.Capture(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("triplet environment script failed with exit code %v", code)
	}
	return ParsePreBuildInfo(output)
}

// Build runs the full build pipeline for one spec: dependency check,
// triplet environment, toolchain resolution, the build itself, the
// post-build lint, and finally the binary manifest write.
func (d *Driver) Build(ctx context.Context, cfg Config, db *status.Database) (ExtendedBuildResult, error) {
	spec := control.PackageSpec{Name: cfg.Source.Core.Name, Triplet: cfg.Triplet}
	ctx = zlog.ContextWithValues(ctx, "spec", spec.String())

	var missing []control.PackageSpec
	for _, dep := range control.FilterDependencies(cfg.Source.Core.Depends, cfg.Triplet) {
		if db.FindInstalled(dep, cfg.Triplet, "") == nil {
			missing = append(missing, control.PackageSpec{Name: dep, Triplet: cfg.Triplet})
		}
	}
	if len(missing) > 0 {
		control.SortSpecs(missing)
		return ExtendedBuildResult{Code: RESULT_CASCADED_DUE_TO_MISSING_DEPENDENCIES, UnmetDeps: missing}, nil
	}

	preInfo, err := d.FetchPreBuildInfo(ctx, cfg.Triplet)
	if err != nil {
		return ExtendedBuildResult{}, err
	}

	toolset, err := d.Resolver.Resolve(preInfo.PlatformToolset, preInfo.VisualStudioPath)
	if err != nil {
		return ExtendedBuildResult{}, err
	}

	envCmd, err := MakeBuildEnvCmd(preInfo, toolset, d.Hosts, d.Debug)
	if err != nil {
		return ExtendedBuildResult{}, err
	}

	useHead := "0"
	if cfg.UseHead {
		useHead = "1"
	}
	noDownloads := "0"
	if cfg.NoDownloads {
		noDownloads = "1"
	}
	buildCmd := makeCMakeCmd(d.CMake, d.PortsCMake, [][2]string{
		{"CMD", "BUILD"},
		{"PORT", cfg.Source.Core.Name},
		{"CURRENT_PORT_DIR", cfg.PortDir + "/."},
		{"TARGET_TRIPLET", string(cfg.Triplet)},
		{"VCPKG_PLATFORM_TOOLSET", toolset.Version},
		{"VCPKG_USE_HEAD_VERSION", useHead},
		{"_VCPKG_NO_DOWNLOADS", noDownloads},
		{"GIT", d.Git},
		{"FEATURES", strings.Join(featuresWithoutCore(cfg.Features), ";")},
	})

	command := fmt.Sprintf("%v && %v", envCmd, buildCmd)

	start := time.Now()
	code, err := d.Runner.Run(ctx, command)
	if err != nil {
		return ExtendedBuildResult{}, err
	}
	elapsed := time.Since(start)

	d.Metrics.TrackMetric("buildtimeus-"+spec.String(), float64(elapsed.Microseconds()))
	zlog.Info(ctx).
		Dur("elapsed", elapsed).
		Int("exit_code", code).
		Msg("build command finished")

	if code != 0 {
		d.Metrics.TrackProperty("error", "build failed")
		d.Metrics.TrackProperty("build_error", spec.String())
		return ExtendedBuildResult{Code: RESULT_BUILD_FAILED}, nil
	}

	pkgDir := filepath.Join(d.PackagesRoot, spec.Dir())
	data, err := os.ReadFile(filepath.Join(pkgDir, "BUILD_INFO"))
	if err != nil {
		return ExtendedBuildResult{}, fmt.Errorf("invalid BUILD_INFO file for package %v: %w", spec, err)
	}
	info, err := control.ReadBuildInfo(data, filepath.Join(pkgDir, "BUILD_INFO"))
	if err != nil {
		return ExtendedBuildResult{}, err
	}

	errorCount := lint.PerformAllChecks(ctx, spec, pkgDir, info)
	if errorCount != 0 {
		return ExtendedBuildResult{Code: RESULT_POST_BUILD_CHECKS_FAILED}, nil
	}

	bcf := &control.BinaryControlFile{
		Core: control.NewBinaryParagraph(cfg.Source.Core, cfg.Triplet),
	}
	if info.Version != "" {
		bcf.Core.Version = info.Version
	}
	for _, feature := range featuresWithoutCore(cfg.Features) {
		fpgh := cfg.Source.FindFeature(feature)
		if fpgh == nil {
			return ExtendedBuildResult{}, fmt.Errorf("package %v has no feature named %q", spec, feature)
		}
		bcf.Features = append(bcf.Features, control.NewBinaryFeatureParagraph(cfg.Source.Core, *fpgh, cfg.Triplet))
	}

	if err := os.WriteFile(filepath.Join(pkgDir, "CONTROL"), bcf.Serialize(), 0o644); err != nil {
		return ExtendedBuildResult{}, err
	}

	return ExtendedBuildResult{Code: RESULT_SUCCEEDED}, nil
}

func featuresWithoutCore(features []string) []string {
	var out []string
	for _, f := range features {
		if f != control.CoreFeature {
			out = append(out, f)
		}
	}
	return out
}
