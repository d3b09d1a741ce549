// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package executor walks an action plan sequentially, dispatching each
// action to the build driver and the installer. Every status database
// write lands before the next action starts, so an interrupted run
// recovers to at most one action before the failure.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/quay/zlog"

	"github.com/zosopentools/stevedore/internal/build"
	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/install"
	"github.com/zosopentools/stevedore/internal/metrics"
	"github.com/zosopentools/stevedore/internal/paragraph"
	"github.com/zosopentools/stevedore/internal/plan"
	"github.com/zosopentools/stevedore/internal/status"
)

// Builder produces one package sandbox. The build driver satisfies it.
type Builder interface {
	Build(ctx context.Context, cfg build.Config, db *status.Database) (build.ExtendedBuildResult, error)
}

// Options steer one plan execution.
type Options struct {
	// KeepGoing keeps walking the plan after a failed action instead of
	// stopping at the first failure.
	KeepGoing bool

	UseHead     bool
	NoDownloads bool
}

// Executor holds the collaborators and layout paths a plan run needs.
type Executor struct {
	PortsRoot     string
	PackagesRoot  string
	InstalledRoot string

	Builder Builder
	DB      *status.Database
	Metrics metrics.Sink
}

// ActionResult is the outcome of one executed action.
type ActionResult struct {
	Name    string
	Code    build.BuildResult
	Elapsed time.Duration
}

// Summary collects the outcome of every install action of a run.
type Summary struct {
	Results []ActionResult
}

// FailureCount counts the actions that did not succeed.
func (s *Summary) FailureCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Code != build.RESULT_SUCCEEDED {
			n++
		}
	}
	return n
}

// Histogram tallies results by code.
func (s *Summary) Histogram() map[build.BuildResult]int {
	out := make(map[build.BuildResult]int)
	for _, r := range s.Results {
		out[r.Code]++
	}
	return out
}

// String renders the histogram and the per-action timings.
func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RESULTS SUMMARY\n")
	hist := s.Histogram()
	for _, code := range build.AllResults {
		if hist[code] > 0 {
			fmt.Fprintf(&sb, "    %v: %v\n", code, hist[code])
		}
	}
	results := make([]ActionResult, len(s.Results))
	copy(results, s.Results)
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	for _, r := range results {
		fmt.Fprintf(&sb, "    %v: %v: %v\n", r.Name, r.Code, r.Elapsed.Round(time.Millisecond))
	}
	return sb.String()
}

// Execute walks the plan in order. Without KeepGoing the first failed
// action stops the run with an error; the summary always covers the
// actions attempted so far.
func (e *Executor) Execute(ctx context.Context, actions []plan.AnyAction, opts Options) (*Summary, error) {
	summary := new(Summary)
	for _, action := range actions {
		if action.Remove != nil {
			if err := e.executeRemove(ctx, action.Remove); err != nil {
				if !opts.KeepGoing {
					return summary, err
				}
				zlog.Warn(ctx).
					Str("spec", action.Remove.Spec.String()).
					Err(err).
					Msg("remove failed, continuing")
			}
			continue
		}

		result := e.executeInstall(ctx, action.Install, opts, summary)
		if result.Code != build.RESULT_SUCCEEDED && !opts.KeepGoing {
			return summary, fmt.Errorf("%v", build.ErrorMessage(result.Code, action.Install.Spec))
		}
	}
	return summary, nil
}

func (e *Executor) executeRemove(ctx context.Context, action *plan.RemovePlanAction) error {
	zlog.Info(ctx).
		Str("spec", action.Spec.String()).
		Msg("removing package")
	return install.RemovePackage(ctx, e.InstalledRoot, action.Spec, e.DB)
}

func (e *Executor) executeInstall(ctx context.Context, action *plan.InstallPlanAction, opts Options, summary *Summary) ActionResult {
	name := action.DisplayName()

	if action.Type == plan.PLAN_ALREADY_INSTALLED {
		zlog.Info(ctx).
			Str("spec", name).
			Msg("package is already installed")
		result := ActionResult{Name: name, Code: build.RESULT_SUCCEEDED}
		summary.Results = append(summary.Results, result)
		return result
	}

	start := time.Now()
	code, err := e.performInstall(ctx, action, opts)
	elapsed := time.Since(start)
	if err != nil {
		zlog.Error(ctx).
			Str("spec", name).
			Err(err).
			Msg("action failed")
		code = build.RESULT_BUILD_FAILED
	}

	e.Metrics.TrackMetric("actiontimeus-"+action.Spec.String(), float64(elapsed.Microseconds()))
	result := ActionResult{Name: name, Code: code, Elapsed: elapsed}
	summary.Results = append(summary.Results, result)
	return result
}

func (e *Executor) performInstall(ctx context.Context, action *plan.InstallPlanAction, opts Options) (build.BuildResult, error) {
	pkgDir := filepath.Join(e.PackagesRoot, action.Spec.Dir())

	switch action.Type {
	case plan.PLAN_INSTALL:
		return e.installSandbox(ctx, pkgDir, action.Binary)

	case plan.PLAN_BUILD_AND_INSTALL:
		cfg := build.Config{
			Source:      action.Source,
			Triplet:     action.Spec.Triplet,
			PortDir:     filepath.Join(e.PortsRoot, action.Spec.Name),
			Features:    action.Features,
			NoDownloads: opts.NoDownloads,
		}
		// Head versions only apply to what the user asked for, never to
		// auto-selected dependencies.
		if action.Request == plan.REQUEST_USER_REQUESTED {
			cfg.UseHead = opts.UseHead
		}
		result, err := e.Builder.Build(ctx, cfg, e.DB)
		if err != nil {
			return build.RESULT_NULLVALUE, err
		}
		if result.Code != build.RESULT_SUCCEEDED {
			return result.Code, nil
		}

		bcf, err := readBinaryControlFile(pkgDir)
		if err != nil {
			return build.RESULT_NULLVALUE, err
		}
		return e.installSandbox(ctx, pkgDir, bcf)
	}
	panic(fmt.Sprintf("unexpected install plan type %v", action.Type))
}

func (e *Executor) installSandbox(ctx context.Context, pkgDir string, bcf *control.BinaryControlFile) (build.BuildResult, error) {
	result, conflicts, err := install.InstallPackage(ctx, pkgDir, e.InstalledRoot, bcf, e.DB)
	if err != nil {
		return build.RESULT_NULLVALUE, err
	}
	if result == install.RESULT_FILE_CONFLICTS {
		for _, path := range conflicts {
			zlog.Warn(ctx).
				Str("spec", bcf.Core.Spec.String()).
				Str("path", path).
				Msg("file is already owned by an installed package")
		}
		return build.RESULT_FILE_CONFLICTS, nil
	}
	return build.RESULT_SUCCEEDED, nil
}

func readBinaryControlFile(pkgDir string) (*control.BinaryControlFile, error) {
	path := filepath.Join(pkgDir, "CONTROL")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read generated manifest: %w", err)
	}
	pghs, err := paragraph.Parse(data, path)
	if err != nil {
		return nil, err
	}
	return control.ParseBinaryControlFile(path, pghs)
}
