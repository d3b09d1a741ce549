// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package lint runs the post-build checks over a package sandbox. Each
// check returns an error count; a port can suppress individual checks
// through BUILD_INFO policies.
package lint

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/quay/zlog"

	"github.com/zosopentools/stevedore/internal/control"
)

// Artifact extensions that must never ship in a package.
var forbiddenPatterns = []string{
	"**/*.obj",
	"**/*.ilk",
	"**/*.exp",
	"**/*.pdb",
}

// Release CRT import names. Finding one inside a debug binary means the
// port linked the wrong runtime.
var releaseCrtNames = [][]byte{
	[]byte("MSVCRT.dll"),
	[]byte("LIBCMT.lib"),
}

// CRT DLLs from toolchains old enough that shipping them is a defect.
var obsoleteCrtNames = [][]byte{
	[]byte("msvcr100.dll"),
	[]byte("msvcr110.dll"),
	[]byte("msvcr120.dll"),
}

// PerformAllChecks runs every check against the sandbox rooted at
// pkgDir and returns the total error count.
func PerformAllChecks(ctx context.Context, spec control.PackageSpec, pkgDir string, info *control.BuildInfo) int {
	ctx = zlog.ContextWithValues(ctx, "component", "lint", "spec", spec.String())

	sandbox := os.DirFS(pkgDir)
	total := 0
	total += checkEmptyPackage(ctx, sandbox, info)
	total += checkIncludeFolder(ctx, sandbox, info)
	total += checkDebugLeaks(ctx, sandbox)
	total += checkDebugAndReleasePresent(ctx, sandbox, info)
	total += checkDllsHaveLibs(ctx, sandbox, info)
	total += checkNoDllsInStaticBuild(ctx, sandbox, info)
	total += checkForbiddenArtifacts(ctx, sandbox)
	total += checkCrtLinkage(ctx, pkgDir, info)

	if total > 0 {
		zlog.Error(ctx).
			Int("errors", total).
			Msg("post-build checks failed")
	}
	return total
}

func glob(fsys fs.FS, pattern string) []string {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

func exists(fsys fs.FS, path string) bool {
	_, err := fs.Stat(fsys, path)
	return err == nil
}

// hasFiles reports whether the directory contains at least one regular
// file, at any depth.
func hasFiles(fsys fs.FS, dir string) bool {
	return len(glob(fsys, dir+"/**/*")) > 0
}

func checkEmptyPackage(ctx context.Context, sandbox fs.FS, info *control.BuildInfo) int {
	if info.PolicyEnabled(control.POLICY_EMPTY_PACKAGE) {
		return 0
	}
	for _, path := range glob(sandbox, "**/*") {
		if path != "CONTROL" && path != "BUILD_INFO" {
			return 0
		}
	}
	zlog.Warn(ctx).Msg("the build produced an empty package")
	return 1
}

func checkIncludeFolder(ctx context.Context, sandbox fs.FS, info *control.BuildInfo) int {
	if info.PolicyEnabled(control.POLICY_EMPTY_INCLUDE_FOLDER) || info.PolicyEnabled(control.POLICY_EMPTY_PACKAGE) {
		return 0
	}
	if !hasFiles(sandbox, "include") {
		zlog.Warn(ctx).Msg("the include folder is empty or missing")
		return 1
	}
	return 0
}

// checkDebugLeaks flags debug trees that duplicate headers or shared
// data. Those must only ship in the release half of the package.
func checkDebugLeaks(ctx context.Context, sandbox fs.FS) int {
	errors := 0
	for _, dir := range []string{"debug/include", "debug/share"} {
		if hasFiles(sandbox, dir) {
			zlog.Warn(ctx).
				Str("dir", dir).
				Msg("debug tree contains files that belong in the release tree only")
			errors++
		}
	}
	return errors
}

func checkDebugAndReleasePresent(ctx context.Context, sandbox fs.FS, info *control.BuildInfo) int {
	if info.PolicyEnabled(control.POLICY_EMPTY_PACKAGE) {
		return 0
	}
	release := hasFiles(sandbox, "lib") || hasFiles(sandbox, "bin")
	debug := hasFiles(sandbox, "debug/lib") || hasFiles(sandbox, "debug/bin")
	if release != debug {
		zlog.Warn(ctx).
			Bool("release", release).
			Bool("debug", debug).
			Msg("both debug and release binaries must be produced")
		return 1
	}
	return 0
}

// checkDllsHaveLibs requires an import library next to every DLL.
func checkDllsHaveLibs(ctx context.Context, sandbox fs.FS, info *control.BuildInfo) int {
	if info.PolicyEnabled(control.POLICY_DLLS_WITHOUT_LIBS) {
		return 0
	}
	errors := 0
	for _, half := range []struct{ bin, lib string }{
		{"bin", "lib"},
		{"debug/bin", "debug/lib"},
	} {
		for _, dll := range glob(sandbox, half.bin+"/*.dll") {
			stem := strings.TrimSuffix(filepath.Base(dll), ".dll")
			if !exists(sandbox, half.lib+"/"+stem+".lib") {
				zlog.Warn(ctx).
					Str("dll", dll).
					Msg("dll has no matching import lib")
				errors++
			}
		}
	}
	return errors
}

func checkNoDllsInStaticBuild(ctx context.Context, sandbox fs.FS, info *control.BuildInfo) int {
	if info.LibraryLinkage != control.LINKAGE_STATIC {
		return 0
	}
	dlls := append(glob(sandbox, "bin/**/*.dll"), glob(sandbox, "debug/bin/**/*.dll")...)
	if len(dlls) > 0 {
		zlog.Warn(ctx).
			Int("count", len(dlls)).
			Msg("dlls found in a static-linkage build")
		return len(dlls)
	}
	return 0
}

func checkForbiddenArtifacts(ctx context.Context, sandbox fs.FS) int {
	errors := 0
	for _, pattern := range forbiddenPatterns {
		matches := glob(sandbox, pattern)
		if len(matches) > 0 {
			zlog.Warn(ctx).
				Str("pattern", pattern).
				Int("count", len(matches)).
				Msg("forbidden build artifacts found in package")
			errors += len(matches)
		}
	}
	return errors
}

// checkCrtLinkage scans debug binaries for references to release or
// obsolete CRT imports. The scan is byte-level; import tables embed the
// DLL names as plain text.
func checkCrtLinkage(ctx context.Context, pkgDir string, info *control.BuildInfo) int {
	sandbox := os.DirFS(pkgDir)
	errors := 0

	if !info.PolicyEnabled(control.POLICY_ONLY_RELEASE_CRT) {
		for _, path := range append(glob(sandbox, "debug/bin/**/*.dll"), glob(sandbox, "debug/lib/**/*.lib")...) {
			data, err := os.ReadFile(filepath.Join(pkgDir, path))
			if err != nil {
				continue
			}
			for _, name := range releaseCrtNames {
				if bytes.Contains(data, name) {
					zlog.Warn(ctx).
						Str("binary", path).
						Str("crt", string(name)).
						Msg("debug binary links a release CRT")
					errors++
				}
			}
		}
	}

	if !info.PolicyEnabled(control.POLICY_ALLOW_OBSOLETE_MSVCRT) {
		for _, path := range append(glob(sandbox, "bin/**/*.dll"), glob(sandbox, "debug/bin/**/*.dll")...) {
			data, err := os.ReadFile(filepath.Join(pkgDir, path))
			if err != nil {
				continue
			}
			for _, name := range obsoleteCrtNames {
				if bytes.Contains(data, name) {
					zlog.Warn(ctx).
						Str("binary", path).
						Str("crt", string(name)).
						Msg("binary links an obsolete CRT")
					errors++
				}
			}
		}
	}

	return errors
}
