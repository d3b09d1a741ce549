// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.

package lint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zosopentools/stevedore/internal/control"
)

func touch(t *testing.T, root string, path string, contents string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
}

func buildInfo(policies ...control.BuildPolicy) *control.BuildInfo {
	info := &control.BuildInfo{
		CRTLinkage:     control.LINKAGE_DYNAMIC,
		LibraryLinkage: control.LINKAGE_DYNAMIC,
		Policies:       make(map[control.BuildPolicy]bool),
	}
	for _, p := range policies {
		info.Policies[p] = true
	}
	return info
}

func tspec() control.PackageSpec {
	return control.PackageSpec{Name: "zlib", Triplet: "x64-windows"}
}

// cleanPackage lays out a sandbox that passes every check.
func cleanPackage(t *testing.T) string {
	root := t.TempDir()
	touch(t, root, "include/zlib.h", "")
	touch(t, root, "bin/zlib.dll", "")
	touch(t, root, "lib/zlib.lib", "")
	touch(t, root, "debug/bin/zlib.dll", "")
	touch(t, root, "debug/lib/zlib.lib", "")
	touch(t, root, "BUILD_INFO", "CRTLinkage: dynamic\nLibraryLinkage: dynamic\n")
	return root
}

func TestCleanPackagePasses(t *testing.T) {
	root := cleanPackage(t)
	assert.Zero(t, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
}

func TestEmptyPackage(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "BUILD_INFO", "")

	assert.Positive(t, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
	assert.Zero(t, PerformAllChecks(context.Background(), tspec(), root,
		buildInfo(control.POLICY_EMPTY_PACKAGE)))
}

func TestEmptyIncludeFolder(t *testing.T) {
	root := cleanPackage(t)
	require.NoError(t, os.Remove(filepath.Join(root, "include", "zlib.h")))

	assert.Equal(t, 1, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
	assert.Zero(t, PerformAllChecks(context.Background(), tspec(), root,
		buildInfo(control.POLICY_EMPTY_INCLUDE_FOLDER)))
}

func TestDebugLeaks(t *testing.T) {
	root := cleanPackage(t)
	touch(t, root, "debug/include/zlib.h", "")
	touch(t, root, "debug/share/readme.txt", "")

	assert.Equal(t, 2, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
}

func TestMissingDebugHalf(t *testing.T) {
	root := cleanPackage(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "debug")))

	assert.Equal(t, 1, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
}

func TestDllWithoutLib(t *testing.T) {
	root := cleanPackage(t)
	require.NoError(t, os.Remove(filepath.Join(root, "lib", "zlib.lib")))
	touch(t, root, "lib/other.lib", "")

	assert.Equal(t, 1, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
	assert.Zero(t, PerformAllChecks(context.Background(), tspec(), root,
		buildInfo(control.POLICY_DLLS_WITHOUT_LIBS)))
}

func TestStaticBuildWithDlls(t *testing.T) {
	root := cleanPackage(t)
	info := buildInfo()
	info.LibraryLinkage = control.LINKAGE_STATIC

	assert.Positive(t, PerformAllChecks(context.Background(), tspec(), root, info))
}

func TestForbiddenArtifacts(t *testing.T) {
	root := cleanPackage(t)
	touch(t, root, "lib/zlib.obj", "")
	touch(t, root, "debug/lib/zlib.ilk", "")

	assert.Equal(t, 2, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
}

func TestReleaseCrtInDebugBinary(t *testing.T) {
	root := cleanPackage(t)
	touch(t, root, "debug/bin/zlib.dll", "garbage MSVCRT.dll garbage")

	assert.Equal(t, 1, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
	assert.Zero(t, PerformAllChecks(context.Background(), tspec(), root,
		buildInfo(control.POLICY_ONLY_RELEASE_CRT)))
}

func TestObsoleteCrt(t *testing.T) {
	root := cleanPackage(t)
	touch(t, root, "bin/zlib.dll", "import msvcr120.dll here")

	assert.Equal(t, 1, PerformAllChecks(context.Background(), tspec(), root, buildInfo()))
	assert.Zero(t, PerformAllChecks(context.Background(), tspec(), root,
		buildInfo(control.POLICY_ALLOW_OBSOLETE_MSVCRT)))
}
