// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.

package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/metrics"
	"github.com/zosopentools/stevedore/internal/paragraph"
	"github.com/zosopentools/stevedore/internal/status"
)

func TestParsePreBuildInfo(t *testing.T) {
	output := "-- Configuring done\nnoise line\n" +
		"c35112b6-d1ba-415b-aa5d-81de856ef8eb\n" +
		"VCPKG_TARGET_ARCHITECTURE=x64\n" +
		"VCPKG_CMAKE_SYSTEM_NAME=\n" +
		"VCPKG_CMAKE_SYSTEM_VERSION=\n" +
		"VCPKG_PLATFORM_TOOLSET=v141\n" +
		"VCPKG_VISUAL_STUDIO_PATH=C:/VS\n"

	info, err := ParsePreBuildInfo(output)
	require.NoError(t, err)
	assert.Equal(t, "x64", info.TargetArchitecture)
	assert.Empty(t, info.CMakeSystemName)
	assert.Equal(t, "v141", info.PlatformToolset)
	assert.Equal(t, "C:/VS", info.VisualStudioPath)
}

func TestParsePreBuildInfoErrors(t *testing.T) {
	_, err := ParsePreBuildInfo("no marker anywhere\n")
	require.Error(t, err)

	_, err = ParsePreBuildInfo("c35112b6-d1ba-415b-aa5d-81de856ef8eb\nBOGUS_KEY=1\n")
	require.Error(t, err)

	_, err = ParsePreBuildInfo("c35112b6-d1ba-415b-aa5d-81de856ef8eb\nVCPKG_TARGET_ARCHITECTURE=a=b\n")
	require.Error(t, err)
}

func testToolset() *Toolset {
	return &Toolset{
		Vcvarsall: `C:\VS\vcvarsall.bat`,
		Version:   "v141",
		SupportedArchitectures: []ToolsetArchOption{
			{Name: "x86", Host: CPU_X86, Target: CPU_X86},
			{Name: "amd64", Host: CPU_X64, Target: CPU_X64},
			{Name: "x86_amd64", Host: CPU_X86, Target: CPU_X64},
			{Name: "amd64_x86", Host: CPU_X64, Target: CPU_X86},
			{Name: "amd64_arm", Host: CPU_X64, Target: CPU_ARM},
		},
	}
}

func TestVcvarsallToolchain(t *testing.T) {
	ts := testToolset()

	name, err := vcvarsallToolchain("x64", ts, []CPUArchitecture{CPU_X64, CPU_X86})
	require.NoError(t, err)
	assert.Equal(t, "amd64", name)

	// Host preference order decides between candidates.
	name, err = vcvarsallToolchain("x64", ts, []CPUArchitecture{CPU_X86})
	require.NoError(t, err)
	assert.Equal(t, "x86_amd64", name)

	_, err = vcvarsallToolchain("arm", ts, []CPUArchitecture{CPU_X86})
	require.Error(t, err)
	var ute *UnsupportedToolchainError
	require.ErrorAs(t, err, &ute)

	_, err = vcvarsallToolchain("mips", ts, []CPUArchitecture{CPU_X64})
	require.Error(t, err)
}

func TestMakeBuildEnvCmd(t *testing.T) {
	info := &PreBuildInfo{TargetArchitecture: "x64"}
	cmd, err := MakeBuildEnvCmd(info, testToolset(), []CPUArchitecture{CPU_X64}, false)
	require.NoError(t, err)
	assert.Contains(t, cmd, `"C:\VS\vcvarsall.bat"`)
	assert.Contains(t, cmd, "amd64")
	assert.Contains(t, cmd, ">nul")

	cmd, err = MakeBuildEnvCmd(info, testToolset(), []CPUArchitecture{CPU_X64}, true)
	require.NoError(t, err)
	assert.NotContains(t, cmd, ">nul")

	info.CMakeSystemName = "WindowsStore"
	cmd, err = MakeBuildEnvCmd(info, testToolset(), []CPUArchitecture{CPU_X64}, false)
	require.NoError(t, err)
	assert.Contains(t, cmd, "store")

	info.CMakeSystemName = "Linux"
	_, err = MakeBuildEnvCmd(info, testToolset(), []CPUArchitecture{CPU_X64}, false)
	require.Error(t, err)
}

type fakeRunner struct {
	captureOut  string
	captureCode int
	runCode     int
	runCommands []string

	// onRun fires before returning, so tests can lay down build output.
	onRun func()
}

func (r *fakeRunner) Capture(_ context.Context, command string) (string, int, error) {
	return r.captureOut, r.captureCode, nil
}

func (r *fakeRunner) Run(_ context.Context, command string) (int, error) {
	r.runCommands = append(r.runCommands, command)
	if r.onRun != nil {
		r.onRun()
	}
	return r.runCode, nil
}

type fakeResolver struct{ toolset *Toolset }

func (r *fakeResolver) Resolve(platformToolset, visualStudioPath string) (*Toolset, error) {
	return r.toolset, nil
}

func preBuildOutput() string {
	return "c35112b6-d1ba-415b-aa5d-81de856ef8eb\n" +
		"VCPKG_TARGET_ARCHITECTURE=x64\n" +
		"VCPKG_PLATFORM_TOOLSET=v141\n"
}

func mustSource(t *testing.T, data string) *control.SourceControlFile {
	t.Helper()
	pghs, err := paragraph.Parse([]byte(data), "CONTROL")
	require.NoError(t, err)
	scf, err := control.ParseSourceControlFile("CONTROL", pghs)
	require.NoError(t, err)
	return scf
}

func testDriver(t *testing.T, runner *fakeRunner) (*Driver, string) {
	t.Helper()
	packages := t.TempDir()
	return &Driver{
		PackagesRoot: packages,
		TripletsDir:  filepath.Join(t.TempDir(), "triplets"),
		PortsCMake:   "scripts/ports.cmake",
		TripletEnv:   "scripts/get_triplet_environment.cmake",
		CMake:        "cmake",
		Git:          "git",
		Runner:       runner,
		Resolver:     &fakeResolver{toolset: testToolset()},
		Hosts:        []CPUArchitecture{CPU_X64, CPU_X86},
		Metrics:      metrics.Noop{},
	}, packages
}

func layDownGoodSandbox(t *testing.T, packages string) {
	t.Helper()
	dir := filepath.Join(packages, "zlib_x64-windows")
	for _, sub := range []string{"include", "bin", "lib", "debug/bin", "debug/lib"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, filepath.FromSlash(sub)), 0o755))
	}
	for _, f := range []string{"include/zlib.h", "bin/zlib.dll", "lib/zlib.lib", "debug/bin/zlib.dll", "debug/lib/zlib.lib"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(f)), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BUILD_INFO"),
		[]byte("CRTLinkage: dynamic\nLibraryLinkage: dynamic\n"), 0o644))
}

func TestBuildSucceeds(t *testing.T) {
	runner := &fakeRunner{captureOut: preBuildOutput()}
	driver, packages := testDriver(t, runner)
	runner.onRun = func() { layDownGoodSandbox(t, packages) }

	db, err := status.Load(t.TempDir())
	require.NoError(t, err)

	scf := mustSource(t, "Source: zlib\nVersion: 1.2.11\n\nFeature: tool\nDescription: tools\n")
	result, err := driver.Build(context.Background(), Config{
		Source:   scf,
		Triplet:  "x64-windows",
		PortDir:  "/ports/zlib",
		Features: []string{"core", "tool"},
	}, db)
	require.NoError(t, err)
	assert.Equal(t, RESULT_SUCCEEDED, result.Code)

	// The build command carries the protocol parameters.
	require.Len(t, runner.runCommands, 1)
	cmd := runner.runCommands[0]
	assert.Contains(t, cmd, `"-DCMD=BUILD"`)
	assert.Contains(t, cmd, `"-DPORT=zlib"`)
	assert.Contains(t, cmd, `"-DTARGET_TRIPLET=x64-windows"`)
	assert.Contains(t, cmd, `"-DVCPKG_PLATFORM_TOOLSET=v141"`)
	assert.Contains(t, cmd, `"-DFEATURES=tool"`)
	assert.Contains(t, cmd, " && ")

	// The binary manifest lands in the sandbox.
	data, err := os.ReadFile(filepath.Join(packages, "zlib_x64-windows", "CONTROL"))
	require.NoError(t, err)
	pghs, err := paragraph.Parse(data, "CONTROL")
	require.NoError(t, err)
	bcf, err := control.ParseBinaryControlFile("CONTROL", pghs)
	require.NoError(t, err)
	assert.Equal(t, "zlib", bcf.Core.Spec.Name)
	require.Len(t, bcf.Features, 1)
	assert.Equal(t, "tool", bcf.Features[0].Feature)
}

func TestBuildVersionOverrideFromBuildInfo(t *testing.T) {
	runner := &fakeRunner{captureOut: preBuildOutput()}
	driver, packages := testDriver(t, runner)
	runner.onRun = func() {
		layDownGoodSandbox(t, packages)
		require.NoError(t, os.WriteFile(filepath.Join(packages, "zlib_x64-windows", "BUILD_INFO"),
			[]byte("CRTLinkage: dynamic\nLibraryLinkage: dynamic\nVersion: 1.2.11-2\n"), 0o644))
	}

	db, err := status.Load(t.TempDir())
	require.NoError(t, err)

	result, err := driver.Build(context.Background(), Config{
		Source:  mustSource(t, "Source: zlib\nVersion: 1.2.11\n"),
		Triplet: "x64-windows",
		PortDir: "/ports/zlib",
	}, db)
	require.NoError(t, err)
	require.Equal(t, RESULT_SUCCEEDED, result.Code)

	data, err := os.ReadFile(filepath.Join(packages, "zlib_x64-windows", "CONTROL"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Version: 1.2.11-2")
}

func TestBuildCascadesOnMissingDeps(t *testing.T) {
	runner := &fakeRunner{captureOut: preBuildOutput()}
	driver, _ := testDriver(t, runner)

	db, err := status.Load(t.TempDir())
	require.NoError(t, err)

	result, err := driver.Build(context.Background(), Config{
		Source:  mustSource(t, "Source: curl\nVersion: 7.58.0\nBuild-Depends: zlib, openssl\n"),
		Triplet: "x64-windows",
		PortDir: "/ports/curl",
	}, db)
	require.NoError(t, err)
	assert.Equal(t, RESULT_CASCADED_DUE_TO_MISSING_DEPENDENCIES, result.Code)
	require.Len(t, result.UnmetDeps, 2)
	assert.Equal(t, "openssl", result.UnmetDeps[0].Name)
	assert.Equal(t, "zlib", result.UnmetDeps[1].Name)
	assert.Empty(t, runner.runCommands)
}

func TestBuildFailed(t *testing.T) {
	runner := &fakeRunner{captureOut: preBuildOutput(), runCode: 1}
	driver, _ := testDriver(t, runner)

	db, err := status.Load(t.TempDir())
	require.NoError(t, err)

	result, err := driver.Build(context.Background(), Config{
		Source:  mustSource(t, "Source: zlib\nVersion: 1.2.11\n"),
		Triplet: "x64-windows",
		PortDir: "/ports/zlib",
	}, db)
	require.NoError(t, err)
	assert.Equal(t, RESULT_BUILD_FAILED, result.Code)
}

func TestBuildPostBuildChecksFailed(t *testing.T) {
	runner := &fakeRunner{captureOut: preBuildOutput()}
	driver, packages := testDriver(t, runner)
	runner.onRun = func() {
		// Only BUILD_INFO, nothing else: the empty-package check trips.
		dir := filepath.Join(packages, "zlib_x64-windows")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "BUILD_INFO"),
			[]byte("CRTLinkage: dynamic\nLibraryLinkage: dynamic\n"), 0o644))
	}

	db, err := status.Load(t.TempDir())
	require.NoError(t, err)

	result, err := driver.Build(context.Background(), Config{
		Source:  mustSource(t, "Source: zlib\nVersion: 1.2.11\n"),
		Triplet: "x64-windows",
		PortDir: "/ports/zlib",
	}, db)
	require.NoError(t, err)
	assert.Equal(t, RESULT_POST_BUILD_CHECKS_FAILED, result.Code)

	_, err = os.Stat(filepath.Join(packages, "zlib_x64-windows", "CONTROL"))
	assert.True(t, os.IsNotExist(err))
}
