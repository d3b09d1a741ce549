// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/paragraph"
	"github.com/zosopentools/stevedore/internal/status"
)

type portMap map[string]*control.SourceControlFile

func (m portMap) GetSourceControlFile(name string) (*control.SourceControlFile, error) {
	return m[name], nil
}

type binMap map[control.PackageSpec]*control.BinaryControlFile

func (m binMap) GetBinaryControlFile(spec control.PackageSpec) (*control.BinaryControlFile, error) {
	return m[spec], nil
}

func mustPort(t *testing.T, data string) *control.SourceControlFile {
	t.Helper()
	pghs, err := paragraph.Parse([]byte(data), "CONTROL")
	require.NoError(t, err)
	scf, err := control.ParseSourceControlFile("CONTROL", pghs)
	require.NoError(t, err)
	return scf
}

func emptyDB(t *testing.T) *status.Database {
	t.Helper()
	db, err := status.Load(t.TempDir())
	require.NoError(t, err)
	return db
}

func installedRecord(name, version, triplet, feature string) control.StatusParagraph {
	return control.StatusParagraph{
		Package: control.BinaryParagraph{
			Spec:    control.PackageSpec{Name: name, Triplet: control.Triplet(triplet)},
			Version: version,
			Feature: feature,
		},
		Want:  control.WANT_INSTALL,
		State: control.STATE_INSTALLED,
	}
}

func spec(name, triplet string) control.PackageSpec {
	return control.PackageSpec{Name: name, Triplet: control.Triplet(triplet)}
}

func TestInstallPlanUnknownPackage(t *testing.T) {
	_, err := CreateInstallPlan(portMap{}, binMap{}, []control.PackageSpec{spec("foo", "x64-windows")}, emptyDB(t))
	require.Error(t, err)
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "foo", nfe.Name)
}

func TestInstallPlanLinearChain(t *testing.T) {
	ports := portMap{
		"a": mustPort(t, "Source: a\nVersion: 1\n"),
		"b": mustPort(t, "Source: b\nVersion: 1\nBuild-Depends: a\n"),
	}

	actions, err := CreateInstallPlan(ports, binMap{}, []control.PackageSpec{spec("b", "x64-windows")}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, spec("a", "x64-windows"), actions[0].Spec)
	assert.Equal(t, PLAN_BUILD_AND_INSTALL, actions[0].Type)
	assert.Equal(t, REQUEST_AUTO_SELECTED, actions[0].Request)

	assert.Equal(t, spec("b", "x64-windows"), actions[1].Spec)
	assert.Equal(t, PLAN_BUILD_AND_INSTALL, actions[1].Type)
	assert.Equal(t, REQUEST_USER_REQUESTED, actions[1].Request)
}

func TestInstallPlanDuplicateRequestsCollapse(t *testing.T) {
	ports := portMap{"a": mustPort(t, "Source: a\nVersion: 1\n")}
	actions, err := CreateInstallPlan(ports, binMap{},
		[]control.PackageSpec{spec("a", "x64-windows"), spec("a", "x64-windows")}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, REQUEST_USER_REQUESTED, actions[0].Request)
}

func TestInstallPlanSameNameDifferentTriplets(t *testing.T) {
	ports := portMap{"zlib": mustPort(t, "Source: zlib\nVersion: 1.2.11\n")}
	actions, err := CreateInstallPlan(ports, binMap{},
		[]control.PackageSpec{spec("zlib", "x64-windows"), spec("zlib", "x86-windows")}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, spec("zlib", "x64-windows"), actions[0].Spec)
	assert.Equal(t, spec("zlib", "x86-windows"), actions[1].Spec)
	assert.Equal(t, REQUEST_USER_REQUESTED, actions[0].Request)
	assert.Equal(t, REQUEST_USER_REQUESTED, actions[1].Request)
}

func TestInstallPlanAlreadyInstalled(t *testing.T) {
	ports := portMap{
		"a": mustPort(t, "Source: a\nVersion: 1\n"),
		"b": mustPort(t, "Source: b\nVersion: 1\nBuild-Depends: a\n"),
	}
	db := emptyDB(t)
	require.NoError(t, db.WriteUpdate(installedRecord("a", "1", "x64-windows", "")))

	actions, err := CreateInstallPlan(ports, binMap{}, []control.PackageSpec{spec("b", "x64-windows")}, db)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, PLAN_ALREADY_INSTALLED, actions[0].Type)
	assert.Equal(t, "a", actions[0].Spec.Name)
	assert.Equal(t, PLAN_BUILD_AND_INSTALL, actions[1].Type)
}

func TestInstallPlanCachedBinary(t *testing.T) {
	ports := portMap{"zlib": mustPort(t, "Source: zlib\nVersion: 1.2.11\n")}
	bins := binMap{
		spec("zlib", "x64-windows"): {
			Core: control.BinaryParagraph{
				Spec:    spec("zlib", "x64-windows"),
				Version: "1.2.11",
			},
		},
	}

	actions, err := CreateInstallPlan(ports, bins, []control.PackageSpec{spec("zlib", "x64-windows")}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, PLAN_INSTALL, actions[0].Type)
	assert.NotNil(t, actions[0].Binary)
	assert.Nil(t, actions[0].Source)
}

func TestInstallPlanQualifiedDependency(t *testing.T) {
	ports := portMap{
		"r": mustPort(t, "Source: r\nVersion: 1\nBuild-Depends: s (windows)\n"),
		"s": mustPort(t, "Source: s\nVersion: 1\n"),
	}

	actions, err := CreateInstallPlan(ports, binMap{}, []control.PackageSpec{spec("r", "x64-linux")}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "r", actions[0].Spec.Name)

	actions, err = CreateInstallPlan(ports, binMap{}, []control.PackageSpec{spec("r", "x64-windows")}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "s", actions[0].Spec.Name)
	assert.Equal(t, "r", actions[1].Spec.Name)
}

func TestInstallPlanCycle(t *testing.T) {
	ports := portMap{
		"a": mustPort(t, "Source: a\nVersion: 1\nBuild-Depends: b\n"),
		"b": mustPort(t, "Source: b\nVersion: 1\nBuild-Depends: a\n"),
	}

	_, err := CreateInstallPlan(ports, binMap{}, []control.PackageSpec{spec("a", "x64-windows")}, emptyDB(t))
	require.Error(t, err)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Stack, "a:x64-windows")
	assert.Contains(t, ce.Stack, "b:x64-windows")
}

func TestInstallPlanLexicographicTieBreak(t *testing.T) {
	ports := portMap{
		"top":   mustPort(t, "Source: top\nVersion: 1\nBuild-Depends: zeta, alpha\n"),
		"zeta":  mustPort(t, "Source: zeta\nVersion: 1\n"),
		"alpha": mustPort(t, "Source: alpha\nVersion: 1\n"),
	}

	actions, err := CreateInstallPlan(ports, binMap{}, []control.PackageSpec{spec("top", "x64-windows")}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, "alpha", actions[0].Spec.Name)
	assert.Equal(t, "zeta", actions[1].Spec.Name)
	assert.Equal(t, "top", actions[2].Spec.Name)
}

func TestFeaturePlanAddition(t *testing.T) {
	ports := portMap{
		"c": mustPort(t, "Source: c\nVersion: 1\n\nFeature: x\nDescription: extra\nBuild-Depends: d\n"),
		"d": mustPort(t, "Source: d\nVersion: 1\n"),
	}
	db := emptyDB(t)
	require.NoError(t, db.WriteUpdate(installedRecord("c", "1", "x64-windows", "")))

	actions, err := CreateFeatureInstallPlan(ports, []control.FeatureSpec{
		{Spec: spec("c", "x64-windows"), Feature: "core"},
		{Spec: spec("c", "x64-windows"), Feature: "x"},
	}, db)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	require.NotNil(t, actions[0].Remove)
	assert.Equal(t, spec("c", "x64-windows"), actions[0].Remove.Spec)

	require.NotNil(t, actions[1].Install)
	assert.Equal(t, "d", actions[1].Install.Spec.Name)
	assert.Equal(t, PLAN_BUILD_AND_INSTALL, actions[1].Install.Type)
	assert.Equal(t, REQUEST_AUTO_SELECTED, actions[1].Install.Request)

	require.NotNil(t, actions[2].Install)
	assert.Equal(t, "c", actions[2].Install.Spec.Name)
	assert.Equal(t, []string{"core", "x"}, actions[2].Install.Features)
	assert.Equal(t, REQUEST_USER_REQUESTED, actions[2].Install.Request)
}

func TestFeaturePlanSameNameDifferentTriplets(t *testing.T) {
	ports := portMap{"zlib": mustPort(t, "Source: zlib\nVersion: 1.2.11\n")}

	actions, err := CreateFeatureInstallPlan(ports, []control.FeatureSpec{
		{Spec: spec("zlib", "x64-windows"), Feature: "core"},
		{Spec: spec("zlib", "x86-windows"), Feature: "core"},
	}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.NotNil(t, actions[0].Install)
	require.NotNil(t, actions[1].Install)
	assert.Equal(t, spec("zlib", "x64-windows"), actions[0].Install.Spec)
	assert.Equal(t, spec("zlib", "x86-windows"), actions[1].Install.Spec)
}

func TestFeaturePlanUnknownFeature(t *testing.T) {
	ports := portMap{"c": mustPort(t, "Source: c\nVersion: 1\n")}

	_, err := CreateFeatureInstallPlan(ports, []control.FeatureSpec{
		{Spec: spec("c", "x64-windows"), Feature: "nope"},
	}, emptyDB(t))
	require.Error(t, err)
	var ufe *UnknownFeatureError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "nope", ufe.Feature)
}

func TestFeaturePlanDefaultFeaturesOfDependency(t *testing.T) {
	ports := portMap{
		"app": mustPort(t, "Source: app\nVersion: 1\nBuild-Depends: lib\n"),
		"lib": mustPort(t, "Source: lib\nVersion: 1\nDefault-Features: ssl\n\nFeature: ssl\nDescription: tls\nBuild-Depends: tls\n"),
		"tls": mustPort(t, "Source: tls\nVersion: 1\n"),
	}

	actions, err := CreateFeatureInstallPlan(ports, []control.FeatureSpec{
		{Spec: spec("app", "x64-windows"), Feature: "core"},
	}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, "tls", actions[0].Install.Spec.Name)
	assert.Equal(t, "lib", actions[1].Install.Spec.Name)
	assert.Equal(t, []string{"core", "ssl"}, actions[1].Install.Features)
	assert.Equal(t, "app", actions[2].Install.Spec.Name)
}

func TestFeaturePlanCoreMarkerSuppressesDefaults(t *testing.T) {
	ports := portMap{
		"app": mustPort(t, "Source: app\nVersion: 1\nBuild-Depends: lib[core]\n"),
		"lib": mustPort(t, "Source: lib\nVersion: 1\nDefault-Features: ssl\n\nFeature: ssl\nDescription: tls\nBuild-Depends: tls\n"),
		"tls": mustPort(t, "Source: tls\nVersion: 1\n"),
	}

	actions, err := CreateFeatureInstallPlan(ports, []control.FeatureSpec{
		{Spec: spec("app", "x64-windows"), Feature: "core"},
	}, emptyDB(t))
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "lib", actions[0].Install.Spec.Name)
	assert.Equal(t, []string{"core"}, actions[0].Install.Features)
	assert.Equal(t, "app", actions[1].Install.Spec.Name)
}

func TestFeaturePlanHalfInstalledRebuilds(t *testing.T) {
	ports := portMap{"c": mustPort(t, "Source: c\nVersion: 1\n")}
	db := emptyDB(t)
	require.NoError(t, db.WriteUpdate(control.StatusParagraph{
		Package: control.BinaryParagraph{
			Spec:    spec("c", "x64-windows"),
			Version: "1",
		},
		Want:  control.WANT_INSTALL,
		State: control.STATE_HALF_INSTALLED,
	}))

	actions, err := CreateFeatureInstallPlan(ports, []control.FeatureSpec{
		{Spec: spec("c", "x64-windows"), Feature: "core"},
	}, db)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.NotNil(t, actions[0].Remove)
	assert.Equal(t, spec("c", "x64-windows"), actions[0].Remove.Spec)
	require.NotNil(t, actions[1].Install)
	assert.Equal(t, PLAN_BUILD_AND_INSTALL, actions[1].Install.Type)
}

func TestFeaturePlanFullyInstalledIsNoop(t *testing.T) {
	ports := portMap{"c": mustPort(t, "Source: c\nVersion: 1\n\nFeature: x\nDescription: extra\n")}
	db := emptyDB(t)
	require.NoError(t, db.WriteUpdate(
		installedRecord("c", "1", "x64-windows", ""),
		installedRecord("c", "1", "x64-windows", "x"),
	))

	actions, err := CreateFeatureInstallPlan(ports, []control.FeatureSpec{
		{Spec: spec("c", "x64-windows"), Feature: "core"},
		{Spec: spec("c", "x64-windows"), Feature: "x"},
	}, db)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NotNil(t, actions[0].Install)
	assert.Equal(t, PLAN_ALREADY_INSTALLED, actions[0].Install.Type)
}

func TestRemovePlanOrdersDependentsFirst(t *testing.T) {
	db := emptyDB(t)
	a := installedRecord("a", "1", "x64-windows", "")
	b := installedRecord("b", "1", "x64-windows", "")
	b.Package.Depends = []string{"a"}
	require.NoError(t, db.WriteUpdate(a, b))

	actions, blockers := CreateRemovePlan([]control.PackageSpec{spec("a", "x64-windows"), spec("b", "x64-windows")}, db, false)
	require.Empty(t, blockers)
	require.Len(t, actions, 2)
	assert.Equal(t, "b", actions[0].Spec.Name)
	assert.Equal(t, "a", actions[1].Spec.Name)
}

func TestRemovePlanBlockedByDependent(t *testing.T) {
	db := emptyDB(t)
	a := installedRecord("a", "1", "x64-windows", "")
	b := installedRecord("b", "1", "x64-windows", "")
	b.Package.Depends = []string{"a"}
	require.NoError(t, db.WriteUpdate(a, b))

	actions, blockers := CreateRemovePlan([]control.PackageSpec{spec("a", "x64-windows")}, db, false)
	assert.Nil(t, actions)
	require.Len(t, blockers, 1)
	assert.Equal(t, "b", blockers[0].Name)
}

func TestRemovePlanRecurse(t *testing.T) {
	db := emptyDB(t)
	a := installedRecord("a", "1", "x64-windows", "")
	b := installedRecord("b", "1", "x64-windows", "")
	b.Package.Depends = []string{"a"}
	require.NoError(t, db.WriteUpdate(a, b))

	actions, blockers := CreateRemovePlan([]control.PackageSpec{spec("a", "x64-windows")}, db, true)
	require.Empty(t, blockers)
	require.Len(t, actions, 2)
	assert.Equal(t, "b", actions[0].Spec.Name)
	assert.Equal(t, REQUEST_AUTO_SELECTED, actions[0].Request)
	assert.Equal(t, "a", actions[1].Spec.Name)
	assert.Equal(t, REQUEST_USER_REQUESTED, actions[1].Request)
}
