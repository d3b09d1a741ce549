// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.

package ports

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePort(t *testing.T, root, name, contents string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CONTROL"), []byte(contents), 0o644))
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writePort(t, root, "zlib", "Source: zlib\nVersion: 1.2.11\n")
	writePort(t, root, "curl", "Source: curl\nVersion: 7.58.0\nBuild-Depends: zlib\n\nFeature: tool\nDescription: curl executable\n")

	// A stray file and an empty directory are not ports.
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hi"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scripts"), 0o755))

	reg, err := LoadAll(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	curl := reg.Find("curl")
	require.NotNil(t, curl)
	assert.Equal(t, "7.58.0", curl.Core.Version)
	assert.NotNil(t, curl.FindFeature("tool"))
	assert.Equal(t, filepath.Join(root, "curl"), curl.Dir)

	assert.NotNil(t, reg.Find("ZLIB"))
	assert.Nil(t, reg.Find("openssl"))

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "curl", all[0].Name())
	assert.Equal(t, "zlib", all[1].Name())
}

func TestLoadAllBrokenPorts(t *testing.T) {
	root := t.TempDir()
	writePort(t, root, "zlib", "Source: zlib\nVersion: 1.2.11\n")
	writePort(t, root, "curl", "Source: libcurl\nVersion: 7.58.0\n")
	writePort(t, root, "openssl", "Source: openssl\n")

	reg, err := LoadAll(context.Background(), root)
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Len(t, le.Errors, 2)

	// The good port still loads.
	require.Equal(t, 1, reg.Len())
	assert.NotNil(t, reg.Find("zlib"))
}

func TestLoadAllMissingRoot(t *testing.T) {
	_, err := LoadAll(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
