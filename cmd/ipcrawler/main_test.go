package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunScan_MissingToolFailsBeforeAnyDirectoryIsCreated guards scenario 3
// (spec §8): a missing required tool must fail registry/toolchain
// verification before organizer.PrepareRunDirs ever runs, so no
// artifacts/ tree is left behind.
func TestRunScan_MissingToolFailsBeforeAnyDirectoryIsCreated(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	origPath := os.Getenv("PATH")
	require.NoError(t, os.Setenv("PATH", ""))
	defer os.Setenv("PATH", origPath)

	origTarget := target
	target = "example.com"
	defer func() { target = origTarget }()

	err = runScan(context.Background())
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "artifacts"))
	assert.True(t, os.IsNotExist(statErr), "no artifacts directory should be created when a required tool is missing")
}
