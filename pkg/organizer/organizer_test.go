package organizer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcrawler/pkg/config"
)

func TestNewRunID_SanitizesTargetAndAppendsTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	id := NewRunID("example.com", now)
	assert.Equal(t, "run_example.com_1700000000", id)
}

func TestNewRunID_ReplacesUnsafeCharacters(t *testing.T) {
	now := time.Unix(1700000000, 0)
	id := NewRunID("10.0.0.1/24", now)
	assert.Equal(t, "run_10.0.0.1_24_1700000000", id)
}

func TestPrepareRunDirs_CreatesFullTree(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	dirs, err := PrepareRunDirs("run_test_1")
	require.NoError(t, err)

	for _, path := range []string{dirs.Root, dirs.Scans, dirs.Loot, dirs.Report, dirs.Logs} {
		info, statErr := os.Stat(path)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
	assert.Equal(t, filepath.Join("artifacts", "runs", "run_test_1"), dirs.Root)
}

func TestPreflight_ReportsUnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	dirs, err := PrepareRunDirs("run_test_2")
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dirs.Scans, 0o000))
	defer os.Chmod(dirs.Scans, 0o755)

	err = Preflight(dirs, config.Default())
	assert.Error(t, err)
}

func TestVerifyBaseTools_MissingToolIsReported(t *testing.T) {
	requiredTools = []string{"definitely-not-a-real-tool-xyz"}
	defer func() { requiredTools = []string{"nslookup", "dig"} }()

	err := VerifyBaseTools()
	assert.Error(t, err)
}
