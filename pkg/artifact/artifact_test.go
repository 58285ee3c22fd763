package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcrawler/pkg/state"
	"ipcrawler/pkg/types"
)

func TestAtomicWrite_CreatesFileWithExactContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.txt")

	require.NoError(t, AtomicWrite(path, []byte("hello")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover .tmp file after rename")
}

func TestAtomicWrite_OverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.txt")

	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestBuildContext_MapsSnapshotFields(t *testing.T) {
	code := 1
	snap := state.Snapshot{
		Target:         "example.com",
		RunID:          "run_example.com_1700000000",
		PortsOpen:      []types.PortEntry{{Port: 80, Name: "http"}},
		Services:       []types.Service{{Proto: types.ProtoTCP, Port: 443, Name: "https", Secure: true, Address: "example.com"}},
		TasksStarted:   5,
		TasksCompleted: 4,
		Errors:         []types.ExecError{{Tool: "nmap", ExitCode: &code, StderrTail: "connection refused"}},
	}
	dirs := Dirs{Scans: "artifacts/runs/x/scans", Report: "artifacts/runs/x/report"}

	ctx := BuildContext(snap, dirs, time.Now().Add(-2*time.Second))

	assert.Equal(t, "example.com", ctx.Target)
	assert.Equal(t, "run_example.com_1700000000", ctx.RunID)
	require.Len(t, ctx.PortsOpen, 1)
	assert.Equal(t, uint16(80), ctx.PortsOpen[0].Port)
	require.Len(t, ctx.Services, 1)
	assert.True(t, ctx.Services[0].Secure)
	require.Len(t, ctx.Errors, 1)
	require.NotNil(t, ctx.Errors[0].ExitCode)
	assert.Equal(t, 1, *ctx.Errors[0].ExitCode)
	assert.Equal(t, "1", ctx.Errors[0].ExitCodeDisplay)
	assert.Equal(t, 5, ctx.TasksStarted)
	assert.Equal(t, 4, ctx.TasksCompleted)
}

func TestBuildContext_NilExitCodeRendersAsNone(t *testing.T) {
	snap := state.Snapshot{
		Errors: []types.ExecError{{Tool: "naabu", ExitCode: nil, StderrTail: "timed out"}},
	}

	ctx := BuildContext(snap, Dirs{}, time.Now())

	require.Len(t, ctx.Errors, 1)
	assert.Nil(t, ctx.Errors[0].ExitCode)
	assert.Equal(t, "none", ctx.Errors[0].ExitCodeDisplay)
}

func TestReportContext_JSONSchemaMatchesSpec(t *testing.T) {
	code := 1
	snap := state.Snapshot{
		Target:         "example.com",
		RunID:          "run_example.com_1700000000",
		PortsOpen:      []types.PortEntry{{Port: 80, Name: "http"}},
		Services:       []types.Service{{Proto: types.ProtoTCP, Port: 443, Name: "https", Secure: true, Address: "example.com"}},
		TasksStarted:   5,
		TasksCompleted: 4,
		Errors: []types.ExecError{{
			Tool: "nmap", Args: []string{"-p-", "example.com"}, Cwd: "/tmp",
			ExitCode: &code, StderrTail: "connection refused", DurationMS: 1500,
		}},
	}
	ctx := BuildContext(snap, Dirs{}, time.Now())

	buf, err := json.Marshal(ctx)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf, &decoded))

	for _, key := range []string{"target", "run_id", "ports_open", "services", "tasks_started", "tasks_completed", "errors"} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "Target", "keys must be snake_case, not the Go field names")

	ports, ok := decoded["ports_open"].([]interface{})
	require.True(t, ok)
	require.Len(t, ports, 1)
	pair, ok := ports[0].([]interface{})
	require.True(t, ok, "ports_open entries must serialize as [port, name] tuples, not objects")
	require.Len(t, pair, 2)
	assert.Equal(t, float64(80), pair[0])
	assert.Equal(t, "http", pair[1])

	errs, ok := decoded["errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, errs, 1)
	errObj, ok := errs[0].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"tool", "args", "cwd", "exit_code", "stderr_tail", "duration_ms"} {
		assert.Contains(t, errObj, key)
	}
	assert.Equal(t, float64(1), errObj["exit_code"])
}

func TestWriteReport_WritesAllThreeArtifacts(t *testing.T) {
	dir := t.TempDir()
	dirs := Dirs{Scans: filepath.Join(dir, "scans"), Report: filepath.Join(dir, "report")}
	ctx := BuildContext(state.Snapshot{Target: "example.com", RunID: "run_1"}, dirs, time.Now())

	require.NoError(t, WriteReport(ctx, dirs, false))

	for _, name := range []string{"summary.txt", "summary.md", "summary.json"} {
		info, err := os.Stat(filepath.Join(dirs.Report, name))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	_, err := os.Stat(filepath.Join(dirs.Report, "summary.debug.yaml"))
	assert.True(t, os.IsNotExist(err), "debug yaml dump should be skipped when debug is false")
}

func TestWriteReport_DebugTrueAlsoWritesYAMLDump(t *testing.T) {
	dir := t.TempDir()
	dirs := Dirs{Report: dir}
	ctx := BuildContext(state.Snapshot{Target: "example.com", RunID: "run_1"}, dirs, time.Now())

	require.NoError(t, WriteReport(ctx, dirs, true))

	info, err := os.Stat(filepath.Join(dir, "summary.debug.yaml"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestValidate_FailsWhenReportFileMissing(t *testing.T) {
	dirs := Dirs{Report: t.TempDir()}
	err := Validate(dirs)
	assert.Error(t, err)
}

func TestValidate_FailsWhenReportFileEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.json"), []byte("x"), 0o644))

	err := Validate(Dirs{Report: dir})
	assert.Error(t, err)
}

func TestValidate_PassesWhenAllReportFilesPresentAndNonEmpty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"summary.txt", "summary.md", "summary.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	assert.NoError(t, Validate(Dirs{Report: dir}))
}
