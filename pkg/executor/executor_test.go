package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcrawler/pkg/errors"
)

func TestExecute_Success(t *testing.T) {
	res, err := Execute(context.Background(), "echo", []string{"hello"}, ".", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecute_NonZeroExitCapturesStderrTail(t *testing.T) {
	script := "for i in $(seq 1 20); do echo line$i 1>&2; done; exit 3"
	_, err := Execute(context.Background(), "sh", []string{"-c", script}, ".", time.Second)
	require.Error(t, err)

	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindExec, kind)

	var execErr *errors.Error
	require.ErrorAs(t, err, &execErr)
	require.NotNil(t, execErr.Exec.ExitCode)
	assert.Equal(t, 3, *execErr.Exec.ExitCode)
	assert.Equal(t, 10, strings.Count(execErr.Exec.StderrTail, "\n")+1)
	assert.Contains(t, execErr.Exec.StderrTail, "line20")
	assert.NotContains(t, execErr.Exec.StderrTail, "line9\n")
}

func TestExecute_TimeoutReportsMessage(t *testing.T) {
	_, err := Execute(context.Background(), "sleep", []string{"5"}, ".", 20*time.Millisecond)
	require.Error(t, err)

	var execErr *errors.Error
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Exec.StderrTail, "timed out after 20ms")
}

func TestTailLines(t *testing.T) {
	assert.Equal(t, "", tailLines("", 10))
	assert.Equal(t, "a\nb", tailLines("a\nb", 10))
	assert.Equal(t, "b\nc", tailLines("a\nb\nc", 2))
}
