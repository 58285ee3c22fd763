package dnsenum

import (
	"context"
	"time"

	"ipcrawler/pkg/executor"
)

// execFunc matches executor.Execute's signature so tests can substitute a
// fake without spawning real subprocesses.
type execFunc func(ctx context.Context, tool string, args []string, cwd string, timeout time.Duration) (executor.Result, error)

func newExecFunc() execFunc {
	return executor.Execute
}
