package dnsenum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcrawler/pkg/config"
	"ipcrawler/pkg/executor"
	"ipcrawler/pkg/types"
)

func TestRun_EmitsDNSServiceWhenPort53Responds(t *testing.T) {
	p := New()
	var calls []string
	fake := func(ctx context.Context, tool string, args []string, cwd string, timeout time.Duration) (executor.Result, error) {
		calls = append(calls, tool)
		return executor.Result{Stdout: "ok"}, nil
	}

	target := types.Target{Value: "example.com", Dirs: types.RunDirs{Scans: t.TempDir()}}
	cfg := config.Default()

	services := p.basicLookup(context.Background(), fake, target, cfg)
	require.Len(t, services, 1)
	assert.EqualValues(t, 53, services[0].Port)
	assert.Equal(t, types.ProtoUDP, services[0].Proto)
	assert.GreaterOrEqual(t, len(calls), len(recordTypes)+1)
}

func TestRun_NoDNSServiceWhenPort53Fails(t *testing.T) {
	p := New()
	fake := func(ctx context.Context, tool string, args []string, cwd string, timeout time.Duration) (executor.Result, error) {
		if args[len(args)-1] == "google.com" {
			return executor.Result{}, assertErr
		}
		return executor.Result{}, nil
	}

	target := types.Target{Value: "example.com", Dirs: types.RunDirs{Scans: t.TempDir()}}
	cfg := config.Default()
	services := p.basicLookup(context.Background(), fake, target, cfg)
	assert.Empty(t, services)
}

var assertErr = assertError{}

type assertError struct{}

func (assertError) Error() string { return "dig failed" }
