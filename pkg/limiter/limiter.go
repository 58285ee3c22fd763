// Package limiter bounds how many external tools run concurrently: a
// global cap shared by every phase plus a per-phase cap, both implemented
// as buffered-channel permit pools, and a startup preflight check that the
// process' open-file-descriptor limit can actually sustain that
// concurrency.
package limiter

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"ipcrawler/pkg/errors"
)

// fdOverhead is the number of file descriptors ipcrawler itself holds
// open (log file, report artifacts, stdio) before any scan subprocess is
// spawned.
const fdOverhead = 100

// fdPerScan is the number of file descriptors one concurrent scan
// subprocess is assumed to consume (stdout + stderr pipes).
const fdPerScan = 2

// RequiredFDs returns the minimum RLIMIT_NOFILE needed to sustain
// maxTotalScans concurrent subprocesses without descriptor exhaustion.
func RequiredFDs(maxTotalScans int) uint64 {
	return uint64(fdOverhead + fdPerScan*maxTotalScans)
}

// CheckFileDescriptors verifies the process' current soft RLIMIT_NOFILE
// is at least RequiredFDs(maxTotalScans), returning a KindOrganizer error
// with a remediation suggestion otherwise.
func CheckFileDescriptors(maxTotalScans int) error {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return errors.Organizer("failed to read file descriptor limit", err)
	}

	required := RequiredFDs(maxTotalScans)
	if rlim.Cur >= required {
		return nil
	}

	suggested := required * 2
	return errors.Organizer(fmt.Sprintf(
		"file descriptor limit too low: current=%d required=%d; raise it for this shell with `ulimit -n %d` or add a permanent limit for your user",
		rlim.Cur, required, suggested,
	), nil)
}

// Pool is a bounded permit pool implemented as a buffered channel used as
// a counting semaphore.
type Pool struct {
	permits chan struct{}
}

// NewPool creates a Pool that allows at most n concurrent holders.
func NewPool(n int) *Pool {
	return &Pool{permits: make(chan struct{}, n)}
}

// Acquire blocks until a permit is available or ctx is canceled.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool.
func (p *Pool) Release() {
	<-p.permits
}

// InUse returns the number of permits currently held.
func (p *Pool) InUse() int {
	return len(p.permits)
}

// Limiter holds the global scan permit pool plus one per-phase pool.
// Acquisition order is always global-then-phase; release is the reverse.
type Limiter struct {
	global *Pool
	phases map[string]*Pool
}

// New builds a Limiter with a global cap of maxTotal and named per-phase
// caps.
func New(maxTotal int, phaseCaps map[string]int) *Limiter {
	phases := make(map[string]*Pool, len(phaseCaps))
	for name, cap := range phaseCaps {
		phases[name] = NewPool(cap)
	}
	return &Limiter{global: NewPool(maxTotal), phases: phases}
}

// Acquire acquires a global permit followed by a permit in the named
// phase's pool, blocking on whichever is scarcer. On error (context
// cancellation) any already-acquired permit is released before returning.
func (l *Limiter) Acquire(ctx context.Context, phase string) (func(), error) {
	if err := l.global.Acquire(ctx); err != nil {
		return nil, err
	}
	pool, ok := l.phases[phase]
	if !ok {
		l.global.Release()
		return nil, fmt.Errorf("limiter: unknown phase %q", phase)
	}
	if err := pool.Acquire(ctx); err != nil {
		l.global.Release()
		return nil, err
	}
	return func() {
		pool.Release()
		l.global.Release()
	}, nil
}

// GlobalInUse returns the number of globally held permits.
func (l *Limiter) GlobalInUse() int {
	return l.global.InUse()
}

// PhaseInUse returns the number of permits held in the named phase's pool.
func (l *Limiter) PhaseInUse(phase string) int {
	if pool, ok := l.phases[phase]; ok {
		return pool.InUse()
	}
	return 0
}
