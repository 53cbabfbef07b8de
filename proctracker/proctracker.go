// Package proctracker monitors spawned analyzer processes so the host can
// report what is running and reap orphans at teardown.
package proctracker

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/teranos/langgate/logger"
)

// refreshInterval is how often tracked process names are re-read.
const refreshInterval = time.Second

// shellNames are wrapper processes whose interesting name is the child's.
var shellNames = map[string]bool{
	"sh":   true,
	"bash": true,
	"zsh":  true,
}

// Tracker watches a set of pids and keeps their current process names.
type Tracker struct {
	log *zap.SugaredLogger

	mu      sync.RWMutex
	tracked map[string]int32
	names   map[string]string

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTracker creates a tracker and starts its background refresh loop.
func NewTracker(log *zap.SugaredLogger) *Tracker {
	if log == nil {
		log = logger.Logger
	}
	t := &Tracker{
		log:     log.Named("proctracker"),
		tracked: make(map[string]int32),
		names:   make(map[string]string),
		stop:    make(chan struct{}),
	}
	go t.refreshLoop()
	return t
}

// Track starts watching pid under id, replacing any previous entry.
func (t *Tracker) Track(id string, pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[id] = int32(pid)
}

// Untrack stops watching the entry under id.
func (t *Tracker) Untrack(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, id)
	delete(t.names, id)
}

// Name returns the last observed process name for id.
func (t *Tracker) Name(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.names[id]
	return name, ok
}

// Pids returns a snapshot of the tracked id→pid set.
func (t *Tracker) Pids() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.tracked))
	for id, pid := range t.tracked {
		out[id] = int(pid)
	}
	return out
}

// KillAll kills every tracked process. Best-effort: a pid that is already
// gone or cannot be killed is logged and skipped.
func (t *Tracker) KillAll() {
	for id, pid := range t.Pids() {
		proc, err := process.NewProcess(int32(pid))
		if err != nil {
			// Already gone
			t.Untrack(id)
			continue
		}
		if err := proc.Kill(); err != nil {
			t.log.Warnw("Failed to kill tracked process",
				"id", id,
				"pid", pid,
				"error", err)
			continue
		}
		t.log.Infow("Killed tracked process",
			"id", id,
			"pid", pid)
		t.Untrack(id)
	}
}

// Stop ends the refresh loop. Tracked processes are left running.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

// refresh re-reads every tracked process's name. A shell wrapper reports its
// first non-shell child's name instead.
func (t *Tracker) refresh() {
	for id, pid := range t.Pids() {
		proc, err := process.NewProcess(int32(pid))
		if err != nil {
			t.mu.Lock()
			delete(t.names, id)
			t.mu.Unlock()
			continue
		}

		name, err := proc.Name()
		if err != nil {
			continue
		}

		if shellNames[name] {
			if child := firstNonShellChild(proc); child != "" {
				name = child
			}
		}

		t.mu.Lock()
		t.names[id] = name
		t.mu.Unlock()
	}
}

func firstNonShellChild(proc *process.Process) string {
	children, err := proc.Children()
	if err != nil {
		return ""
	}
	for _, child := range children {
		name, err := child.Name()
		if err != nil || shellNames[name] {
			continue
		}
		return name
	}
	return ""
}
