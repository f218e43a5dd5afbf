package web

import (
	"sync"
	"time"
)

// heartbeatMonitor decides when the page has gone away. The startup
// grace covers the gap between binding the port and the browser's first
// beat; after that, silence longer than the timeout means the tab was
// closed.
type heartbeatMonitor struct {
	grace   time.Duration
	timeout time.Duration

	mu        sync.Mutex
	startedAt time.Time
	lastBeat  time.Time
}

func newHeartbeatMonitor(grace, timeout time.Duration) *heartbeatMonitor {
	now := time.Now()
	return &heartbeatMonitor{
		grace:     grace,
		timeout:   timeout,
		startedAt: now,
		lastBeat:  now,
	}
}

// Beat records a heartbeat from the page.
func (m *heartbeatMonitor) Beat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBeat = time.Now()
}

// Expired reports whether the heartbeat has lapsed, and for how long.
func (m *heartbeatMonitor) Expired() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.startedAt) < m.grace {
		return 0, false
	}
	silent := time.Since(m.lastBeat)
	if silent > m.timeout {
		return silent, true
	}
	return 0, false
}
