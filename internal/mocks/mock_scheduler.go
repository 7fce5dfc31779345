package mocks

import (
	"sort"
	"sync"
	"time"

	"github.com/you/chefkix/domain"
)

// ManualScheduler implements domain.Scheduler without real time; tests call Fire
type ManualScheduler struct {
	mu        sync.Mutex
	jobs      map[string]func()
	intervals map[string]time.Duration
}

// NewManualScheduler creates a new ManualScheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		jobs:      make(map[string]func()),
		intervals: make(map[string]time.Duration),
	}
}

// Every registers fn under key
func (m *ManualScheduler) Every(key string, interval time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[key] = fn
	m.intervals[key] = interval
}

// Cancel removes key
func (m *ManualScheduler) Cancel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, key)
	delete(m.intervals, key)
}

// CancelAll removes every job
func (m *ManualScheduler) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[string]func())
	m.intervals = make(map[string]time.Duration)
}

// Active returns registered keys in sorted order
func (m *ManualScheduler) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interval returns the interval key was registered with
func (m *ManualScheduler) Interval(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intervals[key]
}

// Fire runs the job under key n times; it reports false if key is not registered
func (m *ManualScheduler) Fire(key string, n int) bool {
	for i := 0; i < n; i++ {
		m.mu.Lock()
		fn, ok := m.jobs[key]
		m.mu.Unlock()
		if !ok {
			return i > 0
		}
		fn()
	}
	return true
}

// Compile-time interface compliance verification
var _ domain.Scheduler = (*ManualScheduler)(nil)
