// Package scheduler runs keyed interval callbacks. Every registration can be
// enumerated and cancelled, so session teardown can prove nothing is left running.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/you/chefkix/domain"
)

type job struct {
	stop chan struct{}
}

// TickerScheduler implements domain.Scheduler with one ticker goroutine per key
type TickerScheduler struct {
	mu   sync.Mutex
	jobs map[string]*job
}

// New creates an empty scheduler
func New() *TickerScheduler {
	return &TickerScheduler{jobs: make(map[string]*job)}
}

// Every registers fn to run every interval under key, replacing any previous
// registration with the same key.
func (s *TickerScheduler) Every(key string, interval time.Duration, fn func()) {
	j := &job{stop: make(chan struct{})}

	s.mu.Lock()
	old := s.jobs[key]
	s.jobs[key] = j
	s.mu.Unlock()

	if old != nil {
		close(old.stop)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// stop wins over a tick that raced with it
				select {
				case <-j.stop:
					return
				default:
				}
				fn()
			case <-j.stop:
				return
			}
		}
	}()
}

// Cancel stops the job registered under key. Unknown keys are ignored.
func (s *TickerScheduler) Cancel(key string) {
	s.mu.Lock()
	j, ok := s.jobs[key]
	delete(s.jobs, key)
	s.mu.Unlock()

	if ok {
		close(j.stop)
	}
}

// CancelAll stops every job.
func (s *TickerScheduler) CancelAll() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[string]*job)
	s.mu.Unlock()

	for _, j := range jobs {
		close(j.stop)
	}
}

// Active returns the registered keys in sorted order.
func (s *TickerScheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.jobs))
	for k := range s.jobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ domain.Scheduler = (*TickerScheduler)(nil)
