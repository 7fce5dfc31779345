package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/you/chefkix/domain"
)

// PollKey is the scheduler key of the unread-count poll.
const PollKey = "notifications:poll"

// NotificationPoller keeps an approximate unread-notification count.
type NotificationPoller struct {
	mu        sync.Mutex
	unread    int
	gen       int // bumped by Reset so in-flight fetches are dropped
	polling   bool
	ctx       context.Context
	api       domain.NotificationAPI
	scheduler domain.Scheduler
	interval  time.Duration
}

// NewNotificationPoller creates a new poller
func NewNotificationPoller(api domain.NotificationAPI, scheduler domain.Scheduler, interval time.Duration) *NotificationPoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &NotificationPoller{api: api, scheduler: scheduler, interval: interval}
}

// StartPolling fetches immediately and then on every interval. Calling it
// while already polling does nothing.
func (p *NotificationPoller) StartPolling(ctx context.Context) {
	p.mu.Lock()
	if p.polling {
		p.mu.Unlock()
		return
	}
	p.polling = true
	p.ctx = ctx
	p.mu.Unlock()

	p.Refresh(ctx)
	p.scheduler.Every(PollKey, p.interval, func() {
		p.mu.Lock()
		pollCtx := p.ctx
		p.mu.Unlock()
		if pollCtx != nil {
			p.Refresh(pollCtx)
		}
	})
}

// StopPolling cancels the interval. It is safe to call when not polling.
func (p *NotificationPoller) StopPolling() {
	p.mu.Lock()
	wasPolling := p.polling
	p.polling = false
	p.ctx = nil
	p.mu.Unlock()

	if wasPolling {
		p.scheduler.Cancel(PollKey)
	}
}

// IsPolling reports whether polling is active
func (p *NotificationPoller) IsPolling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

// Refresh fetches the count once. Failures keep the last known value.
func (p *NotificationPoller) Refresh(ctx context.Context) {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	count, err := p.api.UnreadCount(ctx)
	if err != nil {
		log.Printf("notifications: unread count fetch failed: %v", err)
		return
	}
	if count < 0 {
		count = 0
	}
	p.mu.Lock()
	if p.gen == gen {
		p.unread = count
	}
	p.mu.Unlock()
}

// Unread returns the last known unread count
func (p *NotificationPoller) Unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unread
}

// MarkRead marks ids read, decrementing the count up front and restoring it
// if the backend refuses.
func (p *NotificationPoller) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	previous := p.adjust(func(n int) int { return n - len(ids) })

	if err := p.api.MarkRead(ctx, ids); err != nil {
		p.rollback(previous)
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// MarkAllRead zeroes the count up front and restores it if the backend refuses
func (p *NotificationPoller) MarkAllRead(ctx context.Context) error {
	previous := p.adjust(func(int) int { return 0 })

	if err := p.api.MarkAllRead(ctx); err != nil {
		p.rollback(previous)
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

// Reset zeroes the count and discards fetches still in flight
func (p *NotificationPoller) Reset() {
	p.mu.Lock()
	p.gen++
	p.unread = 0
	p.mu.Unlock()
}

func (p *NotificationPoller) adjust(fn func(int) int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.unread
	p.unread = fn(p.unread)
	if p.unread < 0 {
		p.unread = 0
	}
	return previous
}

func (p *NotificationPoller) rollback(previous int) {
	p.mu.Lock()
	p.unread = previous
	p.mu.Unlock()
}
