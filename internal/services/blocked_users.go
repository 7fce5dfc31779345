package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/you/chefkix/domain"
)

// BlockedUsers is the persisted set of user ids the signed-in user has blocked.
// It is stored as a sorted list and held as a set.
type BlockedUsers struct {
	mu    sync.RWMutex
	ids   map[string]struct{}
	store domain.StateStore
}

// NewBlockedUsers creates an empty set backed by store
func NewBlockedUsers(store domain.StateStore) *BlockedUsers {
	return &BlockedUsers{ids: make(map[string]struct{}), store: store}
}

// Restore loads the persisted ids; missing or empty storage yields an empty set
func (b *BlockedUsers) Restore(ctx context.Context) error {
	var list []string
	found, err := b.store.Load(ctx, domain.BlockedUsersStorageKey, &list)
	if err != nil {
		return fmt.Errorf("failed to restore blocked users: %w", err)
	}

	ids := make(map[string]struct{}, len(list))
	if found {
		for _, id := range list {
			if id != "" {
				ids[id] = struct{}{}
			}
		}
	}

	b.mu.Lock()
	b.ids = ids
	b.mu.Unlock()
	return nil
}

// Block adds userID
func (b *BlockedUsers) Block(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("empty user id: %w", domain.ErrRejected)
	}
	b.mu.Lock()
	b.ids[userID] = struct{}{}
	b.mu.Unlock()
	return b.persist(ctx)
}

// Unblock removes userID
func (b *BlockedUsers) Unblock(ctx context.Context, userID string) error {
	b.mu.Lock()
	delete(b.ids, userID)
	b.mu.Unlock()
	return b.persist(ctx)
}

// IsBlocked reports whether userID is blocked
func (b *BlockedUsers) IsBlocked(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[userID]
	return ok
}

// List returns the blocked ids in sorted order
func (b *BlockedUsers) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list := make([]string, 0, len(b.ids))
	for id := range b.ids {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}

// Reset empties the set and its storage
func (b *BlockedUsers) Reset(ctx context.Context) {
	b.mu.Lock()
	b.ids = make(map[string]struct{})
	b.mu.Unlock()
	if err := b.store.Delete(ctx, domain.BlockedUsersStorageKey); err != nil {
		log.Printf("blocked users: failed to delete persisted set: %v", err)
	}
}

func (b *BlockedUsers) persist(ctx context.Context) error {
	if err := b.store.Save(ctx, domain.BlockedUsersStorageKey, b.List()); err != nil {
		return fmt.Errorf("failed to persist blocked users: %w", err)
	}
	return nil
}
