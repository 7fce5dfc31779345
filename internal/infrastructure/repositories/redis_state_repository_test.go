package repositories

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/you/chefkix/domain"
)

// setupTestRedis creates an in-memory Redis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() {
		mr.Close()
	})

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return client, mr
}

func TestRedisStateRepository_SaveLoad(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     *domain.AuthState
		wantFound bool
	}{
		{
			name: "auth state round trip",
			key:  domain.AuthStorageKey,
			value: &domain.AuthState{
				User:            &domain.User{ID: "u1", Username: "gordon"},
				Credential:      domain.Credential{AccessToken: "a", RefreshToken: "r"},
				IsAuthenticated: true,
			},
			wantFound: true,
		},
		{
			name:      "missing key",
			key:       "never-written",
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupTestRedis(t)
			repo := NewRedisStateRepository(client, "install-1")
			ctx := context.Background()

			if tt.value != nil {
				if err := repo.Save(ctx, tt.key, tt.value); err != nil {
					t.Fatalf("unexpected save error: %v", err)
				}
			}

			var got domain.AuthState
			found, err := repo.Load(ctx, tt.key, &got)
			if err != nil {
				t.Fatalf("unexpected load error: %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("expected found=%v, got %v", tt.wantFound, found)
			}
			if !found {
				return
			}
			if got.User == nil || got.User.ID != tt.value.User.ID {
				t.Errorf("expected user %v, got %v", tt.value.User, got.User)
			}
			if got.Credential != tt.value.Credential {
				t.Errorf("expected credential %v, got %v", tt.value.Credential, got.Credential)
			}
		})
	}
}

func TestRedisStateRepository_NamespacedKeys(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	a := NewRedisStateRepository(client, "install-a")
	b := NewRedisStateRepository(client, "install-b")

	if err := a.Save(ctx, domain.BlockedUsersStorageKey, []string{"u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !mr.Exists("chefkix:install-a:" + domain.BlockedUsersStorageKey) {
		t.Error("expected key to be stored under the install namespace")
	}

	var ids []string
	found, err := b.Load(ctx, domain.BlockedUsersStorageKey, &ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("namespaces must not see each other's state")
	}
}

func TestRedisStateRepository_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewRedisStateRepository(client, "install-1")
	ctx := context.Background()

	if err := repo.Save(ctx, domain.CookingSessionKey, map[string]string{"id": "s1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, domain.CookingSessionKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var v map[string]string
	found, err := repo.Load(ctx, domain.CookingSessionKey, &v)
	if err != nil || found {
		t.Errorf("expected deleted key to be absent, found=%v err=%v", found, err)
	}

	// deleting twice is fine
	if err := repo.Delete(ctx, domain.CookingSessionKey); err != nil {
		t.Errorf("unexpected error on second delete: %v", err)
	}
}

func TestRedisStateRepository_CorruptValue(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewRedisStateRepository(client, "install-1")

	if err := mr.Set("chefkix:install-1:"+domain.AuthStorageKey, "{not json"); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	var got domain.AuthState
	if _, err := repo.Load(context.Background(), domain.AuthStorageKey, &got); err == nil {
		t.Error("expected unmarshal error for corrupt value")
	}
}
