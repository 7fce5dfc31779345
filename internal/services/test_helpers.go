package services

import (
	"context"
	"testing"
	"time"

	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/mocks"
)

// cookingFixture bundles a CookingStore with the mocks behind it
type cookingFixture struct {
	store     *CookingStore
	api       *mocks.MockSessionAPI
	state     *mocks.MemoryStateStore
	scheduler *mocks.ManualScheduler
	notifier  *mocks.MockNotifier
}

func newCookingFixture(t *testing.T) *cookingFixture {
	t.Helper()

	f := &cookingFixture{
		api:       mocks.NewMockSessionAPI(),
		state:     mocks.NewMemoryStateStore(),
		scheduler: mocks.NewManualScheduler(),
		notifier:  mocks.NewMockNotifier(),
	}
	f.store = NewCookingStore(f.api, f.state, f.scheduler, f.notifier, time.Second)
	f.store.now = func() time.Time { return time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC) }
	return f
}

// threeStepSession is recipe R: three steps, the second with a 5 second timer
func threeStepSession(id string) *domain.CookingSession {
	return &domain.CookingSession{
		ID:          id,
		RecipeID:    "recipe-r",
		RecipeTitle: "Tomato soup",
		Status:      domain.StatusInProgress,
		Steps: []domain.RecipeStep{
			{Index: 0, Instruction: "Chop the tomatoes"},
			{Index: 1, Instruction: "Simmer", TimerSeconds: 5},
			{Index: 2, Instruction: "Blend and serve"},
		},
	}
}

// startThreeStep starts recipe R on the fixture
func startThreeStep(t *testing.T, f *cookingFixture) *domain.CookingSession {
	t.Helper()

	f.api.StartFunc = func(ctx context.Context, recipeID string) (*domain.CookingSession, error) {
		return threeStepSession("sess-1"), nil
	}
	session, err := f.store.Start(context.Background(), "recipe-r")
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	return session
}

// newAuthStoreForTest returns an AuthStore over an in-memory state store
func newAuthStoreForTest(t *testing.T, api domain.AuthAPI) (*AuthStore, *mocks.MemoryStateStore) {
	t.Helper()

	if api == nil {
		api = mocks.NewMockAuthAPI()
	}
	state := mocks.NewMemoryStateStore()
	return NewAuthStore(api, state), state
}

// signIn puts cred into store as if a login had happened
func signIn(t *testing.T, store *AuthStore, cred domain.Credential) {
	t.Helper()

	store.mu.Lock()
	store.state = domain.AuthState{
		User:            &domain.User{ID: "user-1", Username: "chef"},
		Credential:      cred,
		IsAuthenticated: true,
	}
	store.mu.Unlock()
}
