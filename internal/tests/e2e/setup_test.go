package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/you/chefkix/internal/app"
	"github.com/you/chefkix/internal/config"
	"github.com/you/chefkix/internal/mocks"
	testconfig "github.com/you/chefkix/internal/tests/config"
	"github.com/you/chefkix/internal/tests/fakebackend"
)

// harness is one client install talking to one fake backend
type harness struct {
	t        *testing.T
	backend  *fakebackend.Server
	redis    *miniredis.Miniredis
	notifier *mocks.MockNotifier
	opts     testconfig.Options
	c        *app.Container
}

var drivers = []string{config.DriverRedis, config.DriverSQLite}

func newHarness(t *testing.T, driver string, tune ...func(*testconfig.Options)) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		backend: fakebackend.New(t),
	}
	SeedBackend(h.backend)

	h.opts = testconfig.Options{
		APIURL:  h.backend.URL,
		WSURL:   h.backend.WSURL(),
		Driver:  driver,
		DataDir: t.TempDir(),
	}
	if driver == config.DriverRedis {
		h.redis = miniredis.RunT(t)
		h.opts.RedisAddr = h.redis.Addr()
	}
	for _, fn := range tune {
		fn(&h.opts)
	}

	h.c = h.start()
	return h
}

// start builds a fresh container over the same storage, as a relaunch would
func (h *harness) start() *app.Container {
	h.t.Helper()

	cfg := testconfig.LoadTestConfig(h.t, h.opts)
	h.notifier = mocks.NewMockNotifier()
	c, err := app.NewContainer(cfg, h.notifier)
	if err != nil {
		h.t.Fatalf("Failed to build container: %v", err)
	}
	h.t.Cleanup(func() { c.Close() })
	return c
}

// restart closes the running container and starts another one
func (h *harness) restart() {
	h.t.Helper()

	h.c.Close()
	h.c = h.start()
	if err := h.c.Restore(context.Background()); err != nil {
		h.t.Fatalf("Failed to restore: %v", err)
	}
}

func (h *harness) login() {
	h.t.Helper()

	if _, err := h.c.Login(context.Background(), ChefLogin, ChefPassword); err != nil {
		h.t.Fatalf("Failed to login: %v", err)
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time: %s", msg)
}
