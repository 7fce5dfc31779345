package app

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/api"
	"github.com/you/chefkix/internal/config"
	"github.com/you/chefkix/internal/infrastructure/auth"
	"github.com/you/chefkix/internal/infrastructure/database"
	"github.com/you/chefkix/internal/infrastructure/repositories"
	"github.com/you/chefkix/internal/infrastructure/transport"
	"github.com/you/chefkix/internal/scheduler"
	"github.com/you/chefkix/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure
	DB          *gorm.DB
	RedisClient *database.RedisClient
	StateStore  domain.StateStore
	Scheduler   domain.Scheduler
	Notifier    domain.Notifier
	Client      *api.Client
	Dialer      domain.ChatDialer

	// Backend endpoints
	AuthAPI         domain.AuthAPI
	SessionAPI      domain.SessionAPI
	ChatAPI         domain.ChatAPI
	NotificationAPI domain.NotificationAPI

	// Stores
	Auth          *services.AuthStore
	Tokens        *services.TokenManager
	Cooking       *services.CookingStore
	Blocked       *services.BlockedUsers
	Notifications *services.NotificationPoller
	Chat          *services.ChatService
}

// NewContainer creates and initializes all dependencies
func NewContainer(cfg *config.Config, notifier domain.Notifier) (*Container, error) {
	if notifier == nil {
		notifier = NewLogNotifier(nil)
	}
	container := &Container{Config: cfg, Notifier: notifier}

	// Initialize infrastructure
	if err := container.initStorage(); err != nil {
		container.Close()
		return nil, err
	}
	container.initAPI()

	// Initialize stores
	container.initServices()

	return container, nil
}

func (c *Container) initStorage() error {
	if err := c.Config.EnsureNamespace(); err != nil {
		return err
	}

	switch c.Config.StorageDriver {
	case config.DriverRedis:
		c.RedisClient = database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
		if err := c.RedisClient.Ping(context.Background()); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		c.StateStore = repositories.NewRedisStateRepository(c.RedisClient.Client, c.Config.Namespace)
	case config.DriverSQLite, config.DriverPostgres:
		dsn := c.Config.DSN
		if c.Config.StorageDriver == config.DriverSQLite {
			dsn = c.Config.SQLitePath()
		}
		db, err := database.Open(c.Config.StorageDriver, dsn)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Config.StorageDriver, err)
		}
		c.DB = db
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		c.StateStore = repositories.NewGormStateRepository(db, c.Config.Namespace)
	default:
		return fmt.Errorf("unknown storage driver %q", c.Config.StorageDriver)
	}

	log.Printf("storage: %s, namespace %s", c.Config.StorageDriver, c.Config.Namespace)
	return nil
}

func (c *Container) initAPI() {
	c.Client = api.NewClient(c.Config.APIBaseURL, c.Config.HTTPTimeout)
	c.AuthAPI = api.NewAuthAPI(c.Client)
	c.SessionAPI = api.NewSessionAPI(c.Client)
	c.ChatAPI = api.NewChatAPI(c.Client)
	c.NotificationAPI = api.NewNotificationAPI(c.Client)
}

func (c *Container) initServices() {
	c.Scheduler = scheduler.New()

	c.Auth = services.NewAuthStore(c.AuthAPI, c.StateStore)
	c.Tokens = services.NewTokenManager(c.Auth, c.AuthAPI, auth.NewJWTDecoder(), c.Config.RefreshMargin)
	// authenticated endpoints need the token manager, which needs the public refresh endpoint
	c.Client.SetTokenSource(c.Tokens)

	c.Dialer = transport.NewWebSocketDialer(c.Config.WSURL, c.Tokens, c.Config.ReconnectMin, c.Config.ReconnectMax)

	c.Cooking = services.NewCookingStore(c.SessionAPI, c.StateStore, c.Scheduler, c.Notifier, c.Config.TickInterval)
	c.Blocked = services.NewBlockedUsers(c.StateStore)
	c.Notifications = services.NewNotificationPoller(c.NotificationAPI, c.Scheduler, c.Config.PollInterval)
	c.Chat = services.NewChatService(c.ChatAPI, c.Dialer, c.Auth, c.Blocked, c.Config.ChatPageSize).
		WithConfirmTimeout(c.Config.ConfirmTimeout)

	// ending the session, including a rejected refresh, tears down everything user scoped
	c.Auth.OnLogout(func() {
		c.Notifications.StopPolling()
		c.Notifications.Reset()
		c.Cooking.Clear(context.Background())
		c.Notifier.Publish(domain.NewEvent(domain.UserLogoutEvent, ""))
	})
}

// Restore rehydrates persisted state. A backend failure while reconciling the
// cooking session is logged; the local snapshot is used instead.
func (c *Container) Restore(ctx context.Context) error {
	if err := c.Auth.Restore(ctx); err != nil {
		return err
	}
	if err := c.Blocked.Restore(ctx); err != nil {
		return err
	}
	if !c.Auth.IsAuthenticated() {
		return nil
	}
	if err := c.Cooking.Restore(ctx); err != nil {
		log.Printf("cooking: using local session, backend reconciliation failed: %v", err)
	}
	return nil
}

// Login signs in and announces it
func (c *Container) Login(ctx context.Context, identifier, password string) (*domain.User, error) {
	user, err := c.Auth.Login(ctx, identifier, password)
	if err != nil {
		c.Notifier.Toast(domain.ToastError, domain.UserMessage(err))
		return nil, err
	}
	c.Notifier.Publish(domain.NewEvent(domain.UserLoginEvent, "").WithMetadata("userId", user.ID))
	return user, nil
}

// Close stops scheduled work and closes all connections
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.CancelAll()
	}

	if c.RedisClient != nil {
		c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
