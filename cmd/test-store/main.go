package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/config"
	"github.com/you/chefkix/internal/infrastructure/database"
	"github.com/you/chefkix/internal/infrastructure/repositories"
)

// Storage connectivity check for the configured state store
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.EnsureNamespace(); err != nil {
		log.Fatalf("namespace: %v", err)
	}

	fmt.Println("chefkix state store check")
	fmt.Println("=========================")
	fmt.Printf("Driver:    %s\n", cfg.StorageDriver)
	fmt.Printf("Namespace: %s\n", cfg.Namespace)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store domain.StateStore
	switch cfg.StorageDriver {
	case config.DriverRedis:
		fmt.Printf("Connecting to: %s\n", cfg.RedisAddr)
		rdb := database.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			log.Fatalf("Failed to ping redis: %v", err)
		}
		keys, err := rdb.NamespaceKeys(ctx, cfg.Namespace)
		if err != nil {
			log.Fatalf("Failed to list keys: %v", err)
		}
		fmt.Printf("Keys:      %d stored for this install\n", len(keys))
		store = repositories.NewRedisStateRepository(rdb.Client, cfg.Namespace)
	default:
		dsn := cfg.DSN
		if cfg.StorageDriver == config.DriverSQLite {
			dsn = cfg.SQLitePath()
		}
		fmt.Printf("Connecting to: %s\n", dsn)
		db, err := database.Open(cfg.StorageDriver, dsn)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get underlying sql.DB: %v", err)
		}
		defer sqlDB.Close()
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run auto-migration: %v", err)
		}
		fmt.Println("✓ AutoMigrate completed successfully")
		store = repositories.NewGormStateRepository(db, cfg.Namespace)
	}
	fmt.Println("✓ Connection successful")

	const checkKey = "store-check"
	sample := map[string]string{"at": time.Now().UTC().Format(time.RFC3339)}
	if err := store.Save(ctx, checkKey, sample); err != nil {
		log.Fatalf("Failed to write check key: %v", err)
	}
	var back map[string]string
	found, err := store.Load(ctx, checkKey, &back)
	if err != nil || !found || back["at"] != sample["at"] {
		log.Fatalf("Round trip failed: found=%v err=%v", found, err)
	}
	if err := store.Delete(ctx, checkKey); err != nil {
		log.Fatalf("Failed to delete check key: %v", err)
	}
	fmt.Println("✓ Read/write round trip")

	for _, key := range []string{domain.AuthStorageKey, domain.CookingSessionKey, domain.BlockedUsersStorageKey} {
		var raw interface{}
		found, err := store.Load(ctx, key, &raw)
		switch {
		case err != nil:
			fmt.Printf("  %-22s unreadable: %v\n", key, err)
		case found:
			fmt.Printf("  %-22s present\n", key)
		default:
			fmt.Printf("  %-22s empty\n", key)
		}
	}

	fmt.Println("\n🎉 State store is ready")
}
