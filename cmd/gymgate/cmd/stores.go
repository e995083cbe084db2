package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"

	"github.com/soroboxing/gymgate/internal/config"
	"github.com/soroboxing/gymgate/storage"
	bboltstorage "github.com/soroboxing/gymgate/storage/bbolt"
	"github.com/soroboxing/gymgate/storage/memory"
	"github.com/soroboxing/gymgate/storage/postgres"
	redisstorage "github.com/soroboxing/gymgate/storage/redis"
)

const bboltFileName = "gymgate.db"

type backends struct {
	members  storage.MemberStore
	sessions storage.SessionStore
	closers  []func()
}

// Close releases the backends in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	switch cfg.Store {
	case config.StoreMemory:
		s := memory.NewStore()
		b.members, b.sessions = s, s
	case config.StoreBbolt:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path := filepath.Join(cfg.DataDir, bboltFileName)
		s, err := bboltstorage.NewStoreFromFile(path, &bbolt.Options{Timeout: 2 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s (is a server holding it?): %w", path, err)
		}
		b.members, b.sessions = s, s
		b.closers = append(b.closers, func() { s.Close() })
	case config.StorePostgres:
		s, err := postgres.NewStoreFromDSN(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.members, b.sessions = s, s
		b.closers = append(b.closers, s.Close)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.SessionStore == config.SessionStoreRedis {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			b.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		b.sessions = redisstorage.NewSessionStore(client)
		b.closers = append(b.closers, func() { client.Close() })
	}

	return b, nil
}
