//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/store"
	"github.com/clinicport/emergency-alerts/internal/store/memory"
	"github.com/clinicport/emergency-alerts/internal/store/mongostore"
	"github.com/clinicport/emergency-alerts/internal/store/redisstore"
)

// NewStore builds the alert store named by the configuration. The caller
// owns the returned store and must Close it.
func NewStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	logger.InfoKV(ctx, "Opening alert store", "backend", cfg.Store.Backend)

	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return memory.NewStore(), nil
	case config.StoreBackendMongo:
		s, err := mongostore.NewStore(ctx, cfg.Store.Mongo, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("open mongodb store: %w", err)
		}

		return s, nil
	case config.StoreBackendRedis:
		s, err := redisstore.NewStore(ctx, cfg.Store.Redis, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}

		return s, nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Store.Backend, config.ErrUnknownStoreBackend)
	}
}
