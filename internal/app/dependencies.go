package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orders/internal/health"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
	"github.com/vladislavdragonenkov/orders/internal/storage/postgres"
)

// Dependencies содержит репозитории и ресурсы, собранные под выбранный драйвер.
type Dependencies struct {
	Orders    domain.OrderRepository
	Items     domain.ItemRepository
	Customers domain.CustomerRepository
	Outbox    domain.OutboxRepository

	StorageChecker healthcheck.Checker

	store *postgres.Store
}

// NewDependencies собирает слой хранения по конфигурации.
// Для postgres опционально прогоняет миграции на старте.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &Dependencies{
			Orders:    memory.NewOrderRepository(store),
			Items:     memory.NewItemRepository(store),
			Customers: memory.NewCustomerRepository(store),
			Outbox:    memory.NewOutboxRepository(),
			StorageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return nil
			}),
		}, nil
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("database migrations applied")
		}
		logger.Info("using postgres storage")
		return &Dependencies{
			Orders:         postgres.NewOrderRepository(store),
			Items:          postgres.NewItemRepository(store),
			Customers:      postgres.NewCustomerRepository(store),
			Outbox:         postgres.NewOutboxRepository(store),
			StorageChecker: healthcheck.NewPingChecker("postgres", 2*time.Second, store.Ping),
			store:          store,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
