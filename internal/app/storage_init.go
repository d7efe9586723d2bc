package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/domain"
	"github.com/skooli/storefront/internal/storage/memory"
	"github.com/skooli/storefront/internal/storage/postgres"
)

// runtimeDependencies — набор репозиториев, собранный под выбранный
// storage-драйвер. close освобождает ресурсы хранилища.
type runtimeDependencies struct {
	products        domain.ProductRepository
	carts           domain.CartRepository
	repo            domain.OrderRepository
	payments        domain.PaymentRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository

	ping  func(ctx context.Context) error
	close func() error
}

// initRuntimeDependencies собирает репозитории по конфигурации.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		products := memory.NewProductRepository()
		seedDemoCatalog(products)
		logger.Info("using in-memory storage with demo catalog")

		return &runtimeDependencies{
			products:        products,
			carts:           memory.NewCartRepository(),
			repo:            memory.NewOrderRepository(),
			payments:        memory.NewPaymentRepository(),
			outboxRepo:      memory.NewOutboxRepository(),
			timelineRepo:    memory.NewTimelineRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			ping:            func(context.Context) error { return nil },
			close:           func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires SKOOLI_POSTGRES_DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}

		return &runtimeDependencies{
			products:        postgres.NewProductRepository(store),
			carts:           postgres.NewCartRepository(store),
			repo:            postgres.NewOrderRepository(store),
			payments:        postgres.NewPaymentRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			timelineRepo:    postgres.NewTimelineRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			ping:            store.Ping,
			close:           store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// seedDemoCatalog наполняет in-memory каталог школьными товарами,
// чтобы витрина была пригодна к работе сразу после запуска.
func seedDemoCatalog(products interface{ Seed(product domain.Product) }) {
	for _, p := range demoCatalog() {
		products.Seed(p)
	}
}

func demoCatalog() []domain.Product {
	return []domain.Product{
		{ID: "prod-pen-blue", SKU: "PEN-BLUE", Name: "Blue Ballpoint Pen", PriceMinor: 2500, StockQty: 500, Active: true},
		{ID: "prod-book-96", SKU: "BOOK-EX96", Name: "Exercise Book 96pg", PriceMinor: 4000, StockQty: 300, Active: true},
		{ID: "prod-pencil-hb", SKU: "PENCIL-HB", Name: "HB Pencil", PriceMinor: 1500, StockQty: 400, Active: true},
		{ID: "prod-mathset", SKU: "MATHSET-OX", Name: "Oxford Math Set", PriceMinor: 12000, StockQty: 120, Active: true},
		{ID: "prod-bag-std", SKU: "BAG-STD", Name: "School Bag", PriceMinor: 85000, StockQty: 45, Active: true},
		{ID: "prod-uniform", SKU: "UNIFORM-M", Name: "School Uniform (M)", PriceMinor: 60000, StockQty: 0, Active: false},
	}
}
