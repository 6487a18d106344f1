package postgres

import (
	"context"
	"fmt"

	"marketcollector/config"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresClient struct {
	DB *gorm.DB
}

func NewClient(dsn string) (*PostgresClient, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresClient{DB: db}, nil
}

// InitializeAndMigrateMarketRecords connects to Postgres, optionally creates
// the DB, runs AutoMigrate for the quotes and trades tables, and applies
// connection-pool settings.
func InitializeAndMigrateMarketRecords(cfg config.PostgresConfig, env string) (*PostgresClient, error) {
	if cfg.CreateDB {
		if err := CreateDatabase(cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	client, err := NewClient(cfg.DSN(env))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.AutoMigrateMarketRecords(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if err := client.applyPoolSettings(cfg); err != nil {
		return nil, fmt.Errorf("failed to configure pool: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) AutoMigrateMarketRecords() error {
	if err := p.DB.AutoMigrate(&QuoteRecord{}, &TradeRecord{}); err != nil {
		return fmt.Errorf("auto-migrate market tables: %w", err)
	}
	return nil
}

// applyPoolSettings configures the underlying sql.DB pool. Independent insert
// calls from the poll and stream loops share this pool without caller-side
// locking.
func (p *PostgresClient) applyPoolSettings(cfg config.PostgresConfig) error {
	db, err := p.DB.DB()
	if err != nil {
		return err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

func (p *PostgresClient) IsHealthy(ctx context.Context) bool {
	db, err := p.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (p *PostgresClient) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
