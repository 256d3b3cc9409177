package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/jimmy-lan/habits-restapi/internal/audit"
	"github.com/jimmy-lan/habits-restapi/internal/clock"
	"github.com/jimmy-lan/habits-restapi/internal/config"
	"github.com/jimmy-lan/habits-restapi/internal/events"
	"github.com/jimmy-lan/habits-restapi/internal/ledger"
	ledgerdomain "github.com/jimmy-lan/habits-restapi/internal/ledger/domain"
	ledgerservice "github.com/jimmy-lan/habits-restapi/internal/ledger/service"
	"github.com/jimmy-lan/habits-restapi/internal/migration"
	"github.com/jimmy-lan/habits-restapi/internal/observability/logger"
	"github.com/jimmy-lan/habits-restapi/internal/observability/metrics"
	"github.com/jimmy-lan/habits-restapi/internal/observability/tracing"
	"github.com/jimmy-lan/habits-restapi/internal/property"
	"github.com/jimmy-lan/habits-restapi/internal/quota"
	quotadomain "github.com/jimmy-lan/habits-restapi/internal/quota/domain"
	"github.com/jimmy-lan/habits-restapi/internal/quota/reset"
	"github.com/jimmy-lan/habits-restapi/internal/transaction"
	"github.com/jimmy-lan/habits-restapi/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,

		fx.Provide(func(cfg config.Config) quotadomain.Limits {
			return quotadomain.Limits{
				MaxTransactions:        cfg.Quota.MaxTransactions,
				MaxDeletedTransactions: cfg.Quota.MaxDeletedTransactions,
				MaxProperties:          cfg.Quota.MaxProperties,
				MaxDeletedProperties:   cfg.Quota.MaxDeletedProperties,
			}
		}),
		fx.Provide(func(cfg config.Config) ledgerservice.Config {
			return ledgerservice.Config{
				MaxAttempts:    cfg.Engine.MaxAttempts,
				AttemptTimeout: cfg.Engine.AttemptTimeout,
				RetryBackoff:   cfg.Engine.RetryBackoff,
			}
		}),
		fx.Provide(func(cfg config.Config) reset.Config {
			return reset.Config{
				Interval:  cfg.Reset.Interval,
				BatchSize: cfg.Reset.BatchSize,
			}
		}),
		fx.Provide(func(cfg config.Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.Tracing.Enabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
				ExporterProtocol: cfg.Tracing.ExporterProtocol,
				SamplingRatio:    cfg.Tracing.SamplingRatio,
			}
		}),
		fx.Invoke(tracing.NewProvider),
		fx.Invoke(func(cfg config.Config) {
			metrics.EngineWithConfig(metrics.Config{
				ServiceName: cfg.ServiceName,
				Environment: cfg.Environment,
			})
		}),

		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),

		events.Module,
		audit.Module,
		property.Module,
		transaction.Module,
		quota.Module,
		ledger.Module,
		reset.Module,

		fx.Invoke(func(ledgerdomain.Service) {}),
	)
	app.Run()
}
