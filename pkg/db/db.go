package db

import (
	"github.com/glebarez/sqlite"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"

	"github.com/launchkitlabs/launchkit/internal/config"
	"github.com/launchkitlabs/launchkit/internal/observability"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

func Open(cfg config.Config, log *zap.Logger, tel *observability.Telemetry) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		dialector = postgres.Open(cfg.Database.DSN)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := gdb.Use(otelgorm.NewPlugin(otelgorm.WithTracerProvider(tel.TracerProvider()))); err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "sqlite" {
		// Pool stats only matter for the shared postgres pool. The plugin
		// registers with the default prometheus registry.
		if err := gdb.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          "launchkit",
			RefreshInterval: 15,
		})); err != nil {
			return nil, err
		}
	}

	log.Info("database connected", zap.String("driver", cfg.Database.Driver))
	return gdb, nil
}
