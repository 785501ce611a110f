package migration

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/config"
	ledgerdomain "github.com/launchkitlabs/launchkit/internal/ledger/domain"
	memberdomain "github.com/launchkitlabs/launchkit/internal/member/domain"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

//go:embed sql/*.sql
var migrations embed.FS

// Run applies the embedded SQL migrations on postgres. The sqlite driver is a
// dev/test convenience and uses AutoMigrate instead.
func Run(cfg config.Config, gdb *gorm.DB, log *zap.Logger) error {
	if cfg.Database.Driver != "postgres" {
		return gdb.AutoMigrate(
			&subscriptiondomain.Subscription{},
			&ledgerdomain.BillingEvent{},
			&memberdomain.Member{},
		)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "sql")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	log.Info("migrations applied")
	return nil
}
