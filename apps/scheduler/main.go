package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/launchkitlabs/launchkit/internal/clock"
	"github.com/launchkitlabs/launchkit/internal/config"
	"github.com/launchkitlabs/launchkit/internal/ledger"
	"github.com/launchkitlabs/launchkit/internal/migration"
	"github.com/launchkitlabs/launchkit/internal/observability"
	"github.com/launchkitlabs/launchkit/internal/scheduler"
	"github.com/launchkitlabs/launchkit/internal/subscription"
	"github.com/launchkitlabs/launchkit/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services required by the scheduler
		ledger.Module,
		subscription.Module,
		scheduler.Module,

		// No server module!
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
	})
}
