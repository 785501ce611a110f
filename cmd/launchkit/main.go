package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/launchkitlabs/launchkit/internal/clock"
	"github.com/launchkitlabs/launchkit/internal/config"
	"github.com/launchkitlabs/launchkit/internal/ledger"
	"github.com/launchkitlabs/launchkit/internal/member"
	"github.com/launchkitlabs/launchkit/internal/migration"
	"github.com/launchkitlabs/launchkit/internal/observability"
	"github.com/launchkitlabs/launchkit/internal/payment"
	"github.com/launchkitlabs/launchkit/internal/redis"
	"github.com/launchkitlabs/launchkit/internal/scheduler"
	"github.com/launchkitlabs/launchkit/internal/seat"
	"github.com/launchkitlabs/launchkit/internal/server"
	"github.com/launchkitlabs/launchkit/internal/subscription"
	"github.com/launchkitlabs/launchkit/pkg/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "launchkit",
		Short:   "LaunchKit CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newSweepCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the in-process scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the background scheduler only",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one grace-period sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep()
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		migration.Module,

		ledger.Module,
		subscription.Module,
		seat.Module,
		member.Module,
		payment.Module,
		scheduler.Module,

		server.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		ledger.Module,
		subscription.Module,
		scheduler.Module,

		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runSweep() error {
	var sched *scheduler.Scheduler
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		ledger.Module,
		subscription.Module,
		scheduler.Module,

		fx.Populate(&sched),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("sweep startup failed: %w", err)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	return sched.SweepGracePeriods(ctx)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
	})
}
