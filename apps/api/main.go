// @title           LaunchKit API
// @version         1.0
// @description     LaunchKit subscription lifecycle & access control API

// @contact.name   API Support
// @contact.email  support@launchkitlabs.com

// @host      localhost:8080
// @BasePath  /api
// @Schemes 	http https

package main

import (
	"github.com/bwmarrin/snowflake"
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
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
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
