package subscription

import (
	"github.com/launchkitlabs/launchkit/internal/subscription/repository"
	"github.com/launchkitlabs/launchkit/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
