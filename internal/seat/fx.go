package seat

import (
	"github.com/launchkitlabs/launchkit/internal/seat/service"
	"go.uber.org/fx"
)

var Module = fx.Module("seat.reconciler",
	fx.Provide(service.NewReconciler),
)
