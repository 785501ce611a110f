package member

import (
	"github.com/launchkitlabs/launchkit/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(service.NewService),
)
