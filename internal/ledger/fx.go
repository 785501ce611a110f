package ledger

import (
	"github.com/launchkitlabs/launchkit/internal/ledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(repository.Provide),
)
