package observability

import (
	"go.uber.org/zap"

	"github.com/launchkitlabs/launchkit/internal/config"
)

func NewLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Mode == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
