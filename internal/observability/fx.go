package observability

import "go.uber.org/fx"

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewRegistry),
	fx.Provide(NewMetrics),
	fx.Provide(NewTelemetry),
	fx.Invoke(registerTelemetryShutdown),
)

func registerTelemetryShutdown(lc fx.Lifecycle, tel *Telemetry) {
	lc.Append(fx.Hook{OnStop: tel.Shutdown})
}
