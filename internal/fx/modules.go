package fx

import (
	"royale-monitor/internal/bot"
	"royale-monitor/internal/clash"
	"royale-monitor/internal/config"
	"royale-monitor/internal/logger"
	"royale-monitor/internal/ops"
	"royale-monitor/internal/scheduler"
	"royale-monitor/internal/service"
	"royale-monitor/internal/store"
	"royale-monitor/internal/telegram"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(store.New),
	// external clients
	fx.Provide(clash.New),
	fx.Provide(telegram.NewClient),
	fx.Provide(telegram.NewSink),
	// core
	fx.Provide(service.NewTrackerService),
	fx.Provide(scheduler.New),
	fx.Provide(bot.New),
	// ops surface
	fx.Provide(ops.NewRouter),
)
