package main

import (
	"context"
	"net/http"

	"royale-monitor/internal/bot"
	"royale-monitor/internal/config"
	"royale-monitor/internal/constants"
	fxmodules "royale-monitor/internal/fx"
	"royale-monitor/internal/scheduler"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runOpsServer),
		fx.Invoke(runMonitor),
	).Run()
}

func runOpsServer(lc fx.Lifecycle, handler http.Handler, cfg *config.Config, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("ops server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("ops server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down ops server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("ops server shutdown failed")
				return err
			}
			logger.Info().Msg("ops server stopped gracefully")
			return nil
		},
	})
}

func runMonitor(lc fx.Lifecycle, b *bot.Bot, sched *scheduler.Scheduler, logger zerolog.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				sched.Run(runCtx)
				done <- struct{}{}
			}()
			go func() {
				b.Run(runCtx)
				done <- struct{}{}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			for i := 0; i < 2; i++ {
				select {
				case <-done:
				case <-ctx.Done():
					// a telegram long poll in flight cannot be interrupted;
					// don't hold up shutdown waiting for it
					logger.Warn().Msg("timed out waiting for pollers to stop")
					return nil
				}
			}
			logger.Info().Msg("pollers stopped")
			return nil
		},
	})
}
