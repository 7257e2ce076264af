package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/linerelay/linerelay/internal/assistant"
	"github.com/linerelay/linerelay/internal/channel/adapters/line"
	"github.com/linerelay/linerelay/internal/config"
	"github.com/linerelay/linerelay/internal/download"
	"github.com/linerelay/linerelay/internal/flex"
	"github.com/linerelay/linerelay/internal/handlers"
	"github.com/linerelay/linerelay/internal/healthcheck"
	downloadchecker "github.com/linerelay/linerelay/internal/healthcheck/checkers/download"
	relaychecker "github.com/linerelay/linerelay/internal/healthcheck/checkers/relay"
	"github.com/linerelay/linerelay/internal/logger"
	"github.com/linerelay/linerelay/internal/relay"
	"github.com/linerelay/linerelay/internal/schedule"
	"github.com/linerelay/linerelay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LINE webhook server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	app := fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideGeminiFactory,
			provideAssistant,
			provideConverter,
			provideMessagingAPI,
			line.NewDispatcher,
			provideRelay,
			provideRelayPool,
			provideDownloadService,
			schedule.NewService,
			provideHealthChecker(downloadchecker.NewChecker),
			provideHealthChecker(relaychecker.NewChecker),
			provideServerHandler(providePingHandler),
			provideServerHandler(line.NewWebhookServerHandler),
			provideServerHandler(handlers.NewDownloadHandler),
			provideServer,
		),
		fx.Invoke(
			startRelayPool,
			startDownloadService,
			startMaintenance,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideHealthChecker(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(healthcheck.Checker)),
		fx.ResultTags(`group:"health_checkers"`),
	)
}

type pingParams struct {
	fx.In
	Logger   *slog.Logger
	Checkers []healthcheck.Checker `group:"health_checkers"`
}

func providePingHandler(params pingParams) *handlers.PingHandler {
	return handlers.NewPingHandler(params.Logger, params.Checkers)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideGeminiFactory(log *slog.Logger, cfg config.Config) (*assistant.GeminiFactory, error) {
	return assistant.NewGeminiFactory(context.Background(), log, cfg.Chat.APIKey, cfg.Chat.Model, cfg.Chat.GoogleSearch)
}

func provideAssistant(log *slog.Logger, cfg config.Config, factory *assistant.GeminiFactory) *assistant.Service {
	return assistant.NewService(log, factory, cfg.Chat.Timeout(), cfg.Chat.IdleTTL(), assistant.Messages{
		Apology:    cfg.Messages.Apology,
		NoResponse: cfg.Messages.NoResponse,
	})
}

func provideConverter(log *slog.Logger, cfg config.Config) *flex.Converter {
	return flex.NewConverter(log, cfg.Messages.AltText)
}

func provideMessagingAPI(cfg config.Config) (*messaging_api.MessagingApiAPI, error) {
	return line.NewMessagingAPI(cfg.Line.ChannelAccessToken)
}

func provideRelay(log *slog.Logger, svc *assistant.Service, conv *flex.Converter, dispatcher *line.Dispatcher) *relay.Relay {
	return relay.NewRelay(log, svc, conv, dispatcher)
}

func provideRelayPool(log *slog.Logger, cfg config.Config, r *relay.Relay) *relay.Pool {
	return relay.NewPool(log, cfg.Relay.Workers, cfg.Relay.QueueSize, r.Handle)
}

func provideDownloadService(log *slog.Logger, cfg config.Config) *download.Service {
	return download.NewService(log, cfg.Download, nil)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	if params.Config.Auth.JWTSecret == "" {
		params.Logger.Warn("auth.jwt_secret is not set, the download API will reject every request")
	}
	return server.NewServer(params.Logger, server.Options{
		Addr:        params.Config.Server.Addr,
		JWTSecret:   params.Config.Auth.JWTSecret,
		PublicPaths: []string{params.Config.Line.CallbackPath},
	}, params.ServerHandlers...)
}

func startRelayPool(lc fx.Lifecycle, pool *relay.Pool) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { pool.Start(ctx); return nil },
		OnStop: func(stopCtx context.Context) error {
			defer cancel()
			return pool.Stop(stopCtx)
		},
	})
}

func startDownloadService(lc fx.Lifecycle, svc *download.Service) {
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return svc.Stop(ctx) }})
}

func startMaintenance(lc fx.Lifecycle, cfg config.Config, scheduler *schedule.Service, chat *assistant.Service, downloads *download.Service) error {
	if err := scheduler.Add("prune_sessions", cfg.Chat.PruneSchedule, func(_ context.Context, now time.Time) {
		chat.PruneIdle(now)
	}); err != nil {
		return err
	}
	if err := scheduler.Add("prune_downloads", cfg.Download.PruneSchedule, func(_ context.Context, now time.Time) {
		downloads.Prune(now)
	}); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { scheduler.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return scheduler.Stop(ctx) },
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting linerelay",
				slog.String("addr", cfg.Server.Addr),
				slog.String("callback", cfg.Line.CallbackPath),
				slog.String("model", cfg.Chat.Model),
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
