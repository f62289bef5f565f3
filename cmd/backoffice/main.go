package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/client"
	"github.com/nwl-centralize/backoffice/internal/config"
	"github.com/nwl-centralize/backoffice/internal/console"
	"github.com/nwl-centralize/backoffice/internal/credentials"
	"github.com/nwl-centralize/backoffice/internal/management"
	"github.com/nwl-centralize/backoffice/internal/refresh"
	"github.com/nwl-centralize/backoffice/internal/sessionwatch"
	"github.com/nwl-centralize/backoffice/internal/transport"
	"github.com/nwl-centralize/backoffice/internal/views"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

func main() {
	slog.SetDefault(jsonLogger)
	ch := config.NewConfigHandler()
	boConfig, err := ch.Config()
	if err != nil {
		slog.Error("loading the configuration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded config", "config", boConfig)
	if boConfig.DebugMode {
		logLevel.Set(slog.LevelDebug)
	}
	// Only the log level can change while running, everything else needs a restart
	ch.HandleChanges(func(c config.Config, err error) {
		if err != nil {
			slog.Error("the changed configuration is not valid, keeping the current one", "error", err)
			return
		}
		if c.DebugMode {
			logLevel.Set(slog.LevelDebug)
		} else {
			logLevel.Set(slog.LevelInfo)
		}
	})
	ch.Watch()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Sentry
	if boConfig.Monitoring.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              string(boConfig.Monitoring.Sentry.Dsn),
			TracesSampleRate: boConfig.Monitoring.Sentry.SampleRate,
			EnableTracing:    boConfig.Monitoring.Sentry.SampleRate > 0,
			Environment:      boConfig.Monitoring.Sentry.Environment,
		})
		if err != nil {
			slog.Error("sentry initialization failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}
	// Resolve the backend URLs
	resolver := config.NewRuntimeResolver(boConfig.APIs, &http.Client{Timeout: boConfig.Client.RequestTimeout})
	apis := resolver.APIs(ctx)
	// Credential storage
	rdb := credentials.NewRedisClient(boConfig.Credentials.Redis)
	defer rdb.Close()
	namespace := credentials.KeyNamespace(boConfig.Credentials.KeyPrefix, boConfig.Credentials.Profile)
	teardown, err := credentials.NewTeardownSignal(credentials.WithPubSubClient(rdb), credentials.WithNamespace(namespace))
	if err != nil {
		slog.Error("teardown signal initialization failed", "error", err)
		os.Exit(1)
	}
	durable, err := credentials.NewRedisMedium(
		credentials.WithRedisClient(rdb),
		credentials.WithCredentialsConfig(boConfig.Credentials),
	)
	if err != nil {
		slog.Error("durable credential medium initialization failed", "error", err)
		os.Exit(1)
	}
	if boConfig.Credentials.TokenEncryption.Enabled {
		slog.Info("durable credentials are encrypted")
	}
	store, err := credentials.NewStore(credentials.WithDurableMedium(durable), credentials.WithChangePublisher(teardown))
	if err != nil {
		slog.Error("credential store initialization failed", "error", err)
		os.Exit(1)
	}
	// Transports to both backends, the system backend refreshes its tokens against the user backend
	userTransport, err := transport.NewTransport(
		transport.WithBaseURL(apis.UserAPIURL),
		transport.WithTimeout(boConfig.Client.RequestTimeout),
		transport.WithTokenSource(store),
	)
	if err != nil {
		slog.Error("user api transport initialization failed", "error", err)
		os.Exit(1)
	}
	systemTransport, err := transport.NewTransport(
		transport.WithBaseURL(apis.SystemAPIURL),
		transport.WithTimeout(boConfig.Client.RequestTimeout),
		transport.WithTokenSource(store),
	)
	if err != nil {
		slog.Error("system api transport initialization failed", "error", err)
		os.Exit(1)
	}
	var refreshMetrics *refresh.Metrics
	if boConfig.Monitoring.Prometheus.Enabled {
		refreshMetrics, err = refresh.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			slog.Error("refresh metrics registration failed", "error", err)
			os.Exit(1)
		}
	}
	boundary := console.NewBoundary()
	notifications := console.NewNotifications(0)
	// Both clients read the one stored session and refresh it against the user api, so they share
	// the refresh coordinator and the notification window
	coordinator, err := client.NewRefreshCoordinator(
		userTransport,
		store,
		boundary,
		refresh.WithBackend("user"),
		refresh.WithTimeout(boConfig.Client.RefreshTimeout),
		refresh.WithMetrics(refreshMetrics),
	)
	if err != nil {
		slog.Error("refresh coordinator initialization failed", "error", err)
		os.Exit(1)
	}
	notifier := client.NewDebouncedNotifier(notifications, boConfig.Client.NotifyDebounce)
	clientOptions := []client.ClientOption{
		client.WithStore(store),
		client.WithLoginBoundary(boundary),
		client.WithNotifier(notifier),
		client.WithRequiredRole(boConfig.Client.RequiredRole),
		client.WithCoordinator(coordinator),
	}
	userClient, err := client.NewClient(append(clientOptions, client.WithName("user"), client.WithSender(userTransport))...)
	if err != nil {
		slog.Error("user api client initialization failed", "error", err)
		os.Exit(1)
	}
	systemClient, err := client.NewClient(append(clientOptions, client.WithName("system"), client.WithSender(systemTransport))...)
	if err != nil {
		slog.Error("system api client initialization failed", "error", err)
		os.Exit(1)
	}
	// End the session here when another console process ends it
	listener, err := teardown.Subscribe(ctx)
	if err != nil {
		slog.Error("subscribing to the session teardown failed", "error", err)
		os.Exit(1)
	}
	defer listener.Close()
	go listener.Run(ctx, store, func(ctx context.Context) {
		boundary.RedirectToLogin(ctx, fmt.Errorf("%w: the session ended in another console", apperrors.ErrSessionExpired))
	})
	// Background session check
	if boConfig.Client.VerifyInterval > 0 {
		watcher, err := sessionwatch.NewWatcher(
			sessionwatch.WithInterval(boConfig.Client.VerifyInterval),
			sessionwatch.WithSessionReader(store),
			sessionwatch.WithVerifier(userClient),
		)
		if err != nil {
			slog.Error("session watch initialization failed", "error", err)
			os.Exit(1)
		}
		scheduler, err := watcher.GetScheduler()
		if err != nil {
			slog.Error("session watch scheduling failed", "error", err)
			os.Exit(1)
		}
		scheduler.StartAsync()
		defer scheduler.Stop()
	}
	// Setup
	e := echo.New()
	e.Pre(middleware.RequestID(), middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	// echo prints these without going through slog, the address is logged on start instead
	e.HideBanner = true
	e.HidePort = true
	// Health check
	e.GET("/health", func(c echo.Context) error {
		err := rdb.Ping(c.Request().Context()).Err()
		if err != nil {
			slog.Error("health check failed", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	// Version endpoint
	buildInfo, ok := debug.ReadBuildInfo()
	version := ""
	if ok && buildInfo != nil {
		version = buildInfo.Main.Version
	}
	e.GET("/version", func(c echo.Context) error {
		return c.String(http.StatusOK, version)
	})
	// Console
	consoleServer, err := console.NewServer(
		console.WithAuthenticator(userClient),
		console.WithUsers(management.NewUsers(userClient)),
		console.WithDevices(management.NewDevices(systemClient)),
		console.WithProjects(management.NewProjects(userClient)),
		console.WithBoundary(boundary),
		console.WithNotifications(notifications),
	)
	if err != nil {
		slog.Error("console handlers initialization failed", "error", err)
		os.Exit(1)
	}
	consoleServer.RegisterHandlers(e, commonMiddlewares...)
	renderer, err := views.NewTemplateRenderer()
	if err != nil {
		slog.Error("loading the page templates failed", "error", err)
		os.Exit(1)
	}
	renderer.Register(e)
	// Rate limiting
	if boConfig.Server.RateLimits.Enabled {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(boConfig.Server.RateLimits.Rate),
					Burst:     boConfig.Server.RateLimits.Burst,
					ExpiresIn: 3 * time.Minute,
				}),
		),
		)
	}
	// CORS
	if len(boConfig.Server.AllowOrigin) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     boConfig.Server.AllowOrigin,
			AllowCredentials: true,
		}))
	}
	if boConfig.Monitoring.Sentry.Enabled {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	// Prometheus
	if boConfig.Monitoring.Prometheus.Enabled {
		e.Use(echoprometheus.NewMiddleware("backoffice"))
		go func() {
			metrics := echo.New()
			metrics.HideBanner = true
			metrics.HidePort = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			err := metrics.Start(fmt.Sprintf(":%d", boConfig.Monitoring.Prometheus.Port))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("prometheus server failed to start", "error", err)
				os.Exit(1)
			}
		}()
	}
	// Start server
	address := fmt.Sprintf("%s:%d", boConfig.Server.Host, boConfig.Server.Port)
	slog.Info("starting the console server", "address", address)
	go func() {
		err := e.Start(address)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("starting the server failed", "error", err)
			os.Exit(1)
		}
	}()
	// Shut down on SIGINT or SIGTERM, giving in-flight requests 10 seconds
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutting down the server gracefully failed", "error", err)
		os.Exit(1)
	}
}
