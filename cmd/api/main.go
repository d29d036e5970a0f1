package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/cache"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/config"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/database"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/downloader"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/manifest"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/queue"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/storage"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/webhook"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/workspace"
)

func main() {
	issueToken := pflag.String("issue-token", "", "print a bearer token for the given subject and exit")
	tokenTTL := pflag.Duration("token-ttl", 30*24*time.Hour, "lifetime of a token printed by --issue-token")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if cfg.Auth.JWTSecret == "" {
			fmt.Fprintln(os.Stderr, "auth.jwtSecret must be set to issue tokens")
			os.Exit(1)
		}
		token, err := middleware.GenerateToken(cfg.Auth.JWTSecret, *issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.Server.Mode)

	// Initialize tracing
	tracerCloser, err := tracing.Init(cfg.Tracing)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracerCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize workspaces
	workspaces, err := workspace.NewManager(afero.NewOsFs(), cfg.Workspace.Root)
	if err != nil {
		logger.Fatalf("Failed to initialize workspace root: %v", err)
	}
	logger.Infof("Workspaces under %s", cfg.Workspace.Root)
	go sweepWorkspaces(ctx, workspaces, cfg.Workspace.Retention, cfg.Workspace.SweepInterval, logger)

	ffmpeg := transcoder.NewFFmpeg(cfg.Transcoder.FFmpegPath, cfg.Transcoder.FFprobePath, cfg.Transcoder.AudioCodec)
	side := initSideChannels(ctx, cfg, logger)
	defer side.close()

	svc := downloader.NewService(manifest.NewClient(cfg.YouTube), ffmpeg, logger, side.opts...)

	api := &API{
		downloader: svc,
		workspaces: workspaces,
		history:    side.history,
		checks:     side.checks,
		logger:     logger,
	}

	routerOpts := routerOptions{}
	if cfg.Auth.Enabled {
		routerOpts.JWTSecret = cfg.Auth.JWTSecret
		logger.Info("JWT authentication enabled")
	}
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go rl.Cleanup(ctx, 10*time.Minute)
		routerOpts.RateLimiter = rl
	}

	router := setupRouter(api, routerOpts)

	// Start metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorWithErr("Metrics server forced to shutdown", err)
		}
	}

	// Let archive uploads and history writes of finished downloads complete
	svc.Wait()

	logger.Info("Server stopped")
}

// sideChannels holds the optional collaborators that could be reached at startup
type sideChannels struct {
	opts    []downloader.ServiceOption
	history HistoryLister
	checks  map[string]HealthCheck
	closers []func()
}

func (sc *sideChannels) close() {
	for i := len(sc.closers) - 1; i >= 0; i-- {
		sc.closers[i]()
	}
}

// initSideChannels connects the optional cache, archive, history and event publishers.
// A side channel that cannot be reached is logged and left disabled.
func initSideChannels(ctx context.Context, cfg *config.Config, logger *logging.Logger) *sideChannels {
	sc := &sideChannels{checks: make(map[string]HealthCheck)}

	if cfg.Cache.Enabled {
		c, err := cache.NewCache(cfg.Cache)
		if err != nil {
			logger.ErrorWithErr("Listing cache disabled", err)
		} else {
			sc.opts = append(sc.opts, downloader.WithListingCache(c, cfg.Cache.TTL))
			sc.checks["cache"] = c.Ping
			sc.closers = append(sc.closers, func() { c.Close() })
			logger.Info("Listing cache enabled")
		}
	}

	if cfg.Storage.Enabled {
		s, err := storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			logger.ErrorWithErr("Artifact archive disabled", err)
		} else {
			sc.opts = append(sc.opts, downloader.WithArchive(s))
			logger.Info("Artifact archive enabled")
		}
	}

	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database)
		if err != nil {
			logger.ErrorWithErr("Download history disabled", err)
		} else if err := db.Migrate(ctx); err != nil {
			logger.ErrorWithErr("Download history disabled", err)
			db.Close()
		} else {
			repo := database.NewRepository(db, logger)
			sc.opts = append(sc.opts, downloader.WithHistory(repo))
			sc.history = repo
			sc.checks["database"] = db.Health
			sc.closers = append(sc.closers, db.Close)
			logger.Info("Download history enabled")
		}
	}

	if cfg.Queue.Enabled {
		q, err := queue.New(cfg.Queue)
		if err != nil {
			logger.ErrorWithErr("Download events disabled", err)
		} else {
			sc.opts = append(sc.opts, downloader.WithEvents(q))
			sc.closers = append(sc.closers, func() { q.Close() })
			logger.Info("Download events enabled")
		}
	}

	if cfg.Webhook.Enabled {
		sc.opts = append(sc.opts, downloader.WithEvents(webhook.NewNotifier(cfg.Webhook)))
		logger.Infof("Download webhooks enabled for %d endpoints", len(cfg.Webhook.URLs))
	}

	return sc
}

// sweepWorkspaces removes stale workspaces now and then every interval until ctx is done
func sweepWorkspaces(ctx context.Context, manager *workspace.Manager, retention, interval time.Duration, logger *logging.Logger) {
	sweep := func() {
		removed, err := manager.Sweep(retention)
		if err != nil {
			logger.ErrorWithErr("Workspace sweep failed", err)
		}
		metrics.RecordWorkspaceSweep(removed)
		if removed > 0 {
			logger.Infof("Removed %d stale workspaces", removed)
		}
	}

	sweep()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
