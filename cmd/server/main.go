package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluffhouse/coup-server/internal/config"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/repository"
	"github.com/bluffhouse/coup-server/internal/server"
	"github.com/bluffhouse/coup-server/internal/table"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	envPath    = flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Coup server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Result storage is optional
	var (
		store   table.ResultStore
		results server.ResultLister
	)
	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		gameRepo := repository.NewGameRepository(db)
		store, results = gameRepo, gameRepo
	} else {
		logger.Warn("database disabled; finished games will not be persisted")
	}

	// Initialize game manager
	gameMgr := game.NewManager(logger)
	if cfg.Game.ReplayDir != "" {
		gameMgr.SetReplayRecorder(game.NewReplayRecorder(logger, cfg.Game.ReplayDir))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Game.ReplayDir))
	}

	// Initialize table manager
	tableMgr := table.NewManager(gameMgr, store, table.Options{
		MinPlayers: cfg.Game.MinPlayers,
		MaxPlayers: cfg.Game.MaxPlayers,
		BotNames:   cfg.Game.BotNames,
		Seed:       cfg.Game.Seed,
	}, logger)
	logger.Info("table manager initialized",
		zap.Int("min_players", cfg.Game.MinPlayers),
		zap.Int("max_players", cfg.Game.MaxPlayers),
	)
	if cfg.Game.FinishedTableTTL > 0 {
		go tableMgr.CleanupFinished(ctx, time.Minute, cfg.Game.FinishedTableTTL)
	}

	hub := server.NewHub(tableMgr, cfg.Server.WebSocket, logger)
	gameMgr.SetNotificationHandler(hub.HandleNotification)
	go hub.Run(ctx)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	server.RegisterCoupServer(grpcServer, server.NewCoupService(tableMgr, results, version, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket server
	go func() {
		if wsErr := server.StartWebSocketServer(ctx, cfg.Server.WebSocket, hub, logger); wsErr != nil {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("Coup server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()
	grpcServer.GracefulStop()

	for _, id := range gameMgr.GameIDs() {
		_ = gameMgr.EndGame(id)
	}

	logger.Info("Coup server stopped")
}

// initLogger builds a JSON production logger or a coloured development
// logger. Unknown levels fall back to info.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
