package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"seedbox/internal/config"
	"seedbox/internal/daemon"
	"seedbox/internal/event"
	apphttp "seedbox/internal/http"
	"seedbox/internal/progress"
	"seedbox/internal/reconcile"
	"seedbox/internal/repository/sqlite"
	"seedbox/internal/scheduler"
	"seedbox/internal/service"
	"seedbox/internal/transcode"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Daemon.URL) == "" {
		logger.Fatalf("daemon url is required")
	}
	if strings.TrimSpace(cfg.Auth.RegisterPassword) == "" {
		logger.Fatalf("auth registration password is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	torrentRepo := sqlite.NewTorrentRepository(db)
	fileRepo := sqlite.NewFileRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	if err := torrentRepo.Init(ctx); err != nil {
		logger.Fatalf("init torrent repository: %v", err)
	}
	if err := fileRepo.Init(ctx); err != nil {
		logger.Fatalf("init file repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	store, err := progress.NewStore(progress.Config{
		Addr:           cfg.Redis.Addr,
		DialTimeout:    cfg.Redis.DialTimeout,
		ReadTimeout:    cfg.Redis.ReadTimeout,
		WriteTimeout:   cfg.Redis.WriteTimeout,
		MaxIdleConns:   cfg.Redis.MaxIdleConns,
		MaxActiveConns: cfg.Redis.MaxActiveConns,
	})
	if err != nil {
		logger.Fatalf("connect redis: %v", err)
	}
	defer store.Close()

	client, err := daemon.NewTransmission(cfg.Daemon.URL, cfg.Daemon.Username, cfg.Daemon.Password)
	if err != nil {
		logger.Fatalf("connect transmission: %v", err)
	}

	bus := event.NewBus()

	torrentService := service.NewTorrentService(torrentRepo, fileRepo, userRepo, client, bus)
	fileService := service.NewFileService(fileRepo)
	userService := service.NewUserService(userRepo, cfg.Auth.RegisterPassword)

	pool := scheduler.NewPool(clock.New(), logger)
	reconciler := reconcile.New(reconcile.Config{
		Interval: cfg.Reconcile.Interval,
		Logger:   logger,
	}, torrentService, fileService, store, client, pool, clock.New())
	pool.Register(scheduler.StepUpdateAndSave, reconciler.UpdateAndSaveInformation)
	pool.Register(scheduler.StepUpdateAndStopSeeding, reconciler.UpdateAndStopSeeding)
	pool.Start(ctx)
	reconciler.Subscribe(bus)

	worker := transcode.NewWorker(transcode.Config{
		FFprobeBin:   cfg.Transcode.FFprobeBin,
		FFmpegBin:    cfg.Transcode.FFmpegBin,
		StorageRoot:  cfg.Storage.Root,
		PollInterval: cfg.Transcode.PollInterval,
		Logger:       logger,
	}, fileService, torrentService, store)
	worker.Start(ctx)

	propagator := service.NewLinkPropagator(userRepo, logger)
	propagator.Subscribe(bus)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(torrentService, fileService, userService, store, worker, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	pool.Shutdown()
	worker.Shutdown()

	logger.Info("bye")
}
