package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"news-agent/config"
	"news-agent/internal/database"
	"news-agent/internal/handler"
	"news-agent/internal/logging"
	"news-agent/internal/notifier"
	"news-agent/internal/scheduler"
	"news-agent/internal/service"
	"news-agent/internal/settings"
	"news-agent/internal/source"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		logging.New("error").Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level)

	// 初始化数据库
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("open database failed", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化默认配置
	store := settings.NewStore(db)
	if err := store.SeedDefaults(ctx, settings.Defaults()); err != nil {
		logger.Error("seed settings failed", "error", err)
		os.Exit(1)
	}
	if err := store.SeedEmpty(ctx, settings.FromEnv()); err != nil {
		logger.Error("seed settings from env failed", "error", err)
		os.Exit(1)
	}

	// 数据源
	sourceLogger := logger.With("component", "source")
	sourceOpts := []source.Option{source.WithTimeout(cfg.HTTP.SourceTimeout), source.WithLogger(sourceLogger)}
	sources := []source.Source{
		source.NewRSSSource(store, source.DefaultFeeds(), sourceOpts...),
		source.NewCryptoSource(sourceOpts...),
		source.NewNewsAPISource(store, sourceOpts...),
	}

	// 初始化服务
	live := service.NewBroadcaster(0, logger.With("component", "live"))
	sourceMgr := service.NewSourceManager(db, store, sources, live, logger.With("component", "sources"))
	ai := service.NewAIClient(store, cfg.HTTP.AITimeout, logger.With("component", "ai"))
	skills := service.NewSkillService(db, ai, store, cfg.Cron.Location(), logger.With("component", "skills"))
	channels := service.SettingsChannels(store,
		notifier.WithTimeout(cfg.HTTP.NotifierTimeout),
		notifier.WithLogger(logger.With("component", "notifier")),
	)
	notify := service.NewNotificationService(db, store, channels, logger.With("component", "notify"))
	retention := service.NewRetentionService(db, service.DefaultRetention, logger.With("component", "retention"))
	alerts := service.NewAlertService(db)
	status := service.NewStatusService(db, sourceMgr, channels, live)

	// 启动定时任务
	sched, err := scheduler.NewScheduler(cfg.Cron, scheduler.Deps{
		Sources:   sourceMgr,
		Skills:    skills,
		Notify:    notify,
		Retention: retention,
		Publisher: live,
		Settings:  store,
	}, logger.With("component", "scheduler"))
	if err != nil {
		logger.Error("create scheduler failed", "error", err)
		os.Exit(1)
	}
	status.SetSchedule(sched)
	sched.Start()

	// 初始化Gin
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	// 注册路由
	h := handler.NewHandler(store, status, alerts, live, logger.With("component", "http"))
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	// 启动服务
	// 实时推送连接随退出信号结束
	srv := &http.Server{
		Addr:        cfg.GetServerAddress(),
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop incomplete", "error", err)
	}
	logger.Info("stopped")
}
