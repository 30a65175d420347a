package main

import (
	"flag"
	"log/slog"
	"os"

	"reflect-journal/internal/config"
	"reflect-journal/internal/handler"
	"reflect-journal/internal/logger"
	"reflect-journal/internal/middleware"
	"reflect-journal/internal/model"
	"reflect-journal/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	flag.Parse()

	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)

	db, err := cfg.OpenGormDB()
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	store := service.NewDBStore(db)
	if err := store.AutoMigrate(); err != nil {
		slog.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	engine := service.NewEngineClient(cfg.Inference.BaseURL, cfg.Inference.APIKey, cfg.Inference.Model)
	analyzer := service.NewAnalyzer(store, engine, cfg.Inference.MaxPromptChars)
	weekly := service.NewWeeklySynthesizer(store, engine)
	orch := service.NewOrchestrator(store, analyzer, weekly, service.BatchOptions{
		ChunkSize:      cfg.Batch.ChunkSize,
		ChunkDelay:     cfg.Batch.ChunkDelay(),
		WeekDelay:      cfg.Batch.WeekDelay(),
		ReanalyzeDelay: cfg.Batch.ReanalyzeDelay(),
		LookbackMonths: cfg.Batch.LookbackMonths,
	})
	orch.SetProgressCallback(func(p model.BatchProgress) {
		slog.Debug("batch.progress", "run", p.RunID, "phase", p.Phase,
			"completed", p.Completed, "total", p.Total)
	})
	insights := service.NewInsightService(store)
	authSvc := service.NewAuthService(db)

	analysisH := handler.NewAnalysisHandler(orch, insights, weekly, store)
	entryH := handler.NewEntryHandler(store)
	authH := handler.NewAuthHandler(authSvc)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.POST("/api/login", authH.Login)
	api := r.Group("/api", middleware.JWTAuth())
	api.POST("/entries", entryH.Create)
	api.GET("/entries", entryH.List)
	api.POST("/analysis/run", analysisH.Run)
	api.POST("/analysis/stop", analysisH.Stop)
	api.GET("/analysis/progress", analysisH.Progress)
	api.GET("/analysis/statistics", analysisH.Statistics)
	api.POST("/analysis/reanalyze", analysisH.Reanalyze)
	api.POST("/weekly/generate", analysisH.GenerateWeekly)
	api.GET("/dashboard", analysisH.Dashboard)
	api.GET("/insights", analysisH.Insights)
	api.GET("/files/:name", analysisH.DownloadFile)

	slog.Info("server starting", "addr", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		slog.Error("server failed", "err", err)
	}
}
