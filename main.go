package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/versopress/verso/internal/feat/media"
	"github.com/versopress/verso/internal/feat/page"
	"github.com/versopress/verso/internal/feat/transfer"
	"github.com/versopress/verso/pkg/vs/app"
	"github.com/versopress/verso/pkg/vs/config"
	"github.com/versopress/verso/pkg/vs/database"
	"github.com/versopress/verso/pkg/vs/logger"
	"github.com/versopress/verso/pkg/vs/middleware"
)

//go:embed assets/migrations/sqlite/*.sql
var migrationsFS embed.FS

func main() {
	ctx := context.Background()

	cfg := config.Load()
	log := logger.New(cfg.Log.Level)

	log.Infof("Starting Verso [%s mode]", cfg.Env)
	log.Infof("Database: %s", cfg.Database.Path)
	log.Infof("Media: %s", cfg.Media.BasePath)

	db := database.New(migrationsFS, cfg, log)
	db.SetMigrationPath("assets/migrations/sqlite")

	pageService := page.NewService(db, cfg, log)
	mediaStorage := media.NewStorage(cfg.Media.BasePath, log)

	pageHandler := page.NewHandler(pageService, cfg, log)
	transferHandler := transfer.NewHandler(pageService, mediaStorage, cfg, log)

	pageSeeder := page.NewSeeder(pageService, log)

	router := chi.NewRouter()
	middleware.DefaultStack(router)

	deps := []any{db, pageService, pageSeeder, mediaStorage, pageHandler, transferHandler}

	starts, stops, registrars := app.Setup(ctx, router, deps...)
	if err := app.Start(ctx, log, starts, stops, registrars, router); err != nil {
		log.Errorf("Startup failed: %v", err)
		os.Exit(1)
	}

	go app.Serve(router, cfg.Server.Addr)
	log.Infof("Server listening on %s", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Stop(ctx, log, stops)
	log.Info("Server stopped")
}
