package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sohnjk/docspace/internal/accesslog"
	accesslogStore "github.com/sohnjk/docspace/internal/accesslog/store"
	"github.com/sohnjk/docspace/internal/archive"
	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/config"
	"github.com/sohnjk/docspace/internal/label"
	labelStore "github.com/sohnjk/docspace/internal/label/store"
	"github.com/sohnjk/docspace/internal/notify"
	notifyStore "github.com/sohnjk/docspace/internal/notify/store"
	"github.com/sohnjk/docspace/internal/platform/database"
	"github.com/sohnjk/docspace/internal/share"
	shareHandler "github.com/sohnjk/docspace/internal/share/handler"
	shareStore "github.com/sohnjk/docspace/internal/share/store"
	"github.com/sohnjk/docspace/internal/storage"
	"github.com/sohnjk/docspace/internal/tree"
	treeHandler "github.com/sohnjk/docspace/internal/tree/handler"
	treeStore "github.com/sohnjk/docspace/internal/tree/store"
	"github.com/sohnjk/docspace/internal/user"
	userStore "github.com/sohnjk/docspace/internal/user/store"
	"github.com/sohnjk/docspace/internal/worker"
)

var goEnv string = "development"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if goEnv == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	log.Info().Str("environment", goEnv).Msg("starting server")

	config.SetConfig(goEnv)

	db, err := database.NewDB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	blobs, err := storage.NewLocalStore(config.Conf.Storage.BasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob storage")
	}

	// Stores.
	trees := treeStore.NewStore(db)
	shares := shareStore.NewStore(db)
	labels := labelStore.NewStore(db)
	users := userStore.NewStore(db)
	access := accesslogStore.NewStore(db)
	notifications := notifyStore.NewStore(db)

	// Services.
	userService := user.NewService(users)
	treeService := tree.NewService(trees, blobs, labels, userService)
	shareService := share.NewService(shares, treeService, userService, config.Conf.Share.LinkTTLDays)
	labelService := label.NewService(labels, treeService)
	accessService := accesslog.NewService(access, treeService)
	archiveBuilder := archive.NewBuilder(treeService, blobs, config.Conf.Storage.ArchivePath)

	// The tree engine and share graph reference each other; close the loop
	// after both exist.
	treeService.SetShareAccess(shareService)

	queue := worker.NewQueue(config.Conf.Worker.Count, config.Conf.Worker.MaxRetries)
	queue.Start()
	defer queue.Stop()

	notifyService := notify.NewService(notifications, queue)
	shareService.SetNotifier(notifyService)

	if config.Conf.Cloud.Enabled {
		cloud, err := storage.NewS3Store(context.Background(), config.Conf.Cloud)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure cloud storage")
		}
		treeService.SetCloudMirror(worker.NewMirror(queue, blobs, cloud, trees))
		log.Info().Str("bucket", config.Conf.Cloud.Bucket).Msg("cloud mirroring enabled")
	}

	authService := auth.NewService(auth.Config{
		Secret: config.Conf.Auth.Secret,
		Issuer: config.Conf.Auth.Issuer,
	})
	authService.SetProvisioner(userService)

	// Routes.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	treeHandler.NewHandler(treeService, accessService, archiveBuilder).RegisterRoutes(mux)
	shareHandler.NewHandler(shareService, treeService, archiveBuilder).RegisterRoutes(mux)
	label.NewHandler(labelService).RegisterRoutes(mux)
	accesslog.NewHandler(accessService).RegisterRoutes(mux)
	notify.NewHandler(notifyService).RegisterRoutes(mux)
	user.NewHandler(userService).RegisterRoutes(mux)
	config.NewHandler().RegisterRoutes(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Conf.Server.Port),
		Handler: authService.Middleware(mux),
	}

	go func() {
		log.Info().Int("port", config.Conf.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
