package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapleleafu/cardarena/arena-backend/handlers"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/config"
	"github.com/mapleleafu/cardarena/arena-backend/repository"
	"github.com/mapleleafu/cardarena/arena-backend/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatal("Error creating logger: ", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := &handlers.API{
		Secret:            []byte(cfg.JWTSecret),
		AdminPasswordHash: cfg.AdminPasswordHash,
		Log:               logger,
	}

	var runs repository.RunWriter
	var sessions repository.SessionWriter

	if cfg.DatabaseEnabled {
		db, err := repository.ConnectToPostgreSQL(ctx, cfg.PostgresDSN())
		if err != nil {
			return err
		}
		defer db.Close()
		store := repository.NewRunStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		runs, api.Runs = store, store
		logger.Info("Successfully connected to PostgreSQL")
	}

	if cfg.MongoURI != "" {
		client, err := repository.ConnectMongoDB(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		store := repository.NewSessionStore(client, cfg.MongoDatabase)
		sessions, api.Sessions = store, store
		logger.Info("Successfully connected to MongoDB")
	}

	archive := repository.NewArchive(runs, sessions, logger.Named("archive"), 0)
	policy := config.NewPolicy(cfg)

	srv, err := session.NewServer(session.Options{
		Settings:        policy,
		Logger:          logger.Named("session"),
		Recorder:        archive,
		RequestLifetime: cfg.RequestLifetime,
		SweepInterval:   cfg.SweepInterval,
		ServerCommands:  handlers.ServerCommands(handlers.TokenResolver{Secret: []byte(cfg.JWTSecret)}),
		LobbyCommands:   handlers.LobbyCommands(),
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	api.Server = srv

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The archive outlives the session server so runs ended by shutdown are
	// still written.
	archiveCtx, stopArchive := context.WithCancel(context.Background())
	defer stopArchive()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return archive.Run(archiveCtx)
	})
	g.Go(func() error {
		logger.Info("Server running", zap.String("addr", cfg.Addr), zap.Int("lobbies", cfg.MaxLobbies))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		srv.Shutdown()
		stopArchive()
		return err
	})
	return g.Wait()
}
