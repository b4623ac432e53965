package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rail-reservation/internal/account"
	"rail-reservation/internal/booking"
	"rail-reservation/internal/config"
	"rail-reservation/internal/database"
	"rail-reservation/internal/logger"
	"rail-reservation/internal/server"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	zerolog.DefaultContextLogger = &log.Logger

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.MigrateTimeout)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	bookings := booking.NewManager(db, booking.WithPNRAttempts(cfg.Booking.PNRAttempts))
	accounts := account.NewService(db, cfg.BcryptCost)

	// Create a new server instance
	srv := server.NewServer(cfg, db, bookings, accounts)

	// Create a listener on the desired address
	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", srv.Addr).Msg("error creating listener")
	}

	// Channel to receive errors from the server
	errChan := make(chan error, 1)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Set up channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Error().Err(err).Msg("server error")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("could not gracefully shut down the server")
			return
		}
		log.Info().Msg("server gracefully stopped")
	}
}
