package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trogers1052/portfolio-ledger/internal/api"
	"github.com/trogers1052/portfolio-ledger/internal/cache"
	"github.com/trogers1052/portfolio-ledger/internal/database"
	"github.com/trogers1052/portfolio-ledger/internal/kafka"
	"github.com/trogers1052/portfolio-ledger/internal/service"
)

func init() {
	serveCmd.Flags().StringP("port", "p", "8080", "Port to run the HTTP server on")
	bindLocalFlag(serveCmd, "server.port", "port")

	serveCmd.Flags().Bool("migrate", true, "Apply pending migrations before serving")
	bindLocalFlag(serveCmd, "serve.migrate", "migrate")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger HTTP API and trade consumer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if viper.GetBool("serve.migrate") {
		if err := db.Migrate(cfg.Migrations); err != nil {
			return err
		}
	}

	holdingsCache, err := cache.New(cfg.Redis.URL, cfg.Redis.LocalSize, cfg.Redis.TTL)
	if err != nil {
		return err
	}
	defer holdingsCache.Close()

	var publisher service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer producer.Close()
		publisher = producer
	} else {
		log.Warn().Msg("no kafka brokers configured, ledger events will not be published")
	}

	svc := service.NewService(db, db, publisher, holdingsCache)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumerDone := make(chan error, 1)
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TradesTopic, cfg.Kafka.GroupID, svc)
		go func() {
			consumerDone <- consumer.Start(ctx)
		}()
	} else {
		close(consumerDone)
	}

	handler := api.NewHandler(svc).
		WithHealthCheck("database", db).
		WithHealthCheck("cache", holdingsCache)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.SetupRoutes(handler, []byte(cfg.Auth.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		cancel()
		<-consumerDone
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}

	cancel()

	if err := <-consumerDone; err != nil {
		log.Error().Err(err).Msg("trade consumer stopped with error")
	}

	log.Info().Msg("ledgerd stopped")
	return nil
}
