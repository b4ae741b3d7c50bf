package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aka1453/promin-sched/internal/cache"
	"github.com/aka1453/promin-sched/internal/cli"
	"github.com/aka1453/promin-sched/internal/config"
	internal_http "github.com/aka1453/promin-sched/internal/http"
	"github.com/aka1453/promin-sched/internal/log"
	"github.com/aka1453/promin-sched/internal/notify"
	internal_storage "github.com/aka1453/promin-sched/internal/storage"
	"github.com/aka1453/promin-sched/pkg/service"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "promin-sched"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduling HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.GetLogger()

		cfg, err := config.Load()
		if err != nil {
			logger.Errorf("Failed to load config: %v", err)
			os.Exit(1)
		}

		store, err := internal_storage.InitStore(cfg.DB.ConnStr())
		if err != nil {
			logger.Errorf("Failed to initialize store: %v", err)
			os.Exit(1)
		}
		defer store.Close()

		opts := []service.Option{}

		if cfg.Redis.TTLSeconds > 0 {
			redisCache := cache.NewRedisCache(cfg.Redis)
			if err := redisCache.Ping(context.Background()); err != nil {
				logger.Errorf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
				os.Exit(1)
			}
			defer redisCache.Close()
			opts = append(opts, service.WithCache(redisCache))
		}

		if cfg.AMQP.URL != "" {
			notifier, err := notify.NewAMQPNotifier(cfg.AMQP)
			if err != nil {
				logger.Errorf("Failed to connect to AMQP at %s: %v", cfg.AMQP.URL, err)
				os.Exit(1)
			}
			defer notifier.Close()
			opts = append(opts, service.WithNotifier(notifier))
		}

		svc := service.NewSchedulingService(store, logger, opts...)
		if err := internal_http.StartServer(cfg.Server.Port, svc); err != nil {
			logger.Errorf("Server stopped: %v", err)
			os.Exit(1)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Database connection string")
	rootCmd.AddCommand(serveCmd)
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
