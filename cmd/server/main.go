package main

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"socialfeed/internal/config"
	"socialfeed/internal/db"
	"socialfeed/internal/logger"
	"socialfeed/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "socialfeed",
		Short:         "Social feed API server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load before reading the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile)
		},
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(envFile)
		},
	}
	root.AddCommand(serve, migrate)
	root.RunE = serve.RunE
	return root
}

func setup(envFile string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func runServe(envFile string) error {
	cfg, log, err := setup(envFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("open database", zap.String("path", cfg.DBPath), zap.Error(err))
		return err
	}
	defer database.Close()

	srv := server.New(database, cfg, log)
	log.Info("listening", zap.String("port", cfg.Port), zap.String("db", cfg.DBPath))
	if err := http.ListenAndServe(":"+cfg.Port, srv); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

func runMigrate(envFile string) error {
	cfg, log, err := setup(envFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("migrate", zap.String("path", cfg.DBPath), zap.Error(err))
		return err
	}
	log.Info("schema applied", zap.String("db", cfg.DBPath))
	return database.Close()
}
