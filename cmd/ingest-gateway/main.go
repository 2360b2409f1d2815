package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ingest-gateway/ingest/infra"
	"ingest-gateway/logger"
)

const (
	envFileFlag    = "env-file"
	listenAddrFlag = "listen-addr"
)

// newRootFlags cria um conjunto novo por comando raiz.
func newRootFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		envFileFlag: &cobraflags.StringFlag{
			Name:       envFileFlag,
			Value:      ".env",
			Usage:      "Optional .env file loaded before reading the environment",
			Persistent: true,
		},
		listenAddrFlag: &cobraflags.StringFlag{
			Name:       listenAddrFlag,
			Value:      "",
			Usage:      "Listen address (overrides LISTEN_ADDR)",
			Persistent: true,
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ingest-gateway",
		Short:         "HTTP gateway that validates, rate limits and persists JSON messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := newRootFlags()
	cobraflags.RegisterMap(root, flags)

	runServe := func(cmd *cobra.Command, _ []string) error { return serveCommand(cmd, flags) }
	runMigrate := func(cmd *cobra.Command, _ []string) error { return migrateCommand(cmd, flags) }
	root.RunE = runServe

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables for DB_DRIVER",
		RunE:  runMigrate,
	})
	root.AddCommand(newSendCommand())
	return root
}

// bootstrap carrega o .env (se existir), lê a configuração e monta o logger.
func bootstrap(flags map[string]cobraflags.Flag) (config, zerolog.Logger, error) {
	if path := flags[envFileFlag].GetString(); path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return config{}, zerolog.Nop(), fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg, err := readConfig(viper.New())
	if err != nil {
		return config{}, zerolog.Nop(), fmt.Errorf("config error: %w", err)
	}
	if addr := flags[listenAddrFlag].GetString(); addr != "" {
		cfg.listenAddr = addr
	}

	log, err := logger.New(logger.Config{Level: cfg.logLevel, Format: cfg.logFormat})
	if err != nil {
		return config{}, zerolog.Nop(), fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, log, nil
}

func serveCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	cfg, log, err := bootstrap(flags)
	if err != nil {
		return err
	}
	return serve(cmd.Context(), cfg, log)
}

func migrateCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	cfg, log, err := bootstrap(flags)
	if err != nil {
		return err
	}
	if cfg.dbDriver == driverMemory {
		log.Info().Msg("memory store has no schema, nothing to migrate")
		return nil
	}

	s, err := infra.OpenSQL(cfg.dbDriver, cfg.dbDSN, infra.PoolOptions{MaxOpenConns: 1})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	log.Info().Str("db_driver", cfg.dbDriver).Msg("schema applied")
	return nil
}
