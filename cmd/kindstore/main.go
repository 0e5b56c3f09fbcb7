/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/suparena/kindstore"
	"github.com/suparena/kindstore/datastore"
	"github.com/suparena/kindstore/datastore/ddb"
	"github.com/suparena/kindstore/datastore/gcd"
	"go.uber.org/zap"
)

var (
	envFile     string
	backendName string
	namespace   string
	debug       bool
)

func printVersionInfo() {
	info := kindstore.GetVersionInfo()
	fmt.Printf("kindstore version %s\n", info.Version)
	fmt.Printf("Git commit: %s\n", info.GitCommit)
	fmt.Printf("Build date: %s\n", info.BuildDate)
	fmt.Printf("Go version: %s\n", info.GoVersion)
}

var rootCmd = &cobra.Command{
	Use:           "kindstore",
	Short:         "Inspect and manage kindstore backends",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersionInfo()
			return nil
		}
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersionInfo()
	},
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func backends() *kindstore.Backends {
	b := kindstore.NewBackends()
	_ = b.Register("ddb", func(ctx context.Context, logger *zap.Logger) (datastore.Executor, error) {
		cfg, err := ddb.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		s, err := ddb.Open(ctx, cfg, ddb.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	_ = b.Register("gcd", func(ctx context.Context, logger *zap.Logger) (datastore.Executor, error) {
		cfg, err := gcd.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		s, err := gcd.Open(ctx, cfg, gcd.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	return b
}

// openBackend opens the selected backend. The returned func flushes the
// logger and closes the backend when it holds a connection.
func openBackend(ctx context.Context) (datastore.Executor, *zap.Logger, func(), error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	exec, err := backends().Open(ctx, backendName, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if c, ok := exec.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		_ = logger.Sync()
	}
	return exec, logger, cleanup, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file with backend settings")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "ddb", "Store backend (ddb or gcd)")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "", "Namespace to operate in")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information and exit")

	rootCmd.AddCommand(versionCmd)
	setupCommands()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
