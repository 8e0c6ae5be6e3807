// Package cli implements the stash-manager CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/config"
	"github.com/rcliao/stash-manager/internal/store"
)

var (
	dbPath     string
	formatFlag string
	configPath string
	verbose    bool

	cfg    config.Config
	logger *slog.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "stash-manager",
	Short: "Sort, fold and merge inventory snapshots",
	Long:  "Reorganizes inventory snapshots by configurable criteria, merges partial stacks and folds items. Prices come from a local SQLite book or a WebSocket feed.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		c, err := config.Load(configPath)
		if err != nil {
			exitErr("load config", err)
		}
		cfg = c
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Price database path (default: $STASH_MANAGER_DB or prices.db from config)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $"+config.EnvPath+")")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("STASH_MANAGER_DB"); env != "" {
		return env
	}
	return cfg.Prices.DB
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func textOutput() bool {
	return formatFlag == "text"
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
