package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brainsharer/annostore"
	"github.com/brainsharer/annostore/internal/config"
)

type app struct {
	configPath  string
	storagePath string
	redisURL    string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "annoctl",
		Short:        "Annotation layer tools",
		Long:         "annoctl exports, imports, packs, snapshots and mirrors annotation layers described by a YAML config.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "annostore.yaml", "path to the layer config")
	rootCmd.PersistentFlags().StringVar(&a.storagePath, "path", "", "use a local snapshot directory instead of the configured storage")
	rootCmd.PersistentFlags().StringVar(&a.redisURL, "redis", "", "override mirror.url")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(
		a.inspectCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.packCmd(),
		a.pushCmd(),
		a.pullCmd(),
		a.syncCmd(),
		a.snapshotCmd(),
	)
	return rootCmd
}

// config loads the config file and applies flag overrides.
func (a *app) config() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.storagePath != "" {
		cfg.Storage = config.StorageConfig{Backend: config.BackendLocal, Path: a.storagePath}
	}
	if a.redisURL != "" {
		cfg.Mirror.URL = a.redisURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads the config and opens the layer. The latest snapshot is
// restored unless fresh is set.
func (a *app) open(ctx context.Context, withMirror, fresh bool) (*annostore.DB, *config.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	if withMirror && cfg.Mirror.URL == "" {
		return nil, nil, fmt.Errorf("%s: mirror.url and mirror.key are required", a.configPath)
	}
	schema, err := cfg.Schema()
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.Options(ctx, withMirror)
	if err != nil {
		return nil, nil, err
	}
	if fresh {
		opts = append(opts, annostore.WithoutLoad())
	}
	db, err := annostore.Open(ctx, schema, opts...)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
