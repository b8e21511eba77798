package main

import (
	"log/slog"

	"lsmstore/pkg/config"
	"lsmstore/pkg/store"

	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	dir        string

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd builds the lsmctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "lsmctl",
		Short:        "Read and modify an LSM store directory",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(a.configPath, a.dir)
			if err != nil {
				return err
			}
			logger, err := initLogger(cmd.ErrOrStderr(), &cfg)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.dir, "dir", "", "data directory, overrides db.dir from the config")

	rootCmd.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
		newScanCmd(a),
		newCompactCmd(a),
		newStatsCmd(a),
		newBenchCmd(a),
	)
	return rootCmd
}

// withStore opens the store, runs fn and closes the store, which flushes
// whatever fn left in the memtable.
func (a *app) withStore(fn func(*store.Store) error) (err error) {
	s, err := store.Open(a.cfg.DB, store.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
