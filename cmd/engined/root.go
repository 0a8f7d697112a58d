package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/elfiee/engine/internal/config"
	"github.com/elfiee/engine/internal/logging"
)

const shutdownTimeout = 5 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "engined",
		Short: "Local-first content engine: event store, projector, and CBAC pipeline",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newGrantCmd())
	root.AddCommand(newRevokeCmd())
	return root
}

// loadLogger wires up config + logger together since every subcommand
// needs both before it can touch the engine manager.
func loadLogger() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logging.NewLogger("engined", logging.ParseLevel(cfg.Log.Level))
	return cfg, log, nil
}

// resolveArchivePath joins a relative archive path against cfg.Archive.Dir,
// the configured default archive directory; an absolute path is used as-is.
func resolveArchivePath(cfg *config.Config, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.Archive.Dir, path)
}
