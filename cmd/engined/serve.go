package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/elfiee/engine/internal/capability"
	"github.com/elfiee/engine/internal/engine"
)

func newServeCmd() *cobra.Command {
	var fileID string
	cmd := &cobra.Command{
		Use:   "serve <archive-path>",
		Short: "Open an archive and run its engine actor until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadLogger()
			if err != nil {
				return err
			}
			path := resolveArchivePath(cfg, args[0])
			if fileID == "" {
				fileID = filepath.Base(path)
			}

			manager := engine.NewManagerWithConfig(capability.NewBuiltinRegistry(), log, cfg.Engine)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := manager.Spawn(ctx, fileID, path); err != nil {
				return fmt.Errorf("spawn engine for %s: %w", path, err)
			}
			log.Info("engine started", "file_id", fileID, "path", path)

			var srv *http.Server
			if cfg.ControlPlane.Enabled {
				cp := &controlPlane{manager: manager, fileID: fileID, log: log}
				mux := http.NewServeMux()
				cp.routes(mux)
				srv = &http.Server{Addr: cfg.ControlPlane.Addr, Handler: mux}
				go func() {
					log.Info("control plane listening", "addr", cfg.ControlPlane.Addr)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Error("control plane stopped", "error", err)
					}
				}()
			}

			<-ctx.Done()
			log.Info("shutting down", "file_id", fileID)
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return manager.Close(closeCtx, fileID)
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "logical archive id (defaults to the file's base name)")
	return cmd
}
