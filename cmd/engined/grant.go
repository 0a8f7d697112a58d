package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/elfiee/engine/internal/capability"
	"github.com/elfiee/engine/internal/engine"
	"github.com/elfiee/engine/internal/model"
)

func newGrantCmd() *cobra.Command {
	return newGrantRevokeCmd("grant", "core.grant", "Grant a capability to an editor")
}

func newRevokeCmd() *cobra.Command {
	return newGrantRevokeCmd("revoke", "core.revoke", "Revoke a capability from an editor")
}

// newGrantRevokeCmd builds a one-shot command: spawn the archive's engine,
// submit a single core.grant/core.revoke, close. Both subcommands share
// everything but the capability id they submit.
func newGrantRevokeCmd(use, capID, short string) *cobra.Command {
	var editorID, capName, issuerBlock, scopeBlock, asEditor string
	cmd := &cobra.Command{
		Use:   use + " <archive-path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadLogger()
			if err != nil {
				return err
			}
			path := resolveArchivePath(cfg, args[0])

			manager := engine.NewManagerWithConfig(capability.NewBuiltinRegistry(), log, cfg.Engine)
			ctx := context.Background()
			fileID := filepath.Base(path)
			h, err := manager.Spawn(ctx, fileID, path)
			if err != nil {
				return fmt.Errorf("spawn engine for %s: %w", path, err)
			}
			defer manager.Close(ctx, fileID)

			payload := map[string]any{
				"target_editor": editorID,
				"capability":    capName,
			}
			if scopeBlock != "" {
				payload["target_block"] = scopeBlock
			}

			events, err := h.ProcessCommand(ctx, model.Command{
				EditorID: asEditor,
				CapID:    capID,
				BlockID:  issuerBlock,
				Payload:  payload,
				WallTime: time.Now().Unix(),
			})
			if err != nil {
				return err
			}
			fmt.Printf("committed %d event(s)\n", len(events))
			return nil
		},
	}
	cmd.Flags().StringVar(&editorID, "editor", "", "the editor the grant/revoke applies to (required)")
	cmd.Flags().StringVar(&capName, "capability", "", "the capability id being granted/revoked (required)")
	cmd.Flags().StringVar(&issuerBlock, "issuer-block", "", "a block the issuing editor owns or holds a grant on (required, authorizes the issuer)")
	cmd.Flags().StringVar(&scopeBlock, "block", "", "the block the new grant is scoped to (defaults to the workspace wildcard)")
	cmd.Flags().StringVar(&asEditor, "as", "", "the editor issuing the command (required)")
	cmd.MarkFlagRequired("editor")
	cmd.MarkFlagRequired("capability")
	cmd.MarkFlagRequired("issuer-block")
	cmd.MarkFlagRequired("as")
	return cmd
}
