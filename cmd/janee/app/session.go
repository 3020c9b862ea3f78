// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/janee-ai/janee/pkg/sessions"
)

// sessionStoreFile is the session file inside the config directory.
const sessionStoreFile = "sessions.json"

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and revoke live sessions",
		Long:  "The session command provides subcommands to list and revoke the TTL-bounded sessions minted for agent requests.",
	}

	cmd.AddCommand(
		newSessionListCmd(),
		newSessionRevokeCmd(),
	)

	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := requireStore()
			if err != nil {
				return err
			}
			mgr := sessions.NewManager(filepath.Join(store.Dir(), sessionStoreFile))

			live := mgr.List()
			if len(live) == 0 {
				fmt.Println("No live sessions.")
				return nil
			}

			rows := make([][]string, 0, len(live))
			for _, s := range live {
				rows = append(rows, []string{
					s.ID,
					s.Capability,
					s.Service,
					s.AgentID,
					s.ExpiresAt.Local().Format("2006-01-02 15:04:05"),
					s.Reason,
				})
			}
			return renderTable([]string{"ID", "Capability", "Service", "Agent", "Expires", "Reason"}, rows)
		},
	}
}

func newSessionRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a session",
		Long:  "Mark a session revoked and remove it from the store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := requireStore()
			if err != nil {
				return err
			}
			mgr := sessions.NewManager(filepath.Join(store.Dir(), sessionStoreFile))

			if err := mgr.Revoke(args[0]); err != nil {
				return err
			}
			fmt.Printf("Session %s revoked\n", args[0])
			return nil
		},
	}
}
