// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/janee-ai/janee/pkg/audit"
)

// auditLogDir is the audit log directory inside the config directory.
const auditLogDir = "logs"

var (
	auditLimit   int
	auditService string
	auditSince   string
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
		Long:  "The audit command provides subcommands to list recorded events and to follow the trail live.",
	}

	cmd.AddCommand(
		newAuditListCmd(),
		newAuditTailCmd(),
	)

	return cmd
}

func newAuditListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit events",
		Long: `List audit events, newest first.

--since accepts either a duration relative to now (e.g. 30m, 24h) or an
RFC 3339 timestamp.`,
		Args: cobra.NoArgs,
		RunE: auditListCmdFunc,
	}

	cmd.Flags().IntVar(&auditLimit, "limit", 0, "Maximum number of events (default 100)")
	cmd.Flags().StringVar(&auditService, "service", "", "Only events for the named service")
	cmd.Flags().StringVar(&auditSince, "since", "", "Only events at or after this time")

	return cmd
}

func auditListCmdFunc(_ *cobra.Command, _ []string) error {
	store, err := requireStore()
	if err != nil {
		return err
	}
	auditLog, err := audit.New(filepath.Join(store.Dir(), auditLogDir))
	if err != nil {
		return err
	}

	opts := audit.ReadOptions{Limit: auditLimit, Service: auditService}
	if auditSince != "" {
		since, err := parseSince(auditSince)
		if err != nil {
			return err
		}
		opts.Since = since
	}

	events, err := auditLog.Read(opts)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No audit events.")
		return nil
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		status := strconv.Itoa(e.StatusCode)
		if e.Denied {
			status += " DENIED"
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Service,
			e.Method,
			e.Path,
			status,
			fmt.Sprintf("%dms", e.DurationMs),
		})
	}
	return renderTable([]string{"Time", "Service", "Method", "Path", "Status", "Duration"}, rows)
}

func newAuditTailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Follow the audit trail",
		Long:  "Print audit events as they are recorded, until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := requireStore()
			if err != nil {
				return err
			}
			auditLog, err := audit.New(filepath.Join(store.Dir(), auditLogDir))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			for event := range auditLog.Tail(ctx) {
				fmt.Println(formatEvent(event))
			}
			return nil
		},
	}
}

// parseSince accepts a relative duration ("30m") or an RFC 3339 timestamp.
func parseSince(value string) (time.Time, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return time.Now().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: expected a duration or an RFC 3339 timestamp", value)
	}
	return t, nil
}

// formatEvent renders one audit event as a single log line.
func formatEvent(e audit.Event) string {
	line := fmt.Sprintf("%s %s %s %s %d %dms",
		e.Timestamp.Format(time.RFC3339), e.Service, e.Method, e.Path, e.StatusCode, e.DurationMs)
	if e.AgentID != "" {
		line += " agent=" + e.AgentID
	}
	if e.Denied {
		line += " DENIED: " + e.DenyReason
	}
	return line
}
