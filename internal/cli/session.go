package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chatkit/internal/storage"
)

// NewSessionCmd creates the session command.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage saved conversations",
		Long:    `List, view, and delete conversations in the local transcript database.`,
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionDeleteCmd())

	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessionStore(cmd)
			if err != nil {
				return err
			}
			sessions, err := store.ListSessions(limit, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Title, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal: %d sessions\n", len(sessions))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessionStore(cmd)
			if err != nil {
				return err
			}
			session, err := store.GetSession(args[0])
			if err != nil {
				return sessionErr(args[0], err)
			}
			messages, err := store.GetMessages(session.ID, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", session.ID)
			fmt.Fprintf(out, "Title:    %s\n", session.Title)
			fmt.Fprintf(out, "Created:  %s\n", session.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Updated:  %s\n", session.UpdatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Messages: %d\n", len(messages))

			for _, m := range messages {
				fmt.Fprintf(out, "\n[%s] %s\n", m.Role, m.CreatedAt.Local().Format("15:04:05"))
				fmt.Fprintln(out, truncate(m.Content, 200))
			}
			return nil
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessionStore(cmd)
			if err != nil {
				return err
			}
			if err := store.DeleteSession(args[0]); err != nil {
				return sessionErr(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session deleted: %s\n", args[0])
			return nil
		},
	}
}

func sessionStore(cmd *cobra.Command) (*storage.DB, error) {
	cliCtx, err := mustCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	store, err := cliCtx.GetStorage()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("session storage is disabled")
	}
	return store, nil
}

func sessionErr(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("session not found: %s", id)
	}
	return err
}
