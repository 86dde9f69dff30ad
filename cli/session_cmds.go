package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbshop/storefront/bus"
	"github.com/mbshop/storefront/session"
)

// NewStateCmd creates the "state" subcommand.
func NewStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the hydrated session state",
		Args:  cobra.NoArgs,
		RunE:  runState,
	}
	cmd.Flags().Bool("json", false, "Print the state as JSON (token masked)")
	return cmd
}

func runState(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	return withApp(cmd, "state", func(a *app) error {
		state := a.store.State()
		if asJSON {
			if state.UserInfo != nil {
				state.UserInfo.Token = session.MaskedToken
			}
			raw, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			a.printf("%s\n", raw)
			return nil
		}
		return printState(a.out, state, a.history.CurrentPath())
	})
}

// NewModeCmd creates the "mode" subcommand.
func NewModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [switch]",
		Short: "Show the display mode, or switch it for this session",
		Long: "Show the display mode resolved from the theme preference. " +
			"\"mode switch\" toggles it; the preference itself is configured with theme.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"switch"},
		RunE:      runMode,
	}
}

func runMode(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && args[0] != "switch" {
		return exitError(exitValidation, "unknown mode argument %q (want \"switch\")", args[0])
	}
	return withApp(cmd, "mode", func(a *app) error {
		if len(args) == 1 {
			a.store.Dispatch(session.SwitchMode{})
		}
		a.printf("%s\n", a.store.State().Mode)
		return nil
	})
}

// NewVisitCmd creates the "visit" subcommand.
func NewVisitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visit <path>",
		Short: "Navigate to a page, following checkout redirects",
		Args:  cobra.ExactArgs(1),
		RunE:  runVisit,
	}
}

func runVisit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, "visit", func(a *app) error {
		a.printf("%s\n", a.flow.Visit(args[0]))
		return nil
	})
}

// NewHistoryCmd creates the "history" subcommand.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled actions for a session",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().String("session", "", "Session id (default: the current session)")
	cmd.Flags().Bool("sessions", false, "List journaled session ids instead")
	cmd.Flags().Bool("replay", false, "Fold the actions through the reducer and print the resulting state")
	cmd.Flags().Uint64("after", 0, "Only show actions after this sequence number")
	cmd.Flags().Int("limit", 0, "Show at most this many actions (0 = all)")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	sessionID, _ := cmd.Flags().GetString("session")
	listSessions, _ := cmd.Flags().GetBool("sessions")
	replay, _ := cmd.Flags().GetBool("replay")
	after, _ := cmd.Flags().GetUint64("after")
	limit, _ := cmd.Flags().GetInt("limit")

	return withApp(cmd, "history", func(a *app) error {
		if listSessions {
			ids, err := a.journal.Sessions(a.ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				marker := ""
				if id == a.store.SessionID() {
					marker = " (current)"
				}
				a.printf("%s%s\n", id, marker)
			}
			return nil
		}

		if sessionID == "" {
			sessionID = a.store.SessionID()
		}
		entries, err := a.journal.List(a.ctx, sessionID, after, limit)
		if err != nil {
			return err
		}
		if replay {
			if after > 0 || limit > 0 {
				return exitError(exitValidation, "history: --replay needs the full journal; drop --after and --limit")
			}
			mode, _ := a.cfg.Mode(nil)
			state, err := bus.Replay(mode, entries)
			if errors.Is(err, bus.ErrJournalTruncated) {
				return exitError(exitRuntime, "history: cannot replay session %s: %v", sessionID, err)
			}
			if err != nil {
				return err
			}
			return printState(a.out, state, "-")
		}
		if len(entries) == 0 {
			a.printf("No actions journaled for session %s\n", sessionID)
			return nil
		}

		writer := tabwriter.NewWriter(a.out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(writer, "SEQ\tTIME\tACTION\tRESULT")
		for _, e := range entries {
			result := "changed"
			if e.Kind == session.EventStateUnchanged {
				result = "unchanged"
			}
			fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n",
				e.Seq,
				e.Time.Local().Format(time.DateTime),
				session.KindOf(e.Action),
				result,
			)
		}
		return writer.Flush()
	})
}
