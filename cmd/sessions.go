package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/report"
	"github.com/sells-group/discovery-engine/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and maintain stored sessions",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("sessions")
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := sessionFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sessions, err := st.ListSessions(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if asJSON {
			return writeSessionSummaries(cmd.OutOrStdout(), sessions)
		}
		if len(sessions) == 0 {
			zap.L().Info("no sessions found")
			return nil
		}
		formatSessions(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s, err := st.LoadSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sessions not updated within the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Store.RetentionDays
		}
		if days <= 0 {
			return eris.New("sessions prune: retention days must be positive")
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cutoff := time.Now().AddDate(0, 0, -days)
		n, err := st.DeleteSessionsBefore(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		zap.L().Info("sessions pruned",
			zap.Int("deleted", n),
			zap.Int("retention_days", days),
			zap.Time("cutoff", cutoff),
		)
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions and their recommendations to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return eris.New("sessions export: --out is required")
		}
		filter, err := sessionFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		cat, err := initCatalog()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sessions, err := st.ListSessions(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if err := report.WriteSessions(out, sessions, cat.ListCategories()); err != nil {
			return err
		}
		zap.L().Info("sessions exported", zap.String("path", out), zap.Int("sessions", len(sessions)))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{sessionsListCmd, sessionsExportCmd} {
		c.Flags().String("state", "", "filter by state (awaiting_first_answer, asking, complete)")
		c.Flags().Int("limit", 0, "maximum sessions returned (0 = all)")
		c.Flags().Int("offset", 0, "sessions skipped before the first returned")
	}
	sessionsListCmd.Flags().Bool("json", false, "print JSON lines instead of a table")
	sessionsPruneCmd.Flags().Int("days", 0, "retention window in days (default from config)")
	sessionsExportCmd.Flags().String("out", "sessions.xlsx", "output workbook path")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsPruneCmd, sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func sessionFilterFromFlags(cmd *cobra.Command) (store.SessionFilter, error) {
	state, _ := cmd.Flags().GetString("state")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return parseSessionFilter(state, limit, offset)
}

func parseSessionFilter(state string, limit, offset int) (store.SessionFilter, error) {
	switch model.SessionState(state) {
	case "", model.StateAwaitingFirstAnswer, model.StateAsking, model.StateComplete:
	default:
		return store.SessionFilter{}, eris.Errorf("unknown session state: %s", state)
	}
	if limit < 0 || offset < 0 {
		return store.SessionFilter{}, eris.New("limit and offset must not be negative")
	}
	return store.SessionFilter{
		State:  model.SessionState(state),
		Limit:  limit,
		Offset: offset,
	}, nil
}

func writeSessionSummaries(out io.Writer, sessions []*model.Session) error {
	enc := json.NewEncoder(out)
	for _, s := range sessions {
		if err := enc.Encode(s.Summary()); err != nil {
			return eris.Wrap(err, "sessions: encode summary")
		}
	}
	return nil
}

func formatSessions(out io.Writer, sessions []*model.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATE\tPERSONA\tCONFIDENCE\tQUESTIONS\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-------\t----------\t---------\t-------")

	for _, s := range sessions {
		persona := s.PersonaID
		if persona == "" {
			persona = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\n",
			shortID(s.ID),
			s.State,
			persona,
			s.Confidence,
			s.QuestionCount,
			s.UpdatedAt.UTC().Format(time.RFC3339),
		)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
