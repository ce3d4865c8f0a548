package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/discovery-engine/internal/engine"
	"github.com/sells-group/discovery-engine/internal/metrics"
	"github.com/sells-group/discovery-engine/internal/model"
)

var (
	interviewSummary string
	interviewSession string
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run a discovery interview on the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("interview"); err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initEngine(ctx, metrics.Default())
		if err != nil {
			return err
		}
		defer env.Close()

		return runInterview(ctx, env.Engine, cmd.InOrStdin(), cmd.OutOrStdout(), interviewSummary, interviewSession)
	},
}

func init() {
	interviewCmd.Flags().StringVar(&interviewSummary, "summary", "", "one-line description of the business")
	interviewCmd.Flags().StringVar(&interviewSession, "session", "", "resume an existing session by id")
	rootCmd.AddCommand(interviewCmd)
}

// runInterview reads one answer per line until the session completes or
// input ends. An unfinished session stays stored and can be resumed.
func runInterview(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer, summary, sessionID string) error {
	var (
		res *model.TurnResult
		err error
	)
	if sessionID != "" {
		res, err = eng.Get(ctx, sessionID)
	} else {
		res, err = eng.Start(ctx, summary)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Session %s\n", res.SessionID())

	scanner := bufio.NewScanner(in)
	for !res.IsComplete() {
		view, _ := res.Asking()
		fmt.Fprintf(out, "\n[%d/%d] %s\n> ", res.QuestionCount()+1, eng.Settings().Interview.MaxQuestions, view.NextQuestion)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return eris.Wrap(err, "interview: read answer")
			}
			fmt.Fprintf(out, "\nPaused. Resume with --session %s\n", res.SessionID())
			return nil
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			continue
		}
		res, err = eng.AnswerWithRetry(ctx, res.SessionID(), answer)
		if err != nil {
			fmt.Fprintln(out, model.PublicMessage(err))
			return err
		}
	}

	printResults(out, res)
	return nil
}

func printResults(out io.Writer, res *model.TurnResult) {
	fmt.Fprintln(out, "\nThanks, that's everything we need.")
	if p := res.Persona(); p != nil {
		fmt.Fprintf(out, "Profile: %s (confidence %.1f/10)\n", p.Name, res.ConfidenceLevel())
	}
	view, _ := res.Complete()
	if len(view.Narratives) == 0 {
		fmt.Fprintln(out, "No automation clearly fits what you described yet.")
		return
	}
	fmt.Fprintln(out, "\nRecommended automations:")
	for i, n := range view.Narratives {
		fmt.Fprintf(out, "%d. [%s] %s\n   %s\n", i+1, n.BadgeColor, n.Headline, n.Explainer)
	}
}
