package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/discovery-engine/internal/engine"
	"github.com/sells-group/discovery-engine/internal/metrics"
)

var replayConcurrency int

var replayCmd = &cobra.Command{
	Use:   "replay <transcript>...",
	Short: "Replay recorded interview transcripts through the engine",
	Long:  "Each transcript is a YAML or JSON file with a business summary and an ordered list of answers. One JSON line per transcript is written to stdout.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayConcurrency > 0 {
			cfg.Replay.Concurrency = replayConcurrency
		}
		if err := cfg.Validate("replay"); err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initEngine(ctx, metrics.Default())
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := expandTranscripts(args)
		if err != nil {
			return err
		}
		return runReplay(ctx, env.Engine, paths, cfg.Replay.Concurrency, cmd.OutOrStdout())
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayConcurrency, "concurrency", 0, "transcripts replayed in parallel (default from config)")
	rootCmd.AddCommand(replayCmd)
}

// transcript is a recorded interview.
type transcript struct {
	Summary string   `yaml:"summary" json:"summary"`
	Answers []string `yaml:"answers" json:"answers"`
}

// replayResult is one output line.
type replayResult struct {
	File            string   `json:"file"`
	SessionID       string   `json:"session_id,omitempty"`
	Complete        bool     `json:"complete"`
	QuestionCount   int      `json:"question_count"`
	AnswersUnused   int      `json:"answers_unused"`
	Persona         string   `json:"persona,omitempty"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations"`
	Error           string   `json:"error,omitempty"`
}

func loadTranscript(path string) (*transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "replay: read %s", path)
	}
	var t transcript
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "replay: parse %s", path)
	}
	if len(t.Answers) == 0 {
		return nil, eris.Errorf("replay: %s has no answers", path)
	}
	return &t, nil
}

// expandTranscripts turns directory arguments into the transcript files they hold.
func expandTranscripts(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "replay: stat %s", arg)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, eris.Wrapf(err, "replay: glob %s", arg)
			}
			paths = append(paths, matches...)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func replayOne(ctx context.Context, eng *engine.Engine, path string) replayResult {
	out := replayResult{File: path, Recommendations: []string{}}
	t, err := loadTranscript(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	res, err := eng.Start(ctx, t.Summary)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.SessionID = res.SessionID()

	used := 0
	for _, answer := range t.Answers {
		if res.IsComplete() {
			break
		}
		res, err = eng.AnswerWithRetry(ctx, out.SessionID, answer)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		used++
	}

	out.Complete = res.IsComplete()
	out.QuestionCount = res.QuestionCount()
	out.AnswersUnused = len(t.Answers) - used
	out.Confidence = res.ConfidenceLevel()
	if p := res.Persona(); p != nil {
		out.Persona = p.ID
	}
	if view, ok := res.Complete(); ok {
		for _, m := range view.ROIMetrics {
			out.Recommendations = append(out.Recommendations, m.RecipeID)
		}
	}
	return out
}

// runReplay replays transcripts with bounded parallelism. Results are
// written in input order; a failed transcript is reported in its line and
// does not stop the others.
func runReplay(ctx context.Context, eng *engine.Engine, paths []string, concurrency int, w io.Writer) error {
	results := make([]replayResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	var mu sync.Mutex
	failed := 0
	for i, path := range paths {
		g.Go(func() error {
			r := replayOne(gctx, eng, path)
			results[i] = r
			if r.Error != "" {
				mu.Lock()
				failed++
				mu.Unlock()
				zap.L().Warn("replay failed", zap.String("file", path), zap.String("error", r.Error))
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "replay")
	}

	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "replay: write result")
		}
	}
	zap.L().Info("replay complete", zap.Int("transcripts", len(paths)), zap.Int("failed", failed))
	return nil
}
