//go:build !integration

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readResults(t *testing.T, buf *bytes.Buffer) []replayResult {
	t.Helper()
	var out []replayResult
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var r replayResult
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

const longTranscript = `summary: online fitness coaching
answers:
  - I spend every day drowning in invoicing and scheduling
  - admin is killing me, billing and calendar all by hand
  - payments and bookkeeping in a spreadsheet
  - more admin
  - still admin
  - even more admin
  - extra answer
  - another extra answer
`

func TestLoadTranscript(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		tr, err := loadTranscript(writeFile(t, dir, "a.yaml", longTranscript))
		require.NoError(t, err)
		assert.Equal(t, "online fitness coaching", tr.Summary)
		assert.Len(t, tr.Answers, 8)
	})

	t.Run("json", func(t *testing.T) {
		tr, err := loadTranscript(writeFile(t, dir, "b.json", `{"summary":"x","answers":["one","two"]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, tr.Answers)
	})

	t.Run("no answers", func(t *testing.T) {
		_, err := loadTranscript(writeFile(t, dir, "c.yaml", "summary: x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no answers")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := loadTranscript(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestExpandTranscripts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", longTranscript)
	writeFile(t, dir, "a.json", `{"answers":["x"]}`)
	writeFile(t, dir, "notes.txt", "ignored")
	single := writeFile(t, t.TempDir(), "single.yml", longTranscript)

	paths, err := expandTranscripts([]string{dir, single})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		assert.NotEqual(t, ".txt", filepath.Ext(p))
	}
	assert.IsNonDecreasing(t, paths)

	_, err = expandTranscripts([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestRunReplay_OrderAndErrors(t *testing.T) {
	env, _ := newTestEnv(t)
	dir := t.TempDir()

	paths := []string{
		writeFile(t, dir, "1.yaml", longTranscript),
		writeFile(t, dir, "2.yaml", "summary: broken\n"),
		writeFile(t, dir, "3.yaml", "summary: short\nanswers: [leads]\n"),
	}

	var buf bytes.Buffer
	require.NoError(t, runReplay(context.Background(), env.Engine, paths, 2, &buf))

	results := readResults(t, &buf)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, paths[i], r.File)
	}

	full := results[0]
	assert.Empty(t, full.Error)
	assert.True(t, full.Complete)
	assert.NotEmpty(t, full.SessionID)
	assert.LessOrEqual(t, full.QuestionCount, env.Engine.Settings().Interview.MaxQuestions)
	assert.Equal(t, 8-full.QuestionCount, full.AnswersUnused)
	assert.NotNil(t, full.Recommendations)

	assert.Contains(t, results[1].Error, "has no answers")
	assert.Empty(t, results[1].SessionID)

	short := results[2]
	assert.Empty(t, short.Error)
	assert.False(t, short.Complete)
	assert.Equal(t, 1, short.QuestionCount)
	assert.Equal(t, 0, short.AnswersUnused)
	assert.Empty(t, short.Recommendations)
}

func TestRunReplay_Canceled(t *testing.T) {
	env, _ := newTestEnv(t)
	path := writeFile(t, t.TempDir(), "1.yaml", longTranscript)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := runReplay(ctx, env.Engine, []string{path}, 1, &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
