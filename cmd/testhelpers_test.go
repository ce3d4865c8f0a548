//go:build !integration

package main

import (
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/discovery-engine/internal/classifier"
	"github.com/sells-group/discovery-engine/internal/engine"
	"github.com/sells-group/discovery-engine/internal/metrics"
	"github.com/sells-group/discovery-engine/internal/store"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
)

// newTestEnv wires an engine over a memory store and the keyword
// classifier. The returned registry backs the engine's metrics.
func newTestEnv(t *testing.T) (*appEnv, *prometheus.Registry) {
	t.Helper()
	cat, err := taxonomy.Load()
	require.NoError(t, err)
	st, err := store.NewMemory(64)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)
	cls := classifier.NewGuarded(classifier.NewKeyword(cat), classifier.DefaultGuardConfig(), m)

	eng, err := engine.New(engine.Deps{
		Store:      st,
		Catalog:    cat,
		Classifier: cls,
		Metrics:    m,
	})
	require.NoError(t, err)

	env := &appEnv{Store: st, Catalog: cat, Classifier: cls, Engine: eng, Metrics: m}
	t.Cleanup(env.Close)
	return env, reg
}

// chdirTemp runs the test from an empty directory so no config.yaml is
// picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

// withConfig loads config from the current directory and restores the
// previous global afterwards.
func withConfig(t *testing.T) {
	t.Helper()
	old := cfg
	t.Cleanup(func() { cfg = old })
	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
}
