//go:build !integration

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/discovery-engine/internal/taxonomy"
)

func TestWriteCatalog(t *testing.T) {
	cat, err := taxonomy.Load()
	require.NoError(t, err)

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCatalog(&buf, cat, "yaml"))

		var view catalogView
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &view))
		assert.Equal(t, cat.Version(), view.Version)
		assert.Len(t, view.Categories, len(cat.ListCategories()))
		assert.Len(t, view.Personas, len(cat.ListPersonas()))
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCatalog(&buf, cat, "json"))

		var view catalogView
		require.NoError(t, json.Unmarshal(buf.Bytes(), &view))
		assert.Equal(t, cat.OpeningQuestion(), view.OpeningQuestion)
		assert.Len(t, view.Recipes, len(cat.ListRecipes()))
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		err := writeCatalog(&buf, cat, "toml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown format "toml"`)
		assert.Zero(t, buf.Len())
	})
}
