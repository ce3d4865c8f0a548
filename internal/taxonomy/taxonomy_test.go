package taxonomy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/discovery-engine/internal/model"
)

const minimalCatalog = `
version: 1
opening_question: Tell me about your business.
categories:
  - id: lead_flow
    name: Leads
    question: Where do leads come from?
  - id: retention
    name: Retention
    question: Why do clients leave?
personas:
  - id: hunter
    name: Hunter
    centroid: {lead_flow: 9}
recipes:
  - id: bot
    title: Bot
    categories: [lead_flow]
    median_roi: 100
    p75_roi: 150
    payback_days: 7
    monthly_time_saved_hours: 2
    risk: low
`

func TestLoad_DefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := Load()
	require.NoError(t, err)

	cats := c.ListCategories()
	require.Len(t, cats, 8)
	assert.Equal(t, model.CategoryLeadFlow, cats[0])
	assert.Equal(t, model.CategoryAdminTasks, cats[7])

	for _, cat := range cats {
		q, ok := c.Question(cat)
		assert.True(t, ok)
		assert.NotEmpty(t, q, "category %s has no question", cat)
		assert.NotEmpty(t, c.Keywords(cat), "category %s has no keywords", cat)
	}
	assert.NotEmpty(t, c.OpeningQuestion())
	assert.Len(t, c.ListPersonas(), 5)
	assert.Len(t, c.ListRecipes(), 12)
	assert.NotEmpty(t, c.Intensity().Strong)
}

func TestParse_DenseCentroids(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(minimalCatalog))
	require.NoError(t, err)

	p, ok := c.Persona("hunter")
	require.True(t, ok)
	assert.Len(t, p.Centroid, 2)
	assert.Equal(t, 9.0, p.Centroid[model.CategoryLeadFlow])
	v, present := p.Centroid[model.CategoryRetention]
	assert.True(t, present)
	assert.Equal(t, 0.0, v)
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(minimalCatalog))
	require.NoError(t, err)

	cats := c.ListCategories()
	cats[0] = "mutated"
	assert.Equal(t, model.CategoryLeadFlow, c.ListCategories()[0])

	personas := c.ListPersonas()
	personas[0].Centroid[model.CategoryLeadFlow] = 1
	assert.Equal(t, 9.0, c.ListPersonas()[0].Centroid[model.CategoryLeadFlow])

	recipes := c.ListRecipes()
	recipes[0].Categories[0] = model.CategoryRetention
	r, ok := c.Recipe("bot")
	require.True(t, ok)
	assert.Equal(t, model.CategoryLeadFlow, r.Categories[0])
}

func TestCatalog_Lookups(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(minimalCatalog))
	require.NoError(t, err)

	_, ok := c.Question("unknown")
	assert.False(t, ok)
	assert.False(t, c.HasCategory("unknown"))
	assert.True(t, c.HasCategory(model.CategoryRetention))

	_, ok = c.Persona("nobody")
	assert.False(t, ok)
	_, ok = c.Recipe("nothing")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Version())
}

func TestParse_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		replace [2]string
		wantMsg string
	}{
		{"unknown recipe category", [2]string{"categories: [lead_flow]", "categories: [sales]"}, "unknown category sales"},
		{"unknown centroid category", [2]string{"{lead_flow: 9}", "{sales: 9}"}, "unknown category sales"},
		{"centroid out of range", [2]string{"{lead_flow: 9}", "{lead_flow: 11}"}, "out of range"},
		{"payback below one", [2]string{"payback_days: 7", "payback_days: 0"}, "payback_days"},
		{"negative hours", [2]string{"monthly_time_saved_hours: 2", "monthly_time_saved_hours: -1"}, "monthly_time_saved_hours"},
		{"p75 below median", [2]string{"p75_roi: 150", "p75_roi: 50"}, "p75_roi"},
		{"negative median roi", [2]string{"median_roi: 100", "median_roi: -50"}, "median_roi must be >= 0"},
		{"invalid risk", [2]string{"risk: low", "risk: extreme"}, "invalid risk"},
		{"missing question", [2]string{"question: Why do clients leave?", "question: \"\""}, "question is required"},
		{"duplicate category", [2]string{"id: retention", "id: lead_flow"}, "duplicate id"},
		{"missing opening question", [2]string{"opening_question: Tell me about your business.", "opening_question: \"\""}, "opening_question"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := strings.Replace(minimalCatalog, tt.replace[0], tt.replace[1], 1)
			require.NotEqual(t, minimalCatalog, data, "replacement did not apply")

			_, err := Parse([]byte(data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrCatalogLoad))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_EmptyLists(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("version: 1\nopening_question: hi\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCatalogLoad))
	assert.Contains(t, err.Error(), "no categories")
	assert.Contains(t, err.Error(), "no personas")
}

func TestParse_MalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("categories: [unterminated"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCatalogLoad))
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalCatalog), 0o600))

	c, err := LoadOrDefault(path)
	require.NoError(t, err)
	assert.Len(t, c.ListCategories(), 2)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCatalogLoad))

	def, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Len(t, def.ListCategories(), 8)
}
