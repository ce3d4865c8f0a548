package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
)

var cats = []model.PainCategory{model.CategoryLeadFlow, model.CategoryRetention}

func personasFixture() []model.Persona {
	return []model.Persona{
		{ID: "hunter", Name: "Hunter", Centroid: model.PainMatrix{model.CategoryLeadFlow: 9, model.CategoryRetention: 1}},
		{ID: "keeper", Name: "Keeper", Centroid: model.PainMatrix{model.CategoryLeadFlow: 1, model.CategoryRetention: 9}},
	}
}

func TestClassify_NearestWins(t *testing.T) {
	t.Parallel()

	c := NewClassifier(personasFixture(), cats)
	m := model.PainMatrix{model.CategoryLeadFlow: 8, model.CategoryRetention: 2}

	got := c.Classify(m)
	require.NotNil(t, got.Persona)
	assert.Equal(t, "hunter", got.Persona.ID)
	assert.Greater(t, got.Confidence, 0.0)
	assert.LessOrEqual(t, got.Confidence, 10.0)
	require.Len(t, got.Distances, 2)
	assert.Less(t, got.Distances[0].Value, got.Distances[1].Value)
}

func TestClassify_ExactCentroidMaxConfidence(t *testing.T) {
	t.Parallel()

	personas := []model.Persona{
		{ID: "a", Centroid: model.PainMatrix{model.CategoryLeadFlow: 10, model.CategoryRetention: 0}},
		{ID: "b", Centroid: model.PainMatrix{model.CategoryLeadFlow: 0, model.CategoryRetention: 10}},
	}
	c := NewClassifier(personas, cats)

	got := c.Classify(model.PainMatrix{model.CategoryLeadFlow: 10, model.CategoryRetention: 0})
	require.NotNil(t, got.Persona)
	assert.Equal(t, "a", got.Persona.ID)
	assert.InDelta(t, 10.0, got.Confidence, 1e-9)
}

func TestClassify_TieGoesToFirstListed(t *testing.T) {
	t.Parallel()

	c := NewClassifier(personasFixture(), cats)
	m := model.PainMatrix{model.CategoryLeadFlow: 5, model.CategoryRetention: 5}

	got := c.Classify(m)
	require.NotNil(t, got.Persona)
	assert.Equal(t, "hunter", got.Persona.ID)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestClassify_AllZeroHasNoPersona(t *testing.T) {
	t.Parallel()

	c := NewClassifier(personasFixture(), cats)
	got := c.Classify(model.NewPainMatrix(cats))

	assert.Nil(t, got.Persona)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Len(t, got.Distances, 2)
}

func TestClassify_NoPersonas(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil, cats)
	got := c.Classify(model.PainMatrix{model.CategoryLeadFlow: 7})
	assert.Nil(t, got.Persona)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestClassify_SinglePersona(t *testing.T) {
	t.Parallel()

	c := NewClassifier(personasFixture()[:1], cats)
	got := c.Classify(model.PainMatrix{model.CategoryLeadFlow: 5})
	require.NotNil(t, got.Persona)
	assert.InDelta(t, 5.0, got.Confidence, 1e-9)
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	cat, err := taxonomy.Load()
	require.NoError(t, err)
	c := NewClassifier(cat.ListPersonas(), cat.ListCategories())

	m := model.NewPainMatrix(cat.ListCategories())
	m[model.CategoryAdminTasks] = 8
	m[model.CategoryOnboarding] = 6

	first := c.Classify(m)
	require.NotNil(t, first.Persona)
	assert.Equal(t, "overwhelmed_operator", first.Persona.ID)
	for i := 0; i < 20; i++ {
		again := c.Classify(m)
		assert.Equal(t, first.Persona.ID, again.Persona.ID)
		assert.Equal(t, first.Confidence, again.Confidence)
	}
}

func TestClassify_DoesNotAliasCentroid(t *testing.T) {
	t.Parallel()

	c := NewClassifier(personasFixture(), cats)
	got := c.Classify(model.PainMatrix{model.CategoryLeadFlow: 9, model.CategoryRetention: 1})
	require.NotNil(t, got.Persona)
	got.Persona.Centroid[model.CategoryLeadFlow] = 0

	again := c.Classify(model.PainMatrix{model.CategoryLeadFlow: 9, model.CategoryRetention: 1})
	assert.Equal(t, 9.0, again.Persona.Centroid[model.CategoryLeadFlow])
}
