// Package persona matches a pain matrix to the nearest persona centroid and
// grades how clearly that persona stands out.
package persona

import (
	"math"

	"github.com/sells-group/discovery-engine/internal/model"
)

// Distance is the Euclidean distance from a matrix to one persona centroid.
type Distance struct {
	PersonaID string  `json:"persona_id"`
	Value     float64 `json:"distance"`
}

// Match is a classification result. Persona is nil when the matrix carries
// no evidence at all.
type Match struct {
	Persona    *model.Persona
	Confidence float64
	Distances  []Distance
}

// Classifier assigns personas. It holds immutable catalog data only.
type Classifier struct {
	personas   []model.Persona
	categories []model.PainCategory
}

// NewClassifier builds a classifier over personas in catalog order.
func NewClassifier(personas []model.Persona, categories []model.PainCategory) *Classifier {
	ps := make([]model.Persona, len(personas))
	for i, p := range personas {
		p.Centroid = p.Centroid.Clone()
		ps[i] = p
	}
	return &Classifier{
		personas:   ps,
		categories: append([]model.PainCategory(nil), categories...),
	}
}

// Classify returns the nearest persona and a confidence in [0,10].
//
// Confidence is the relative margin between the two nearest centroids,
// scaled by how strong the strongest reported pain is:
//
//	10 * (d2-d1)/d2 * max(matrix)/10
//
// Equidistant nearest centroids and an all-zero matrix both give 0. Ties on
// distance go to the persona listed first.
func (c *Classifier) Classify(matrix model.PainMatrix) Match {
	m := Match{Distances: make([]Distance, 0, len(c.personas))}
	if len(c.personas) == 0 {
		return m
	}

	best, second := math.Inf(1), math.Inf(1)
	bestIdx := -1
	for i := range c.personas {
		d := c.distance(matrix, c.personas[i].Centroid)
		m.Distances = append(m.Distances, Distance{PersonaID: c.personas[i].ID, Value: d})
		switch {
		case d < best:
			second = best
			best = d
			bestIdx = i
		case d < second:
			second = d
		}
	}

	evidence := matrix.Max() / model.ScoreMax
	if evidence <= 0 {
		return m
	}

	p := c.personas[bestIdx]
	p.Centroid = p.Centroid.Clone()
	m.Persona = &p

	if math.IsInf(second, 1) || second <= 0 {
		// A single persona, or two centroids both sitting on the matrix.
		if math.IsInf(second, 1) {
			m.Confidence = model.ClampScore(model.ScoreMax * evidence)
		}
		return m
	}
	m.Confidence = model.ClampScore(model.ScoreMax * (second - best) / second * evidence)
	return m
}

func (c *Classifier) distance(matrix, centroid model.PainMatrix) float64 {
	var sum float64
	for _, cat := range c.categories {
		diff := matrix.Score(cat) - centroid.Score(cat)
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
