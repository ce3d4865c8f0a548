// Package taxonomy loads the static discovery catalog: ordered pain
// categories with their canonical questions, persona centroids and
// automation recipes. A catalog is validated in full on load and is
// immutable afterwards; there is no partial-catalog mode.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/discovery-engine/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Category describes one pain category and the question that probes it.
type Category struct {
	ID       model.PainCategory `yaml:"id" json:"id"`
	Name     string             `yaml:"name" json:"name"`
	Question string             `yaml:"question" json:"question"`
	Keywords []string           `yaml:"keywords" json:"keywords,omitempty"`
}

// Intensity lists modifier phrases that strengthen or weaken a keyword hit.
type Intensity struct {
	Strong []string `yaml:"strong" json:"strong,omitempty"`
	Weak   []string `yaml:"weak" json:"weak,omitempty"`
}

type catalogFile struct {
	Version         int             `yaml:"version"`
	OpeningQuestion string          `yaml:"opening_question"`
	Categories      []Category      `yaml:"categories"`
	Intensity       Intensity       `yaml:"intensity"`
	Personas        []model.Persona `yaml:"personas"`
	Recipes         []model.Recipe  `yaml:"recipes"`
}

// Catalog is the loaded, validated taxonomy.
type Catalog struct {
	version    int
	opening    string
	categories []Category
	order      []model.PainCategory
	byID       map[model.PainCategory]Category
	intensity  Intensity
	personas   []model.Persona
	recipes    []model.Recipe
}

// Load parses the embedded default catalog.
func Load() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile parses a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrCatalogLoad, "taxonomy: read %s: %v", path, err)
	}
	return Parse(data)
}

// LoadOrDefault loads path when set, otherwise the embedded catalog.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Load()
	}
	return LoadFile(path)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var raw catalogFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(model.ErrCatalogLoad, "taxonomy: parse: %v", err)
	}
	if err := validate(&raw); err != nil {
		return nil, eris.Wrapf(model.ErrCatalogLoad, "taxonomy: %v", err)
	}

	c := &Catalog{
		version:    raw.Version,
		opening:    strings.TrimSpace(raw.OpeningQuestion),
		categories: raw.Categories,
		byID:       make(map[model.PainCategory]Category, len(raw.Categories)),
		intensity:  raw.Intensity,
		recipes:    raw.Recipes,
	}
	for _, cat := range raw.Categories {
		c.order = append(c.order, cat.ID)
		c.byID[cat.ID] = cat
	}
	// Centroids are stored dense so distance math sees every category.
	for _, p := range raw.Personas {
		dense := model.NewPainMatrix(c.order)
		for k, v := range p.Centroid {
			dense[k] = v
		}
		p.Centroid = dense
		c.personas = append(c.personas, p)
	}
	return c, nil
}

func validate(raw *catalogFile) error {
	var errs []string

	if len(raw.Categories) == 0 {
		errs = append(errs, "no categories defined")
	}
	if strings.TrimSpace(raw.OpeningQuestion) == "" {
		errs = append(errs, "opening_question is required")
	}

	known := make(map[model.PainCategory]bool, len(raw.Categories))
	for i, cat := range raw.Categories {
		switch {
		case cat.ID == "":
			errs = append(errs, fmt.Sprintf("category %d: id is required", i))
			continue
		case known[cat.ID]:
			errs = append(errs, fmt.Sprintf("category %s: duplicate id", cat.ID))
		}
		known[cat.ID] = true
		if strings.TrimSpace(cat.Question) == "" {
			errs = append(errs, fmt.Sprintf("category %s: question is required", cat.ID))
		}
	}

	if len(raw.Personas) == 0 {
		errs = append(errs, "no personas defined")
	}
	seenPersona := make(map[string]bool, len(raw.Personas))
	for i, p := range raw.Personas {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("persona %d: id is required", i))
			continue
		}
		if seenPersona[p.ID] {
			errs = append(errs, fmt.Sprintf("persona %s: duplicate id", p.ID))
		}
		seenPersona[p.ID] = true
		for c, v := range p.Centroid {
			if !known[c] {
				errs = append(errs, fmt.Sprintf("persona %s: unknown category %s", p.ID, c))
			}
			if v < model.ScoreMin || v > model.ScoreMax {
				errs = append(errs, fmt.Sprintf("persona %s: centroid %s=%.2f out of range", p.ID, c, v))
			}
		}
	}

	seenRecipe := make(map[string]bool, len(raw.Recipes))
	for i, r := range raw.Recipes {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("recipe %d: id is required", i))
			continue
		}
		if seenRecipe[r.ID] {
			errs = append(errs, fmt.Sprintf("recipe %s: duplicate id", r.ID))
		}
		seenRecipe[r.ID] = true
		if len(r.Categories) == 0 {
			errs = append(errs, fmt.Sprintf("recipe %s: no categories", r.ID))
		}
		for _, c := range r.Categories {
			if !known[c] {
				errs = append(errs, fmt.Sprintf("recipe %s: unknown category %s", r.ID, c))
			}
		}
		if r.PaybackDays < 1 {
			errs = append(errs, fmt.Sprintf("recipe %s: payback_days must be >= 1", r.ID))
		}
		if r.MonthlyTimeSavedHours < 0 {
			errs = append(errs, fmt.Sprintf("recipe %s: monthly_time_saved_hours must be >= 0", r.ID))
		}
		if r.MedianROI < 0 {
			errs = append(errs, fmt.Sprintf("recipe %s: median_roi must be >= 0", r.ID))
		}
		if r.P75ROI < r.MedianROI {
			errs = append(errs, fmt.Sprintf("recipe %s: p75_roi must be >= median_roi", r.ID))
		}
		if !r.Risk.Valid() {
			errs = append(errs, fmt.Sprintf("recipe %s: invalid risk %q", r.ID, r.Risk))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Version returns the catalog schema version.
func (c *Catalog) Version() int { return c.version }

// ListCategories returns the ordered category ids.
func (c *Catalog) ListCategories() []model.PainCategory {
	return append([]model.PainCategory(nil), c.order...)
}

// Categories returns the ordered category descriptors.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		cat.Keywords = append([]string(nil), cat.Keywords...)
		out[i] = cat
	}
	return out
}

// HasCategory reports whether id is part of the catalog.
func (c *Catalog) HasCategory(id model.PainCategory) bool {
	_, ok := c.byID[id]
	return ok
}

// Question returns the canonical question for a category.
func (c *Catalog) Question(id model.PainCategory) (string, bool) {
	cat, ok := c.byID[id]
	if !ok {
		return "", false
	}
	return cat.Question, true
}

// OpeningQuestion returns the question asked before any category is probed.
func (c *Catalog) OpeningQuestion() string { return c.opening }

// Keywords returns the lexicon used by the offline classifier.
func (c *Catalog) Keywords(id model.PainCategory) []string {
	return append([]string(nil), c.byID[id].Keywords...)
}

// Intensity returns the intensity modifier phrases.
func (c *Catalog) Intensity() Intensity {
	return Intensity{
		Strong: append([]string(nil), c.intensity.Strong...),
		Weak:   append([]string(nil), c.intensity.Weak...),
	}
}

// ListPersonas returns personas in catalog order.
func (c *Catalog) ListPersonas() []model.Persona {
	out := make([]model.Persona, len(c.personas))
	for i, p := range c.personas {
		p.Centroid = p.Centroid.Clone()
		out[i] = p
	}
	return out
}

// Persona looks up a persona by id.
func (c *Catalog) Persona(id string) (*model.Persona, bool) {
	for _, p := range c.personas {
		if p.ID == id {
			p.Centroid = p.Centroid.Clone()
			return &p, true
		}
	}
	return nil, false
}

// ListRecipes returns recipes in catalog order.
func (c *Catalog) ListRecipes() []model.Recipe {
	out := make([]model.Recipe, len(c.recipes))
	for i, r := range c.recipes {
		r.Categories = append([]model.PainCategory(nil), r.Categories...)
		out[i] = r
	}
	return out
}

// Recipe looks up a recipe by id.
func (c *Catalog) Recipe(id string) (*model.Recipe, bool) {
	for _, r := range c.recipes {
		if r.ID == id {
			r.Categories = append([]model.PainCategory(nil), r.Categories...)
			return &r, true
		}
	}
	return nil, false
}
