package classifier

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
)

// Keyword scoring constants.
const (
	keywordBase     = 5.0
	keywordPerExtra = 1.5
	intensityStep   = 2.0
	keywordFloor    = 1.0
)

// Keyword is a deterministic lexicon classifier driven by the catalog's
// keyword lists. It needs no network and is used when no model is
// configured.
type Keyword struct {
	lexicon map[model.PainCategory][]string
	order   []model.PainCategory
	strong  []string
	weak    []string
}

// NewKeyword builds a keyword classifier from the catalog.
func NewKeyword(cat *taxonomy.Catalog) *Keyword {
	k := &Keyword{
		lexicon: make(map[model.PainCategory][]string),
		order:   cat.ListCategories(),
	}
	for _, c := range k.order {
		seen := make(map[string]bool)
		for _, w := range cat.Keywords(c) {
			if n := normalize(w); n != "" && !seen[n] {
				seen[n] = true
				k.lexicon[c] = append(k.lexicon[c], n)
			}
		}
	}
	in := cat.Intensity()
	for _, w := range in.Strong {
		k.strong = append(k.strong, normalize(w))
	}
	for _, w := range in.Weak {
		k.weak = append(k.weak, normalize(w))
	}
	return k
}

// Classify scores each category by keyword hits, adjusted by intensity
// words anywhere in the answer.
func (k *Keyword) Classify(ctx context.Context, answer string, _ model.PainMatrix) (model.Signal, error) {
	if err := ctx.Err(); err != nil {
		return model.Signal{}, err
	}
	text := normalize(answer)
	if text == "" {
		return model.NoSignal("empty answer"), nil
	}
	padded := " " + text + " "

	adjust := 0.0
	if containsAny(padded, k.strong) {
		adjust += intensityStep
	}
	if containsAny(padded, k.weak) {
		adjust -= intensityStep
	}

	scores := make(map[model.PainCategory]float64)
	for _, c := range k.order {
		hits := 0
		for _, w := range k.lexicon[c] {
			hits += strings.Count(padded, " "+w+" ")
		}
		if hits == 0 {
			continue
		}
		v := keywordBase + keywordPerExtra*float64(hits-1) + adjust
		scores[c] = max(v, keywordFloor)
	}
	if len(scores) == 0 {
		return model.NoSignal("no keywords"), nil
	}
	return model.NewSignal(scores), nil
}

func containsAny(padded string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}

// normalize case-folds s and collapses everything but letters and digits
// into single spaces.
func normalize(s string) string {
	folded := cases.Fold().String(s)
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
