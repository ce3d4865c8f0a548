// Package classifier turns a free-text answer into a sparse pain signal.
// Implementations may call out to a language model; Guarded bounds those
// calls and degrades every failure to a no-signal result.
package classifier

import (
	"context"
	"strings"

	"github.com/sells-group/discovery-engine/internal/model"
)

// Classifier scores an answer against the pain categories. The current
// matrix is context only; implementations must not modify it.
type Classifier interface {
	Classify(ctx context.Context, answer string, matrix model.PainMatrix) (model.Signal, error)
}

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, answer string, matrix model.PainMatrix) (model.Signal, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, answer string, matrix model.PainMatrix) (model.Signal, error) {
	return f(ctx, answer, matrix)
}

// cleanJSON extracts a JSON object from model output that may be wrapped in
// markdown fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
