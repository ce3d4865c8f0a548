package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/resilience"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
	"github.com/sells-group/discovery-engine/pkg/anthropic"
)

const defaultMaxTokens = 256

// AnthropicConfig configures the model-backed classifier.
type AnthropicConfig struct {
	Model     string
	MaxTokens int64
}

// Anthropic classifies answers with a Claude model. The response must be a
// JSON object of the form {"signals": {"<category>": 0-10}}.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	known     map[model.PainCategory]bool
	system    []anthropic.SystemBlock
}

// NewAnthropic builds the classifier for the catalog's categories.
func NewAnthropic(client anthropic.Client, cat *taxonomy.Catalog, cfg AnthropicConfig) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = anthropic.DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	known := make(map[model.PainCategory]bool)
	for _, c := range cat.ListCategories() {
		known[c] = true
	}
	return &Anthropic{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		known:     known,
		system:    anthropic.CachedSystem(systemPrompt(cat.Categories())),
	}
}

func systemPrompt(cats []taxonomy.Category) string {
	var b strings.Builder
	b.WriteString("You score how strongly a coaching business owner's answer expresses operational pain.\n")
	b.WriteString("Categories:\n")
	for _, c := range cats {
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, c.Name)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Include only categories the answer gives clear evidence for.\n")
	b.WriteString("- Score 0 (no pain) to 10 (severe, urgent pain).\n")
	b.WriteString("- If the answer carries no usable signal, return an empty object.\n")
	b.WriteString("Respond with JSON only: {\"signals\": {\"<category_id>\": <score>}}")
	return b.String()
}

// Classify calls the model and parses its verdict. Transport failures are
// returned as errors; unparseable output is a no-signal result.
func (a *Anthropic) Classify(ctx context.Context, answer string, matrix model.PainMatrix) (model.Signal, error) {
	if strings.TrimSpace(answer) == "" {
		return model.NoSignal("empty answer"), nil
	}

	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      a.system,
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(answer, matrix)}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.IsTransientStatus(code) {
			return model.Signal{}, resilience.Transient(eris.Wrap(err, "classifier: anthropic"), code)
		}
		return model.Signal{}, eris.Wrap(err, "classifier: anthropic")
	}
	resp.Usage.LogCost(a.model, "classify")

	sig, perr := a.parse(resp.Text())
	if perr != nil {
		zap.L().Debug("classifier: unparseable model output", zap.Error(perr))
		return model.NoSignal("unparseable"), nil
	}
	return sig, nil
}

func userPrompt(answer string, matrix model.PainMatrix) string {
	keys := make([]string, 0, len(matrix))
	for c := range matrix {
		keys = append(keys, string(c))
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Scores so far:")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%.1f", k, matrix[model.PainCategory(k)])
	}
	b.WriteString("\n\nAnswer:\n")
	b.WriteString(answer)
	return b.String()
}

type signalResponse struct {
	Signals map[string]float64 `json:"signals"`
}

func (a *Anthropic) parse(text string) (model.Signal, error) {
	var out signalResponse
	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err != nil {
		return model.Signal{}, eris.Wrap(err, "classifier: decode signals")
	}
	scores := make(map[model.PainCategory]float64, len(out.Signals))
	for k, v := range out.Signals {
		c := model.PainCategory(strings.ToLower(strings.TrimSpace(k)))
		if a.known[c] {
			scores[c] = v
		}
	}
	return model.NewSignal(scores), nil
}
