// Package report exports stored sessions as spreadsheets.
package report

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/discovery-engine/internal/model"
)

// Sheet names written by WriteSessions.
const (
	SessionsSheet        = "Sessions"
	RecommendationsSheet = "Recommendations"
)

var sessionColumns = []string{
	"session_id", "state", "persona", "confidence", "question_count",
	"completion_reason", "created_at", "updated_at",
}

var recommendationColumns = []string{
	"session_id", "rank", "recipe_id", "recipe", "relevance", "median_roi",
	"p75_roi", "payback_days", "monthly_hours_saved", "risk", "headline",
}

// WriteSessions writes one row per session to the Sessions sheet, with a
// score column per category, and one row per recommended recipe to the
// Recommendations sheet.
func WriteSessions(path string, sessions []*model.Session, categories []model.PainCategory) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SessionsSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sessions sheet")
	}
	header := append([]string{}, sessionColumns...)
	for _, c := range categories {
		header = append(header, string(c))
	}
	addStringRow(sheet, header)

	for _, s := range sessions {
		row := sheet.AddRow()
		row.AddCell().SetString(s.ID)
		row.AddCell().SetString(string(s.State))
		row.AddCell().SetString(s.PersonaID)
		row.AddCell().SetFloat(s.Confidence)
		row.AddCell().SetInt(s.QuestionCount)
		row.AddCell().SetString(string(s.CompletionReason))
		row.AddCell().SetString(formatTime(s.CreatedAt))
		row.AddCell().SetString(formatTime(s.UpdatedAt))
		for _, c := range categories {
			row.AddCell().SetFloat(s.PainMatrix.Score(c))
		}
	}

	recs, err := f.AddSheet(RecommendationsSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add recommendations sheet")
	}
	addStringRow(recs, recommendationColumns)

	for _, s := range sessions {
		if s.Result == nil {
			continue
		}
		headlines := make(map[string]string, len(s.Result.Narratives))
		for _, n := range s.Result.Narratives {
			headlines[n.RecipeID] = n.Headline
		}
		for i, m := range s.Result.Metrics {
			row := recs.AddRow()
			row.AddCell().SetString(s.ID)
			row.AddCell().SetInt(i + 1)
			row.AddCell().SetString(m.RecipeID)
			row.AddCell().SetString(m.RecipeTitle)
			row.AddCell().SetFloat(m.Relevance)
			row.AddCell().SetFloat(m.MedianROI)
			row.AddCell().SetFloat(m.P75ROI)
			row.AddCell().SetInt(m.PaybackDays)
			row.AddCell().SetFloat(m.MonthlyTimeSaved)
			row.AddCell().SetString(string(m.Risk))
			row.AddCell().SetString(headlines[m.RecipeID])
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save file")
	}
	return nil
}

// ReadSheet returns every row of the named sheet as strings.
func ReadSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
