package printing

import (
	"fmt"
	"testing"
	"time"

	"github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/stretchr/testify/require"
)

func testRecord(recs, flags int) *content.Record {
	rec := &content.Record{
		ID:             "gonarthrose",
		Title:          "Arthrose du genou",
		Category:       "rhumatologie",
		UpdatedAt:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Summary:        "L'arthrose du genou est une usure du cartilage. L'activité physique adaptée reste le traitement de fond.",
		ContentVersion: "v1",
		Sources: []content.Source{
			{Title: "Prise en charge de la gonarthrose", Org: "HAS", Year: 2023, URL: "https://www.has-sante.fr/"},
		},
		DayPrograms: []content.DayProgram{{
			Title: "Reprise en douceur",
			Days: []content.ProgramDay{
				{Label: "Jour 1", Items: []string{"Marche 10 min", "Vélo 5 min"}},
				{Label: "Jour 2", Items: []string{"Marche 12 min"}},
			},
		}},
	}
	for i := 0; i < recs; i++ {
		rec.Recommendations = append(rec.Recommendations, content.Recommendation{
			Text: fmt.Sprintf("Recommandation numéro %d", i+1), Strength: content.StrengthA,
		})
	}
	for i := 0; i < flags; i++ {
		rec.RedFlags = append(rec.RedFlags, fmt.Sprintf("Signal d'alerte %d", i+1))
	}
	return rec
}

func testTree(t *testing.T, rec *content.Record, v document.Variant) *document.Tree {
	t.Helper()
	tree, err := document.Render(rec, v)
	require.NoError(t, err)
	return tree
}
