package document

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fichesante/backend/internal/domain/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(recs, flags, sources int) *content.Record {
	rec := &content.Record{
		ID:             "valid-a",
		Title:          "Fiche de test",
		Category:       "rhumatologie",
		UpdatedAt:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Summary:        "Résumé complet de la fiche.",
		ContentVersion: "v1",
	}
	for i := 0; i < recs; i++ {
		rec.Recommendations = append(rec.Recommendations, content.Recommendation{
			Text:     fmt.Sprintf("Recommandation %d", i+1),
			Strength: content.StrengthB,
		})
	}
	for i := 0; i < flags; i++ {
		rec.RedFlags = append(rec.RedFlags, fmt.Sprintf("Alerte %d", i+1))
	}
	for i := 0; i < sources; i++ {
		rec.Sources = append(rec.Sources, content.Source{
			Title: fmt.Sprintf("Source %d", i+1),
			Org:   "HAS",
			Year:  2020 + i,
		})
	}
	return rec
}

func sectionOf(t *testing.T, tree *Tree, kind SectionKind) *Section {
	t.Helper()
	s, ok := tree.Section(kind)
	require.True(t, ok, "section %s missing", kind)
	return s
}

func TestRender_TruncationParity(t *testing.T) {
	rec := newRecord(10, 10, 10)

	one, err := Render(rec, OnePage)
	require.NoError(t, err)
	assert.Len(t, sectionOf(t, one, SectionRecommendations).Items, 6)
	assert.Len(t, sectionOf(t, one, SectionRedFlags).Items, 8)
	assert.Len(t, sectionOf(t, one, SectionSources).Sources, 6)

	four, err := Render(rec, FourPages)
	require.NoError(t, err)
	assert.Len(t, sectionOf(t, four, SectionRecommendations).Items, 10)
	assert.Len(t, sectionOf(t, four, SectionRedFlags).Items, 10)
	assert.Len(t, sectionOf(t, four, SectionSources).Sources, 10)
}

func TestRender_KeepsOrderAndTags(t *testing.T) {
	rec := newRecord(8, 0, 0)
	rec.Recommendations[0].Strength = content.StrengthA

	tree, err := Render(rec, OnePage)
	require.NoError(t, err)

	items := sectionOf(t, tree, SectionRecommendations).Items
	assert.Equal(t, "Recommandation 1", items[0].Text)
	assert.Equal(t, "A", items[0].Tag)
	assert.Equal(t, "Recommandation 6", items[5].Text)
}

func TestRender_SummaryInFull(t *testing.T) {
	rec := newRecord(1, 1, 1)
	rec.Summary = strings.Repeat("Long résumé. ", 200)

	tree, err := Render(rec, OnePage)
	require.NoError(t, err)
	assert.Equal(t, rec.Summary, sectionOf(t, tree, SectionSummary).Body)
}

func TestRender_EmptySectionsArePresent(t *testing.T) {
	rec := newRecord(0, 0, 0)

	for _, v := range AllVariants() {
		t.Run(v.String(), func(t *testing.T) {
			tree, err := Render(rec, v)
			require.NoError(t, err)

			recs := sectionOf(t, tree, SectionRecommendations)
			flags := sectionOf(t, tree, SectionRedFlags)
			assert.True(t, recs.IsEmpty())
			assert.True(t, flags.IsEmpty())
			assert.Equal(t, "Plan d'action", recs.Heading)
			assert.Equal(t, "Signaux d'alerte", flags.Heading)
			assert.True(t, flags.IsWarning())
		})
	}
}

func TestRender_SectionOrder(t *testing.T) {
	rec := newRecord(2, 2, 2)
	rec.DayPrograms = []content.DayProgram{{Title: "Reprise", Days: []content.ProgramDay{{Label: "J1"}}}}

	kinds := func(tree *Tree) []SectionKind {
		out := make([]SectionKind, 0, len(tree.Sections))
		for _, s := range tree.Sections {
			out = append(out, s.Kind)
		}
		return out
	}

	one, err := Render(rec, OnePage)
	require.NoError(t, err)
	assert.Equal(t, []SectionKind{SectionSummary, SectionRecommendations, SectionRedFlags, SectionSources}, kinds(one))

	four, err := Render(rec, FourPages)
	require.NoError(t, err)
	assert.Equal(t, []SectionKind{SectionSummary, SectionRecommendations, SectionRedFlags, SectionProgram, SectionSources}, kinds(four))
}

func TestRender_ProgramExcerpt(t *testing.T) {
	rec := newRecord(1, 1, 1)
	rec.DayPrograms = []content.DayProgram{
		{Title: "Premier", Days: []content.ProgramDay{
			{Label: "J1", Items: []string{"a"}},
			{Label: "J2", Items: []string{"b"}},
			{Label: "J3", Items: []string{"c"}},
			{Label: "J4", Items: []string{"d"}},
		}},
		{Title: "Second", Days: []content.ProgramDay{{Label: "J1"}}},
	}
	rec.WeekPrograms = []content.WeekProgram{
		{Title: "Semaines", Weeks: []content.ProgramWeek{
			{Label: "S1"}, {Label: "S2"}, {Label: "S3"},
		}},
	}

	tree, err := Render(rec, FourPages)
	require.NoError(t, err)

	programs := sectionOf(t, tree, SectionProgram).Programs
	require.Len(t, programs, 2)
	assert.Equal(t, "Premier", programs[0].Title)
	assert.Equal(t, "jour", programs[0].Unit)
	require.Len(t, programs[0].Steps, 3)
	assert.Equal(t, "J3", programs[0].Steps[2].Label)
	assert.Equal(t, "Semaines", programs[1].Title)
	assert.Equal(t, "semaine", programs[1].Unit)
	assert.Len(t, programs[1].Steps, 2)

	one, err := Render(rec, OnePage)
	require.NoError(t, err)
	_, ok := one.Section(SectionProgram)
	assert.False(t, ok)
}

func TestRender_WeekProgramOnly(t *testing.T) {
	rec := newRecord(1, 1, 1)
	rec.WeekPrograms = []content.WeekProgram{{Title: "S", Weeks: []content.ProgramWeek{{Label: "S1"}}}}

	tree, err := Render(rec, FourPages)
	require.NoError(t, err)
	programs := sectionOf(t, tree, SectionProgram).Programs
	require.Len(t, programs, 1)
	assert.Equal(t, "semaine", programs[0].Unit)
}

func TestRender_NoProgramSectionWithoutProgram(t *testing.T) {
	tree, err := Render(newRecord(1, 1, 1), FourPages)
	require.NoError(t, err)
	_, ok := tree.Section(SectionProgram)
	assert.False(t, ok)
}

func TestRender_Metadata(t *testing.T) {
	rec := newRecord(1, 1, 1)
	tree, err := Render(rec, OnePage)
	require.NoError(t, err)

	assert.Equal(t, "valid-a", tree.ID)
	assert.Equal(t, "Fiche de test", tree.Title)
	assert.Equal(t, OnePage, tree.Variant)
	assert.Equal(t, NewCacheKey("valid-a", OnePage, "v1"), tree.Key())
	assert.Equal(t, "Dernière mise à jour : 05/03/2024", tree.LastUpdatedLabel())

	tree.UpdatedAt = time.Time{}
	assert.Equal(t, "Dernière mise à jour : non renseignée", tree.LastUpdatedLabel())
}

func TestRender_DeterministicAndDoesNotMutate(t *testing.T) {
	rec := newRecord(10, 10, 10)
	before := rec.Clone()

	a, err := Render(rec, OnePage)
	require.NoError(t, err)
	b, err := Render(rec, OnePage)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, before, rec)

	sectionOf(t, a, SectionSources).Sources[0].Title = "changed"
	assert.Equal(t, "Source 1", rec.Sources[0].Title)
}

func TestRender_Errors(t *testing.T) {
	_, err := Render(nil, OnePage)
	assert.ErrorIs(t, err, ErrNilRecord)

	_, err = Render(newRecord(1, 1, 1), Variant("2pages"))
	var ive *InvalidVariantError
	assert.ErrorAs(t, err, &ive)
}

func TestCitation(t *testing.T) {
	assert.Equal(t, "Prise en charge de la gonarthrose. HAS, 2023.",
		Citation(content.Source{Title: "Prise en charge de la gonarthrose.", Org: "HAS", Year: 2023}))
	assert.Equal(t, "Guide.", Citation(content.Source{Title: "Guide"}))
	assert.Equal(t, "Guide. 2020.", Citation(content.Source{Title: "Guide", Year: 2020}))
}

func TestProgramBlock_Caption(t *testing.T) {
	b := ProgramBlock{Title: "Reprise", Unit: "jour", Steps: []ProgramStep{{Label: "J1"}, {Label: "J2"}}}
	assert.Equal(t, "Reprise (2 jours)", b.Caption())

	b = ProgramBlock{Title: "Renfo", Unit: "semaine", Steps: []ProgramStep{{Label: "S1"}}}
	assert.Equal(t, "Renfo (1 semaine)", b.Caption())
}
