package document

import (
	"github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/shared"
)

// ErrNilRecord is returned by Render when no record is given
var ErrNilRecord = shared.NewDomainError(shared.CodeInvalidInput, "content record is required")

// Render maps a content record onto the document tree of a variant.
// It is pure and deterministic; the record is never modified.
func Render(rec *content.Record, v Variant) (*Tree, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	if !v.IsValid() {
		return nil, &InvalidVariantError{Value: string(v)}
	}
	lim := v.Limits()

	tree := &Tree{
		ID:             rec.ID,
		Title:          rec.Title,
		Category:       rec.Category,
		UpdatedAt:      rec.UpdatedAt,
		Variant:        v,
		ContentVersion: rec.ContentVersion,
		Sections:       make([]Section, 0, 5),
	}

	tree.Sections = append(tree.Sections, Section{
		Kind:    SectionSummary,
		Heading: SectionSummary.Heading(),
		Body:    rec.Summary,
	})

	recs := make([]Item, 0, take(len(rec.Recommendations), lim.Recommendations))
	for _, r := range rec.Recommendations[:take(len(rec.Recommendations), lim.Recommendations)] {
		recs = append(recs, Item{Text: r.Text, Tag: string(r.Strength)})
	}
	tree.Sections = append(tree.Sections, Section{
		Kind:    SectionRecommendations,
		Heading: SectionRecommendations.Heading(),
		Items:   recs,
	})

	flags := make([]Item, 0, take(len(rec.RedFlags), lim.RedFlags))
	for _, f := range rec.RedFlags[:take(len(rec.RedFlags), lim.RedFlags)] {
		flags = append(flags, Item{Text: f})
	}
	tree.Sections = append(tree.Sections, Section{
		Kind:    SectionRedFlags,
		Heading: SectionRedFlags.Heading(),
		Items:   flags,
	})

	if lim.IncludeProgram && rec.HasProgram() {
		tree.Sections = append(tree.Sections, Section{
			Kind:     SectionProgram,
			Heading:  SectionProgram.Heading(),
			Programs: programExcerpt(rec, lim),
		})
	}

	n := take(len(rec.Sources), lim.Sources)
	tree.Sections = append(tree.Sections, Section{
		Kind:    SectionSources,
		Heading: SectionSources.Heading(),
		Sources: append([]content.Source(nil), rec.Sources[:n]...),
	})

	return tree, nil
}

// programExcerpt keeps the first day program and the first week program,
// each cut down to its leading steps.
func programExcerpt(rec *content.Record, lim Limits) []ProgramBlock {
	var blocks []ProgramBlock
	if len(rec.DayPrograms) > 0 {
		p := rec.DayPrograms[0]
		steps := make([]ProgramStep, 0, take(len(p.Days), lim.ProgramDays))
		for _, d := range p.Days[:take(len(p.Days), lim.ProgramDays)] {
			steps = append(steps, ProgramStep{Label: d.Label, Items: append([]string(nil), d.Items...)})
		}
		blocks = append(blocks, ProgramBlock{Title: p.Title, Unit: "jour", Steps: steps})
	}
	if len(rec.WeekPrograms) > 0 {
		p := rec.WeekPrograms[0]
		steps := make([]ProgramStep, 0, take(len(p.Weeks), lim.ProgramWeeks))
		for _, w := range p.Weeks[:take(len(p.Weeks), lim.ProgramWeeks)] {
			steps = append(steps, ProgramStep{Label: w.Label, Items: append([]string(nil), w.Items...)})
		}
		blocks = append(blocks, ProgramBlock{Title: p.Title, Unit: "semaine", Steps: steps})
	}
	return blocks
}
