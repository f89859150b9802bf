package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fichesante/backend/internal/domain/content"
)

// SectionKind identifies a section of the document tree
type SectionKind string

const (
	SectionSummary         SectionKind = "summary"
	SectionRecommendations SectionKind = "recommendations"
	SectionRedFlags        SectionKind = "red_flags"
	SectionProgram         SectionKind = "program"
	SectionSources         SectionKind = "sources"
)

// Heading returns the French section heading
func (k SectionKind) Heading() string {
	switch k {
	case SectionSummary:
		return "En bref"
	case SectionRecommendations:
		return "Plan d'action"
	case SectionRedFlags:
		return "Signaux d'alerte"
	case SectionProgram:
		return "Programme"
	case SectionSources:
		return "Sources"
	default:
		return string(k)
	}
}

// Item is one line of a list section
type Item struct {
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"` // evidence grade for recommendations
}

// ProgramStep is one day or week of a program excerpt
type ProgramStep struct {
	Label string   `json:"label"`
	Items []string `json:"items"`
}

// ProgramBlock is the truncated excerpt of one program
type ProgramBlock struct {
	Title string        `json:"title"`
	Unit  string        `json:"unit"` // "jour" or "semaine"
	Steps []ProgramStep `json:"steps"`
}

// Caption returns the heading line of the excerpt, e.g. "Reprise (3 jours)"
func (b ProgramBlock) Caption() string {
	unit := b.Unit
	if len(b.Steps) > 1 {
		unit += "s"
	}
	return fmt.Sprintf("%s (%d %s)", b.Title, len(b.Steps), unit)
}

// Section is a render-ready block of the tree.
// Content is already truncated for the variant.
type Section struct {
	Kind     SectionKind      `json:"kind"`
	Heading  string           `json:"heading"`
	Body     string           `json:"body,omitempty"`
	Items    []Item           `json:"items,omitempty"`
	Programs []ProgramBlock   `json:"programs,omitempty"`
	Sources  []content.Source `json:"sources,omitempty"`
}

// IsWarning reports whether the section is drawn as a warning block
func (s Section) IsWarning() bool {
	return s.Kind == SectionRedFlags
}

// IsEmpty reports whether the section carries no content.
// Empty sections are still rendered so the layout stays predictable.
func (s Section) IsEmpty() bool {
	return s.Body == "" && len(s.Items) == 0 && len(s.Programs) == 0 && len(s.Sources) == 0
}

// Tree is the paginated document produced by Render.
// It is the only input of the PDF encoders and of the HTML fallback.
type Tree struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Category       string    `json:"category,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
	Variant        Variant   `json:"variant"`
	ContentVersion string    `json:"content_version"`
	Sections       []Section `json:"sections"`
}

// Section returns the first section of the given kind
func (t *Tree) Section(kind SectionKind) (*Section, bool) {
	for i := range t.Sections {
		if t.Sections[i].Kind == kind {
			return &t.Sections[i], true
		}
	}
	return nil, false
}

// Key returns the cache key the tree was rendered for
func (t *Tree) Key() CacheKey {
	return CacheKey{ID: t.ID, Variant: t.Variant, ContentVersion: t.ContentVersion}
}

// LastUpdatedLabel returns the "last updated" header line
func (t *Tree) LastUpdatedLabel() string {
	if t.UpdatedAt.IsZero() {
		return "Dernière mise à jour : non renseignée"
	}
	return "Dernière mise à jour : " + t.UpdatedAt.Format("02/01/2006")
}

// Disclaimer is the footer line printed on every output path
const Disclaimer = "Information éducative — ne remplace pas un avis médical. Urgence : 15/112."

// UnavailableTitle is the heading of the fallback document for unknown records
const UnavailableTitle = "Données indisponibles"

// EmptySectionText is printed in place of an empty list section
const EmptySectionText = "Aucun élément."

// Citation formats a source as "Title. Org, Year."
func Citation(src content.Source) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(src.Title, "."))
	sb.WriteString(".")
	parts := make([]string, 0, 2)
	if src.Org != "" {
		parts = append(parts, src.Org)
	}
	if src.Year > 0 {
		parts = append(parts, strconv.Itoa(src.Year))
	}
	if len(parts) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(".")
	}
	return sb.String()
}
