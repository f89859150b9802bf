package content

import "time"

// EvidenceStrength is the grade attached to a recommendation
type EvidenceStrength string

const (
	StrengthA  EvidenceStrength = "A"  // strong evidence
	StrengthB  EvidenceStrength = "B"  // moderate evidence
	StrengthC  EvidenceStrength = "C"  // weak evidence
	StrengthAE EvidenceStrength = "AE" // expert agreement
)

// IsValid checks if the EvidenceStrength is a known grade
func (s EvidenceStrength) IsValid() bool {
	switch s {
	case StrengthA, StrengthB, StrengthC, StrengthAE:
		return true
	}
	return false
}

// String returns the string representation of EvidenceStrength
func (s EvidenceStrength) String() string {
	return string(s)
}

// Recommendation is one actionable line of the action plan
type Recommendation struct {
	Text     string           `json:"text" yaml:"text"`
	Strength EvidenceStrength `json:"strength" yaml:"strength"`
}

// Source is a bibliographic reference backing the record
type Source struct {
	Title string `json:"title" yaml:"title"`
	Org   string `json:"org" yaml:"org"`
	Year  int    `json:"year" yaml:"year"`
	URL   string `json:"url" yaml:"url"`
}

// ProgramDay is one day of a day-by-day program
type ProgramDay struct {
	Label string   `json:"label" yaml:"label"`
	Items []string `json:"items" yaml:"items"`
}

// DayProgram is a named day-by-day program
type DayProgram struct {
	Title string       `json:"title" yaml:"title"`
	Days  []ProgramDay `json:"days" yaml:"days"`
}

// ProgramWeek is one week of a week-by-week program
type ProgramWeek struct {
	Label string   `json:"label" yaml:"label"`
	Items []string `json:"items" yaml:"items"`
}

// WeekProgram is a named week-by-week program
type WeekProgram struct {
	Title string        `json:"title" yaml:"title"`
	Weeks []ProgramWeek `json:"weeks" yaml:"weeks"`
}

// Record is an immutable content record.
// Callers receive their own copy from the Repository and must treat it as read-only.
type Record struct {
	ID              string           `json:"id" yaml:"id"`
	Title           string           `json:"title" yaml:"title"`
	Category        string           `json:"category" yaml:"category"`
	UpdatedAt       time.Time        `json:"updated_at" yaml:"updated_at"`
	Summary         string           `json:"summary" yaml:"summary"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
	RedFlags        []string         `json:"red_flags" yaml:"red_flags"`
	Sources         []Source         `json:"sources" yaml:"sources"`
	DayPrograms     []DayProgram     `json:"day_programs,omitempty" yaml:"day_programs,omitempty"`
	WeekPrograms    []WeekProgram    `json:"week_programs,omitempty" yaml:"week_programs,omitempty"`
	ContentVersion  string           `json:"content_version" yaml:"content_version"`
}

// HasProgram reports whether the record carries any day or week program
func (r *Record) HasProgram() bool {
	return len(r.DayPrograms) > 0 || len(r.WeekPrograms) > 0
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Recommendations = append([]Recommendation(nil), r.Recommendations...)
	c.RedFlags = append([]string(nil), r.RedFlags...)
	c.Sources = append([]Source(nil), r.Sources...)
	if r.DayPrograms != nil {
		c.DayPrograms = make([]DayProgram, len(r.DayPrograms))
		for i, p := range r.DayPrograms {
			days := make([]ProgramDay, len(p.Days))
			for j, d := range p.Days {
				days[j] = ProgramDay{Label: d.Label, Items: append([]string(nil), d.Items...)}
			}
			c.DayPrograms[i] = DayProgram{Title: p.Title, Days: days}
		}
	}
	if r.WeekPrograms != nil {
		c.WeekPrograms = make([]WeekProgram, len(r.WeekPrograms))
		for i, p := range r.WeekPrograms {
			weeks := make([]ProgramWeek, len(p.Weeks))
			for j, w := range p.Weeks {
				weeks[j] = ProgramWeek{Label: w.Label, Items: append([]string(nil), w.Items...)}
			}
			c.WeekPrograms[i] = WeekProgram{Title: p.Title, Weeks: weeks}
		}
	}
	return &c
}
