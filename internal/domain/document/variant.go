package document

import (
	"fmt"

	"github.com/fichesante/backend/internal/domain/shared"
)

// Variant is the printable shape of a document
type Variant string

const (
	OnePage   Variant = "1page"  // one-page summary
	FourPages Variant = "4pages" // four-page guide
)

// Unlimited disables a truncation limit
const Unlimited = -1

// Limits holds the truncation rules of a variant
type Limits struct {
	Recommendations int
	RedFlags        int
	Sources         int
	IncludeProgram  bool
	ProgramDays     int // days kept from the first day program
	ProgramWeeks    int // weeks kept from the first week program
	Pages           int // page budget of the printed layout
}

// InvalidVariantError is returned when a string does not name a known variant
type InvalidVariantError struct {
	Value string
}

// Error implements the error interface
func (e *InvalidVariantError) Error() string {
	return fmt.Sprintf("unknown document variant %q (expected 1page or 4pages)", e.Value)
}

// Is makes errors.Is(err, shared.ErrInvalidInput) hold
func (e *InvalidVariantError) Is(target error) bool {
	return target == shared.ErrInvalidInput
}

// ParseVariant converts a wire value into a Variant
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.IsValid() {
		return "", &InvalidVariantError{Value: s}
	}
	return v, nil
}

// IsValid checks if the Variant is a valid value
func (v Variant) IsValid() bool {
	switch v {
	case OnePage, FourPages:
		return true
	}
	return false
}

// String returns the string representation of Variant
func (v Variant) String() string {
	return string(v)
}

// DisplayName returns the French label for the variant
func (v Variant) DisplayName() string {
	switch v {
	case OnePage:
		return "Fiche 1 page"
	case FourPages:
		return "Guide 4 pages"
	default:
		return string(v)
	}
}

// Limits returns the truncation rules of the variant
func (v Variant) Limits() Limits {
	switch v {
	case OnePage:
		return Limits{
			Recommendations: 6,
			RedFlags:        8,
			Sources:         6,
			Pages:           1,
		}
	case FourPages:
		return Limits{
			Recommendations: Unlimited,
			RedFlags:        Unlimited,
			Sources:         Unlimited,
			IncludeProgram:  true,
			ProgramDays:     3,
			ProgramWeeks:    2,
			Pages:           4,
		}
	default:
		return Limits{}
	}
}

// FileName returns the artifact file name for a record identifier
func (v Variant) FileName(id string) string {
	return fmt.Sprintf("%s-%s.pdf", id, v)
}

// DefaultCategory returns the archive category used when a batch names none
func (v Variant) DefaultCategory() string {
	if v == FourPages {
		return "guides"
	}
	return "fiches"
}

// AllVariants returns all valid Variant values
func AllVariants() []Variant {
	return []Variant{OnePage, FourPages}
}

// PageLayout describes the physical page shared by every output path
type PageLayout struct {
	WidthMM  float64
	HeightMM float64
	MarginMM float64
}

// A4 is the page layout of both variants
var A4 = PageLayout{WidthMM: 210, HeightMM: 297, MarginMM: 16}

// ContentWidthMM returns the printable width
func (p PageLayout) ContentWidthMM() float64 {
	return p.WidthMM - 2*p.MarginMM
}

// ContentHeightMM returns the printable height
func (p PageLayout) ContentHeightMM() float64 {
	return p.HeightMM - 2*p.MarginMM
}

func take(n, limit int) int {
	if limit == Unlimited || n < limit {
		return n
	}
	return limit
}
