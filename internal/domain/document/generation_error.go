package document

import (
	"encoding/json"
	"fmt"
	"time"
)

// GenerationError is the diagnostic record of one failed generation attempt.
// It is never updated; a later attempt for the same pairing replaces it.
type GenerationError struct {
	ID         string
	Variant    Variant
	Name       string
	Message    string
	Stack      string
	OccurredAt time.Time
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s (%s): %s: %s", e.ID, e.Variant, e.Name, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.ID, e.Variant, e.Message)
}

// Diagnostic is the copy-pasteable JSON shape shown in the error detail view
type Diagnostic struct {
	Slug    string  `json:"slug"`
	Variant Variant `json:"variant"`
	Name    string  `json:"name,omitempty"`
	Message string  `json:"message"`
	Stack   string  `json:"stack,omitempty"`
}

// Diagnostic returns the diagnostic view of the error
func (e *GenerationError) Diagnostic() Diagnostic {
	return Diagnostic{
		Slug:    e.ID,
		Variant: e.Variant,
		Name:    e.Name,
		Message: e.Message,
		Stack:   e.Stack,
	}
}

// JSON returns the indented diagnostic JSON
func (d Diagnostic) JSON() string {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"slug":%q,"variant":%q,"message":%q}`, d.Slug, d.Variant, d.Message)
	}
	return string(b)
}

// NamedError is implemented by errors that carry a diagnostic name
type NamedError interface {
	error
	ErrorName() string
}

// StackCarrier is implemented by errors that captured a stack trace
type StackCarrier interface {
	StackTrace() string
}
