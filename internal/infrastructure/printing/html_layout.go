package printing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const defaultPrintDelay = 400 * time.Millisecond

// HTMLLayout renders document trees as self-contained printable HTML.
// It is the layout used by the browser print fallback and by the
// HTML-based PDF encoders, so every output path shows the same content.
type HTMLLayout struct {
	tmpl       *template.Template
	printDelay time.Duration
}

// HTMLLayoutOption configures the HTML layout
type HTMLLayoutOption func(*HTMLLayout)

// WithPrintDelay sets the settle delay before the print dialog opens
func WithPrintDelay(d time.Duration) HTMLLayoutOption {
	return func(h *HTMLLayout) {
		if d >= 0 {
			h.printDelay = d
		}
	}
}

// NewHTMLLayout parses the embedded templates
func NewHTMLLayout(opts ...HTMLLayoutOption) (*HTMLLayout, error) {
	tmpl, err := template.New("layout").Funcs(template.FuncMap{
		"join":     strings.Join,
		"citation": document.Citation,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML layout templates: %w", err)
	}

	h := &HTMLLayout{tmpl: tmpl, printDelay: defaultPrintDelay}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type htmlView struct {
	ID           string
	Title        string
	Subtitle     string
	LastUpdated  string
	Sections     []document.Section
	EmptyText    string
	Disclaimer   string
	AutoPrint    bool
	PrintDelayMS int64
}

// Render writes the printable document for tree.
// With autoPrint the page opens the print dialog once it has settled.
func (h *HTMLLayout) Render(w io.Writer, tree *document.Tree, autoPrint bool) error {
	if tree == nil {
		return NewEncodingError(ErrNameInvalidTree, "document tree is nil", nil)
	}
	subtitle := tree.Variant.DisplayName()
	if c := categoryLabel(tree.Category); c != "" {
		subtitle = c + " · " + subtitle
	}
	return h.tmpl.ExecuteTemplate(w, "document", htmlView{
		ID:           tree.ID,
		Title:        tree.Title,
		Subtitle:     subtitle,
		LastUpdated:  tree.LastUpdatedLabel(),
		Sections:     tree.Sections,
		EmptyText:    document.EmptySectionText,
		Disclaimer:   document.Disclaimer,
		AutoPrint:    autoPrint,
		PrintDelayMS: h.printDelay.Milliseconds(),
	})
}

// RenderString is Render into a string
func (h *HTMLLayout) RenderString(tree *document.Tree, autoPrint bool) (string, error) {
	var buf bytes.Buffer
	if err := h.Render(&buf, tree, autoPrint); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Unavailable returns the minimal document shown for an unknown record.
// It never fails.
func (h *HTMLLayout) Unavailable(id string, v document.Variant) string {
	var buf bytes.Buffer
	err := h.tmpl.ExecuteTemplate(&buf, "unavailable", htmlView{
		ID:         id,
		Title:      document.UnavailableTitle,
		Subtitle:   v.DisplayName(),
		Disclaimer: document.Disclaimer,
	})
	if err != nil {
		return "<!doctype html><html lang=\"fr\"><head><meta charset=\"utf-8\"><title>" +
			document.UnavailableTitle + "</title></head><body><h1>" + document.UnavailableTitle +
			"</h1><p>" + document.Disclaimer + "</p></body></html>"
	}
	return buf.String()
}
