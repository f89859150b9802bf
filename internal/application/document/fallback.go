package document

import (
	"context"
	"time"

	"github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
	infra "github.com/fichesante/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

const defaultSettleDelay = 400 * time.Millisecond

// FallbackPrinter serves the printable HTML version of a document.
// It never fails: unknown records get the "data unavailable" page and a
// browsing context that cannot be opened is reported as false.
type FallbackPrinter struct {
	repo      content.Repository
	layout    *infra.HTMLLayout
	opener    BrowsingContextOpener
	publisher shared.EventPublisher
	settle    time.Duration
	logger    *zap.Logger
}

// FallbackOption configures a FallbackPrinter
type FallbackOption func(*FallbackPrinter)

// WithOpener sets the browsing context opener used by Open
func WithOpener(opener BrowsingContextOpener) FallbackOption {
	return func(f *FallbackPrinter) {
		f.opener = opener
	}
}

// WithFallbackPublisher sets the analytics publisher
func WithFallbackPublisher(p shared.EventPublisher) FallbackOption {
	return func(f *FallbackPrinter) {
		if p != nil {
			f.publisher = p
		}
	}
}

// WithSettleDelay sets the delay between writing the page and printing it
func WithSettleDelay(d time.Duration) FallbackOption {
	return func(f *FallbackPrinter) {
		if d >= 0 {
			f.settle = d
		}
	}
}

// WithFallbackLogger sets the logger
func WithFallbackLogger(logger *zap.Logger) FallbackOption {
	return func(f *FallbackPrinter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFallbackPrinter creates a FallbackPrinter
func NewFallbackPrinter(repo content.Repository, layout *infra.HTMLLayout, opts ...FallbackOption) *FallbackPrinter {
	f := &FallbackPrinter{
		repo:      repo,
		layout:    layout,
		publisher: shared.NopPublisher{},
		settle:    defaultSettleDelay,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ToHTML returns the self-contained printable document of (id, v)
func (f *FallbackPrinter) ToHTML(id string, v document.Variant) string {
	return f.PrintableHTML(id, v, false)
}

// PrintableHTML is ToHTML with an optional script that opens the print dialog
func (f *FallbackPrinter) PrintableHTML(id string, v document.Variant, autoPrint bool) string {
	rec, err := f.repo.Resolve(id)
	if err != nil {
		f.logger.Debug("fallback for unresolvable record",
			zap.String("id", id),
			zap.Error(err))
		return f.layout.Unavailable(id, v)
	}
	tree, err := document.Render(rec, v)
	if err != nil {
		f.logger.Warn("fallback render failed",
			zap.String("id", id),
			zap.String("variant", v.String()),
			zap.Error(err))
		return f.layout.Unavailable(id, v)
	}
	html, err := f.layout.RenderString(tree, autoPrint)
	if err != nil {
		f.logger.Error("fallback layout failed",
			zap.String("id", id),
			zap.String("variant", v.String()),
			zap.Error(err))
		return f.layout.Unavailable(id, v)
	}
	return html
}

// Open shows the printable document in a new browsing context and, with
// autoPrint, triggers the print dialog once the page has settled.
// It returns false when no context could be opened. Only print requests are
// published, a plain preview is not.
func (f *FallbackPrinter) Open(ctx context.Context, id string, v document.Variant, autoPrint bool) (opened bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("browsing context opener panicked",
				zap.String("id", id),
				zap.Any("panic", r))
			opened = false
		}
		if autoPrint {
			f.publisher.Publish(ctx, document.NewPrintRequestedEvent(id, v, true, opened))
		}
	}()

	if f.opener == nil {
		f.logger.Warn("no browsing context opener configured")
		return false
	}
	if err := f.opener.Open(ctx, f.ToHTML(id, v), autoPrint, f.settle); err != nil {
		f.logger.Warn("could not open browsing context",
			zap.String("id", id),
			zap.String("variant", v.String()),
			zap.Error(err))
		return false
	}
	return true
}
