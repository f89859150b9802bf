package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/fichesante/backend/internal/domain/document"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultScale         = 1.0
)

// ChromedpConfig contains configuration for the chromedp encoder and opener
type ChromedpConfig struct {
	// DefaultTimeout for rendering operations
	DefaultTimeout time.Duration
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional)
	// If empty, chromedp will launch a new browser instance
	RemoteURL string
	// Headful shows the browser window (the opener uses this for previews)
	Headful bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Scale for rendering (default: 1.0)
	Scale float64
	// Layout is the physical page (default: A4 with 16mm margins)
	Layout document.PageLayout
	// Logger for debug output
	Logger *zap.Logger
}

func (c *ChromedpConfig) applyDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = defaultChromeTimeout
	}
	if c.Scale == 0 {
		c.Scale = defaultScale
	}
	if c.Layout == (document.PageLayout{}) {
		c.Layout = document.A4
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// newAllocator creates the Chrome allocator context
func newAllocator(config *ChromedpConfig) (context.Context, context.CancelFunc) {
	if config.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !config.Headful),
		chromedp.Flag("disable-gpu", !config.Headful),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		// Font rendering
		chromedp.Flag("font-render-hinting", "none"),
	)
	if config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return chromedp.NewExecAllocator(context.Background(), opts...)
}

// setDocumentContent replaces the current page with html
func setDocumentContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		frameTree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
	})
}

// ChromedpEncoder prints the HTML layout to PDF through headless Chrome
type ChromedpEncoder struct {
	config      *ChromedpConfig
	layout      *HTMLLayout
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpEncoder creates a new chromedp-based PDF encoder
func NewChromedpEncoder(layout *HTMLLayout, config *ChromedpConfig) (*ChromedpEncoder, error) {
	if layout == nil {
		return nil, errors.New("chromedp encoder requires an HTML layout")
	}
	if config == nil {
		config = &ChromedpConfig{}
	}
	config.applyDefaults()

	e := &ChromedpEncoder{
		config: config,
		layout: layout,
		logger: config.Logger,
	}
	e.allocCtx, e.allocCancel = newAllocator(config)
	return e, nil
}

// Name implements Encoder
func (e *ChromedpEncoder) Name() string {
	return "chromedp"
}

// Encode implements Encoder
func (e *ChromedpEncoder) Encode(ctx context.Context, tree *document.Tree) ([]byte, error) {
	if err := validateTree(tree); err != nil {
		return nil, err
	}
	html, err := e.layout.RenderString(tree, false)
	if err != nil {
		return nil, NewEncodingError(ErrNameRenderFailed, "failed to render HTML layout", err)
	}

	startTime := time.Now()
	timeout := e.config.DefaultTimeout

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A new tab per document, released when rendering ends.
	browserCtx, browserCancel := chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// Stop the tab when the caller's deadline passes.
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	params := e.buildPrintParams()

	var pdfData []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		setDocumentContent(html),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(params.printBackground).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(params.marginTop).
				WithMarginRight(params.marginRight).
				WithMarginBottom(params.marginBottom).
				WithMarginLeft(params.marginLeft).
				WithScale(params.scale).
				WithDisplayHeaderFooter(params.displayHeaderFooter).
				WithHeaderTemplate(params.headerTemplate).
				WithFooterTemplate(params.footerTemplate).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewEncodingError(ErrNameEncodingTimeout,
				fmt.Sprintf("chromedp rendering timed out after %v", timeout), err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, NewEncodingError(ErrNameEncodingCancelled, "chromedp rendering was cancelled", err)
		}

		e.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewEncodingError(ErrNameRenderFailed, "chromedp execution failed", err)
	}

	if len(pdfData) == 0 {
		return nil, NewEncodingError(ErrNameEmptyOutput, "generated PDF is empty", nil)
	}

	e.logger.Debug("PDF rendered with chromedp",
		zap.String("id", tree.ID),
		zap.String("variant", tree.Variant.String()),
		zap.Int("bytes", len(pdfData)),
		zap.Int("pages", estimatePageCount(pdfData)),
		zap.Duration("duration", time.Since(startTime)))

	return pdfData, nil
}

// printParams holds the parameters for PDF printing
type printParams struct {
	paperWidth          float64
	paperHeight         float64
	marginTop           float64
	marginRight         float64
	marginBottom        float64
	marginLeft          float64
	scale               float64
	printBackground     bool
	displayHeaderFooter bool
	headerTemplate      string
	footerTemplate      string
}

// pageNumberFooter is rendered by Chrome in the bottom margin of every page
const pageNumberFooter = `<div style="font-size:7pt;color:#6b6b6b;width:100%;text-align:right;padding-right:16mm;">` +
	`Page <span class="pageNumber"></span> / <span class="totalPages"></span></div>`

// buildPrintParams constructs the print parameters from the page layout
func (e *ChromedpEncoder) buildPrintParams() *printParams {
	l := e.config.Layout
	margin := mmToInches(l.MarginMM)
	return &printParams{
		// Paper size in inches (Chrome uses inches)
		paperWidth:          mmToInches(l.WidthMM),
		paperHeight:         mmToInches(l.HeightMM),
		marginTop:           margin,
		marginRight:         margin,
		marginBottom:        margin,
		marginLeft:          margin,
		scale:               e.config.Scale,
		printBackground:     true,
		displayHeaderFooter: true,
		headerTemplate:      "<span></span>",
		footerTemplate:      pageNumberFooter,
	}
}

// Close releases resources held by the encoder
func (e *ChromedpEncoder) Close() error {
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// Ensure ChromedpEncoder implements Encoder
var _ Encoder = (*ChromedpEncoder)(nil)
