package printing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrOpenerClosed is returned by Open after Close
var ErrOpenerClosed = errors.New("browsing context opener is closed")

// ChromedpOpener opens printable documents in Chrome tabs.
// Tabs stay open until Close is called.
type ChromedpOpener struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu     sync.Mutex
	tabs   []context.CancelFunc
	closed bool
}

// NewChromedpOpener creates an opener; config.Headful shows the window
func NewChromedpOpener(config *ChromedpConfig) *ChromedpOpener {
	if config == nil {
		config = &ChromedpConfig{Headful: true}
	}
	config.applyDefaults()

	o := &ChromedpOpener{config: config, logger: config.Logger}
	o.allocCtx, o.allocCancel = newAllocator(config)
	return o
}

// Open writes html into a new tab. With autoPrint the print dialog is
// triggered once the page had settle time to lay out.
func (o *ChromedpOpener) Open(ctx context.Context, html string, autoPrint bool, settle time.Duration) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOpenerClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(o.allocCtx)
	o.tabs = append(o.tabs, tabCancel)
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.config.DefaultTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			tabCancel()
		}
	})
	defer stop()

	actions := []chromedp.Action{
		chromedp.Navigate("about:blank"),
		setDocumentContent(html),
	}
	if autoPrint {
		var timerID any
		actions = append(actions,
			chromedp.Sleep(settle),
			// window.print blocks until the dialog closes; defer it so Run returns.
			chromedp.Evaluate(`setTimeout(function () { window.print(); }, 0)`, &timerID),
		)
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		tabCancel()
		return fmt.Errorf("failed to open browsing context: %w", err)
	}

	o.logger.Debug("browsing context opened",
		zap.Bool("auto_print", autoPrint),
		zap.Int("html_bytes", len(html)))
	return nil
}

// Close closes every tab and the browser
func (o *ChromedpOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	for _, cancel := range o.tabs {
		cancel()
	}
	o.tabs = nil
	if o.allocCancel != nil {
		o.allocCancel()
	}
	return nil
}
