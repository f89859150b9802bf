package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"go.uber.org/zap"
)

// WkhtmltopdfConfig configures the wkhtmltopdf encoder. Zero fields take
// defaults: "wkhtmltopdf" from PATH, 30s, 96 dpi, quality 94, A4.
type WkhtmltopdfConfig struct {
	BinaryPath     string
	DefaultTimeout time.Duration
	DPI            int
	ImageQuality   int // 1..100
	Layout         document.PageLayout
	Logger         *zap.Logger
}

func (c WkhtmltopdfConfig) withDefaults() WkhtmltopdfConfig {
	if c.BinaryPath == "" {
		c.BinaryPath = "wkhtmltopdf"
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.DPI <= 0 {
		c.DPI = 96
	}
	if c.ImageQuality <= 0 || c.ImageQuality > 100 {
		c.ImageQuality = 94
	}
	if c.Layout == (document.PageLayout{}) {
		c.Layout = document.A4
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// WkhtmltopdfEncoder pipes the HTML layout through the wkhtmltopdf
// command-line tool: the page goes in on stdin and the PDF comes back on
// stdout, so nothing touches the disk.
type WkhtmltopdfEncoder struct {
	cfg    WkhtmltopdfConfig
	layout *HTMLLayout
	logger *zap.Logger
}

// NewWkhtmltopdfEncoder checks that the binary exists and returns the encoder
func NewWkhtmltopdfEncoder(layout *HTMLLayout, cfg *WkhtmltopdfConfig) (*WkhtmltopdfEncoder, error) {
	if layout == nil {
		return nil, errors.New("wkhtmltopdf encoder requires an HTML layout")
	}
	var c WkhtmltopdfConfig
	if cfg != nil {
		c = *cfg
	}
	c = c.withDefaults()

	binary, err := resolveBinaryPath(c.BinaryPath)
	if err != nil {
		return nil, NewEncodingError(ErrNameBinaryNotFound,
			fmt.Sprintf("wkhtmltopdf binary not found: %s", c.BinaryPath), err)
	}
	c.BinaryPath = binary

	return &WkhtmltopdfEncoder{cfg: c, layout: layout, logger: c.Logger}, nil
}

// resolveBinaryPath accepts an absolute path to an existing file or looks
// the name up in PATH
func resolveBinaryPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return exec.LookPath(path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func (e *WkhtmltopdfEncoder) Name() string { return "wkhtmltopdf" }

// Encode implements Encoder
func (e *WkhtmltopdfEncoder) Encode(ctx context.Context, tree *document.Tree) ([]byte, error) {
	if err := validateTree(tree); err != nil {
		return nil, err
	}
	html, err := e.layout.RenderString(tree, false)
	if err != nil {
		return nil, NewEncodingError(ErrNameRenderFailed, "failed to render HTML layout", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.DefaultTimeout)
	defer cancel()

	start := time.Now()
	args := e.buildArgs(tree)
	e.logger.Debug("executing wkhtmltopdf",
		zap.String("binary", e.cfg.BinaryPath),
		zap.Strings("args", args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, NewEncodingError(ErrNameEncodingTimeout,
				fmt.Sprintf("wkhtmltopdf timed out after %v", e.cfg.DefaultTimeout), err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, NewEncodingError(ErrNameEncodingCancelled, "wkhtmltopdf was cancelled", err)
		}
		msg := strings.TrimSpace(stderr.String())
		e.logger.Error("wkhtmltopdf failed", zap.Error(err), zap.String("stderr", msg))
		return nil, NewEncodingError(ErrNameRenderFailed, "wkhtmltopdf execution failed: "+msg, err)
	}

	pdf := stdout.Bytes()
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return nil, NewEncodingError(ErrNameEmptyOutput, "wkhtmltopdf produced no PDF", nil)
	}

	e.logger.Debug("PDF rendered with wkhtmltopdf",
		zap.String("id", tree.ID),
		zap.String("variant", tree.Variant.String()),
		zap.Int("bytes", len(pdf)),
		zap.Int("pages", estimatePageCount(pdf)),
		zap.Duration("duration", time.Since(start)))
	return pdf, nil
}

// buildArgs returns the wkhtmltopdf flags for tree, ending with the
// stdin and stdout placeholders
func (e *WkhtmltopdfEncoder) buildArgs(tree *document.Tree) []string {
	mm := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) + "mm" }
	page := e.cfg.Layout
	args := []string{
		"--quiet",
		"--encoding", "UTF-8",
		"--dpi", strconv.Itoa(e.cfg.DPI),
		"--image-quality", strconv.Itoa(e.cfg.ImageQuality),
		"--page-width", mm(page.WidthMM),
		"--page-height", mm(page.HeightMM),
	}
	for _, side := range []string{"top", "right", "bottom", "left"} {
		args = append(args, "--margin-"+side, mm(page.MarginMM))
	}
	// the layout is static HTML; scripts only matter for the browser print path
	args = append(args,
		"--disable-javascript",
		"--disable-local-file-access",
		"--footer-font-size", "7",
		"--footer-right", "Page [page] / [topage]",
	)
	if tree.Title != "" {
		args = append(args, "--title", tree.Title)
	}
	return append(args, "-", "-")
}

// Close implements Encoder; every Encode runs its own process
func (e *WkhtmltopdfEncoder) Close() error { return nil }

var _ Encoder = (*WkhtmltopdfEncoder)(nil)
