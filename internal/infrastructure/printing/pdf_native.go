package printing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"
)

const (
	pdfVersion  = "1.4"
	pdfProducer = "fichesante docgen"

	defaultBaseFontSize = 10.0
	defaultMinFontSize  = 8.0

	fontRegular = "F1"
	fontBold    = "F2"

	// space kept above the bottom margin for the footer line
	footerReserve = 22.0
)

type rgb [3]float64

var (
	colorText    = rgb{0.13, 0.13, 0.13}
	colorMuted   = rgb{0.42, 0.42, 0.42}
	colorAccent  = rgb{0.05, 0.36, 0.55}
	colorLink    = rgb{0.05, 0.33, 0.75}
	colorWarnBg  = rgb{0.99, 0.91, 0.91}
	colorWarnBar = rgb{0.75, 0.10, 0.10}
)

// NativeConfig contains configuration for the native PDF encoder
type NativeConfig struct {
	// Layout is the physical page (default: A4 with 16mm margins)
	Layout document.PageLayout
	// BaseFontSize is the body text size in points (default: 10)
	BaseFontSize float64
	// MinFontSize bounds the shrink-to-fit loop (default: 8)
	MinFontSize float64
	// DisableCompression writes content streams uncompressed
	DisableCompression bool
	// StrictPageBudget fails with LayoutOverflow instead of exceeding the variant page budget
	StrictPageBudget bool
	// Clock stamps the document creation date (default: time.Now)
	Clock func() time.Time
	// Logger for debug output
	Logger *zap.Logger
}

// NativeEncoder writes PDF 1.4 documents directly, using the standard
// Helvetica fonts with WinAnsi encoding. It needs no external process.
type NativeEncoder struct {
	config *NativeConfig
	logger *zap.Logger
}

// NewNativeEncoder creates a new native PDF encoder
func NewNativeEncoder(config *NativeConfig) *NativeEncoder {
	if config == nil {
		config = &NativeConfig{}
	}
	if config.Layout == (document.PageLayout{}) {
		config.Layout = document.A4
	}
	if config.BaseFontSize == 0 {
		config.BaseFontSize = defaultBaseFontSize
	}
	if config.MinFontSize == 0 || config.MinFontSize > config.BaseFontSize {
		config.MinFontSize = min(defaultMinFontSize, config.BaseFontSize)
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NativeEncoder{config: config, logger: logger}
}

// Name implements Encoder
func (e *NativeEncoder) Name() string {
	return "native"
}

// Close implements Encoder
func (e *NativeEncoder) Close() error {
	return nil
}

// Encode implements Encoder
func (e *NativeEncoder) Encode(ctx context.Context, tree *document.Tree) ([]byte, error) {
	if err := validateTree(tree); err != nil {
		return nil, err
	}
	startTime := time.Now()
	budget := tree.Variant.Limits().Pages

	var l *pageLayout
	size := e.config.BaseFontSize
	for {
		if err := ctx.Err(); err != nil {
			return nil, NewEncodingError(ErrNameEncodingCancelled, "encoding was cancelled", err)
		}
		l = newPageLayout(e.config.Layout, size)
		if err := l.renderTree(tree); err != nil {
			return nil, err
		}
		if len(l.pages) <= budget || size-0.5 < e.config.MinFontSize {
			break
		}
		size -= 0.5
	}

	if len(l.pages) > budget {
		if e.config.StrictPageBudget {
			return nil, NewEncodingError(ErrNameLayoutOverflow,
				fmt.Sprintf("%s layout needs %d pages, budget is %d", tree.Variant, len(l.pages), budget), nil)
		}
		e.logger.Warn("document exceeds page budget",
			zap.String("id", tree.ID),
			zap.String("variant", tree.Variant.String()),
			zap.Int("pages", len(l.pages)),
			zap.Int("budget", budget))
	}

	doc := newPDFDocument(!e.config.DisableCompression)
	for i, p := range l.pages {
		if err := l.footer(p, i+1, len(l.pages)); err != nil {
			return nil, err
		}
		if err := doc.addPage(l.width, l.height, p.ops.String()); err != nil {
			return nil, NewEncodingError(ErrNameRenderFailed, "failed to compress page content", err)
		}
	}

	data, err := doc.build(pdfInfo{
		Title:   tree.Title,
		Subject: tree.Variant.DisplayName(),
		Created: e.config.Clock(),
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("PDF encoded",
		zap.String("id", tree.ID),
		zap.String("variant", tree.Variant.String()),
		zap.Int("bytes", len(data)),
		zap.Int("pages", len(l.pages)),
		zap.Float64("font_size", size),
		zap.Duration("duration", time.Since(startTime)))

	return data, nil
}

// =============================================================================
// Layout
// =============================================================================

type pdfPage struct {
	ops strings.Builder
}

type textStyle struct {
	font  string
	size  float64
	color rgb
}

func (st textStyle) lineHeight() float64 {
	return st.size * 1.35
}

// charWidth approximates the average Helvetica glyph width
func (st textStyle) charWidth() float64 {
	if st.font == fontBold {
		return st.size * 0.56
	}
	return st.size * 0.5
}

// pageLayout flows document content top to bottom over A4 pages.
// All coordinates are PDF points with the origin at the bottom left.
type pageLayout struct {
	width  float64
	height float64
	margin float64
	base   float64
	pages  []*pdfPage
	cur    *pdfPage
	y      float64
}

func newPageLayout(layout document.PageLayout, base float64) *pageLayout {
	l := &pageLayout{
		width:  mmToPoints(layout.WidthMM),
		height: mmToPoints(layout.HeightMM),
		margin: mmToPoints(layout.MarginMM),
		base:   base,
	}
	l.newPage()
	return l
}

func (l *pageLayout) newPage() {
	p := &pdfPage{}
	l.pages = append(l.pages, p)
	l.cur = p
	l.y = l.height - l.margin
}

func (l *pageLayout) contentWidth() float64 {
	return l.width - 2*l.margin
}

func (l *pageLayout) bottom() float64 {
	return l.margin + footerReserve
}

// ensure starts a new page unless h points still fit on the current one
func (l *pageLayout) ensure(h float64) {
	if l.y-h < l.bottom() {
		l.newPage()
	}
}

func (l *pageLayout) gap(h float64) {
	l.y -= h
}

func (l *pageLayout) renderTree(tree *document.Tree) error {
	title := textStyle{font: fontBold, size: l.base * 1.8, color: colorAccent}
	meta := textStyle{font: fontRegular, size: l.base * 0.85, color: colorMuted}

	if err := l.paragraph(title, tree.Title, 0, false); err != nil {
		return err
	}
	subtitle := tree.Variant.DisplayName()
	if c := categoryLabel(tree.Category); c != "" {
		subtitle = c + " · " + subtitle
	}
	if err := l.paragraph(meta, subtitle, 0, false); err != nil {
		return err
	}
	if err := l.paragraph(meta, tree.LastUpdatedLabel(), 0, false); err != nil {
		return err
	}
	l.gap(4)
	l.rule()
	l.gap(l.base)

	for i := range tree.Sections {
		if err := l.renderSection(&tree.Sections[i]); err != nil {
			return err
		}
		l.gap(l.base * 0.8)
	}
	return nil
}

func (l *pageLayout) renderSection(s *document.Section) error {
	heading := textStyle{font: fontBold, size: l.base * 1.2, color: colorAccent}
	body := textStyle{font: fontRegular, size: l.base, color: colorText}
	if s.IsWarning() {
		heading.color = colorWarnBar
	}

	// keep the heading together with its first line
	l.ensure(heading.lineHeight() + body.lineHeight())
	if err := l.paragraph(heading, s.Heading, 0, false); err != nil {
		return err
	}
	l.gap(2)

	if s.IsEmpty() {
		muted := textStyle{font: fontRegular, size: l.base, color: colorMuted}
		return l.paragraph(muted, document.EmptySectionText, 6, s.IsWarning())
	}

	switch s.Kind {
	case document.SectionSummary:
		return l.paragraph(body, s.Body, 0, false)

	case document.SectionRecommendations, document.SectionRedFlags:
		for _, it := range s.Items {
			text := "• " + it.Text
			if it.Tag != "" {
				text += " [" + it.Tag + "]"
			}
			if err := l.paragraph(body, text, 6, s.IsWarning()); err != nil {
				return err
			}
		}

	case document.SectionProgram:
		caption := textStyle{font: fontBold, size: l.base, color: colorText}
		for _, p := range s.Programs {
			if err := l.paragraph(caption, p.Caption(), 0, false); err != nil {
				return err
			}
			for _, step := range p.Steps {
				line := step.Label + " : " + strings.Join(step.Items, " ; ")
				if err := l.paragraph(body, line, 6, false); err != nil {
					return err
				}
			}
		}

	case document.SectionSources:
		link := textStyle{font: fontRegular, size: l.base * 0.85, color: colorLink}
		for _, src := range s.Sources {
			if err := l.paragraph(body, document.Citation(src), 6, false); err != nil {
				return err
			}
			if src.URL != "" {
				if err := l.paragraph(link, src.URL, 12, false); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// paragraph writes wrapped text. Warning lines are drawn over a tinted band
// with a red bar on the left so consecutive lines form one block.
func (l *pageLayout) paragraph(st textStyle, s string, indent float64, warn bool) error {
	width := l.contentWidth() - indent
	if warn {
		indent += 8
		width -= 8
	}
	lh := st.lineHeight()
	for _, line := range wrapText(normalizeText(s), width, st.charWidth()) {
		l.ensure(lh)
		if warn {
			l.fillRect(l.margin, l.y-lh, l.contentWidth(), lh, colorWarnBg)
			l.fillRect(l.margin, l.y-lh, 3, lh, colorWarnBar)
		}
		if err := drawText(l.cur, l.margin+indent, l.y-st.size, st, line); err != nil {
			return err
		}
		l.y -= lh
	}
	return nil
}

func (l *pageLayout) fillRect(x, y, w, h float64, c rgb) {
	fmt.Fprintf(&l.cur.ops, "%.3f %.3f %.3f rg\n%.2f %.2f %.2f %.2f re f\n", c[0], c[1], c[2], x, y, w, h)
}

func (l *pageLayout) rule() {
	fmt.Fprintf(&l.cur.ops, "%.3f %.3f %.3f RG\n0.8 w\n%.2f %.2f m %.2f %.2f l S\n",
		colorAccent[0], colorAccent[1], colorAccent[2], l.margin, l.y, l.width-l.margin, l.y)
}

// footer prints the disclaimer and the page number on page p
func (l *pageLayout) footer(p *pdfPage, n, total int) error {
	st := textStyle{font: fontRegular, size: 7.5, color: colorMuted}
	if err := drawText(p, l.margin, l.margin, st, document.Disclaimer); err != nil {
		return err
	}
	label := fmt.Sprintf("Page %d / %d", n, total)
	x := l.width - l.margin - float64(len(label))*st.charWidth()
	return drawText(p, x, l.margin, st, label)
}

func drawText(p *pdfPage, x, y float64, st textStyle, s string) error {
	lit, err := pdfString(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(&p.ops, "BT\n/%s %.2f Tf\n%.3f %.3f %.3f rg\n%.2f %.2f Td\n(%s) Tj\nET\n",
		st.font, st.size, st.color[0], st.color[1], st.color[2], x, y, lit)
	return nil
}

// wrapText breaks s into lines no wider than width, splitting words that
// do not fit on a line of their own.
func wrapText(s string, width, charWidth float64) []string {
	maxChars := max(int(width/charWidth), 1)

	var lines []string
	var line string
	for _, word := range strings.Fields(s) {
		for utf8.RuneCountInString(word) > maxChars {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:maxChars]))
			word = string(runes[maxChars:])
		}
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if utf8.RuneCountInString(candidate) > maxChars {
			lines = append(lines, line)
			line = word
		} else {
			line = candidate
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// =============================================================================
// PDF file structure
// =============================================================================

const (
	objCatalog      = 1
	objPages        = 2
	objFontRegular  = 3
	objFontBold     = 4
	reservedObjects = 4
)

type pdfInfo struct {
	Title   string
	Subject string
	Created time.Time
}

// pdfDocument collects numbered objects and serializes them with an xref table
type pdfDocument struct {
	objects  []string
	pages    []int
	compress bool
}

func newPDFDocument(compress bool) *pdfDocument {
	return &pdfDocument{
		objects:  make([]string, reservedObjects),
		compress: compress,
	}
}

// addObject adds an object and returns its object number
func (d *pdfDocument) addObject(content string) int {
	d.objects = append(d.objects, content)
	return len(d.objects)
}

// addPage adds a page object and its content stream
func (d *pdfDocument) addPage(width, height float64, content string) error {
	data := []byte(content)
	filter := ""
	if d.compress {
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
		filter = "/Filter /FlateDecode\n"
	}

	stream := d.addObject(fmt.Sprintf("<< /Length %d\n%s>>\nstream\n%s\nendstream", len(data), filter, data))
	page := d.addObject(fmt.Sprintf(
		"<< /Type /Page\n/Parent %d 0 R\n/MediaBox [0 0 %.2f %.2f]\n/Contents %d 0 R\n"+
			"/Resources << /Font << /%s %d 0 R /%s %d 0 R >> >>\n>>",
		objPages, width, height, stream, fontRegular, objFontRegular, fontBold, objFontBold))
	d.pages = append(d.pages, page)
	return nil
}

// build generates the complete PDF file
func (d *pdfDocument) build(info pdfInfo) ([]byte, error) {
	kids := make([]string, len(d.pages))
	for i, p := range d.pages {
		kids[i] = fmt.Sprintf("%d 0 R", p)
	}

	d.objects[objCatalog-1] = fmt.Sprintf("<< /Type /Catalog\n/Pages %d 0 R\n>>", objPages)
	d.objects[objPages-1] = fmt.Sprintf("<< /Type /Pages\n/Kids [%s]\n/Count %d\n>>", strings.Join(kids, " "), len(d.pages))
	d.objects[objFontRegular-1] = "<< /Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n/Encoding /WinAnsiEncoding\n>>"
	d.objects[objFontBold-1] = "<< /Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica-Bold\n/Encoding /WinAnsiEncoding\n>>"

	infoDict, err := buildInfoDict(info)
	if err != nil {
		return nil, err
	}
	infoObj := d.addObject(infoDict)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", pdfVersion)
	buf.WriteString("%\xE2\xE3\xCF\xD3\n")

	xref := make([]int, len(d.objects)+1)
	for i, obj := range d.objects {
		xref[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefPos := buf.Len()
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", len(d.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(d.objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", xref[i])
	}

	buf.WriteString("trailer\n")
	fmt.Fprintf(&buf, "<< /Size %d\n/Root %d 0 R\n/Info %d 0 R\n>>", len(d.objects)+1, objCatalog, infoObj)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n", xrefPos)
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), nil
}

func buildInfoDict(info pdfInfo) (string, error) {
	var sb strings.Builder
	sb.WriteString("<<\n")
	if info.Title != "" {
		title, err := pdfString(info.Title)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "/Title (%s)\n", title)
	}
	if info.Subject != "" {
		subject, err := pdfString(info.Subject)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "/Subject (%s)\n", subject)
	}
	fmt.Fprintf(&sb, "/Producer (%s)\n", pdfProducer)
	date := info.Created.UTC().Format("D:20060102150405Z")
	fmt.Fprintf(&sb, "/CreationDate (%s)\n", date)
	fmt.Fprintf(&sb, "/ModDate (%s)\n", date)
	sb.WriteString(">>")
	return sb.String(), nil
}

// mmToPoints converts millimeters to PDF points
func mmToPoints(mm float64) float64 {
	return mmToInches(mm) * 72
}

// estimatePageCount estimates the page count from PDF data
// This is a simple heuristic that counts "/Type /Page" occurrences
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	// Each page has one "/Type /Page" but the count also includes "/Type /Pages"
	// So we subtract the parent Pages object occurrences
	parentCount := bytes.Count(pdfData, []byte("/Type /Pages"))
	count = count - parentCount
	return max(count, 1)
}

var _ Encoder = (*NativeEncoder)(nil)
