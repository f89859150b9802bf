package printing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedClock = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

var streamRe = regexp.MustCompile(`(?s)/Length (\d+)\n/Filter /FlateDecode\n>>\nstream\n`)

// pageTexts inflates every content stream of a PDF produced by the native encoder
func pageTexts(t *testing.T, pdf []byte) []string {
	t.Helper()
	var out []string
	for _, m := range streamRe.FindAllSubmatchIndex(pdf, -1) {
		n, err := strconv.Atoi(string(pdf[m[2]:m[3]]))
		require.NoError(t, err)
		start := m[1]
		r, err := zlib.NewReader(bytes.NewReader(pdf[start : start+n]))
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		out = append(out, string(data))
	}
	return out
}

func TestNativeEncoder_OnePage(t *testing.T) {
	enc := NewNativeEncoder(&NativeConfig{Clock: fixedClock, Logger: zaptest.NewLogger(t)})
	tree := testTree(t, testRecord(10, 10), document.OnePage)

	pdf, err := enc.Encode(context.Background(), tree)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-1.4\n")))
	assert.True(t, bytes.HasSuffix(pdf, []byte("%%EOF\n")))
	assert.Equal(t, 1, estimatePageCount(pdf))
	assert.Contains(t, string(pdf), "/BaseFont /Helvetica-Bold")
	assert.Contains(t, string(pdf), "/MediaBox [0 0 595.28 841.89]")

	pages := pageTexts(t, pdf)
	require.Len(t, pages, 1)
	text := pages[0]
	assert.Contains(t, text, "(Plan d'action) Tj")
	assert.Contains(t, text, "(Signaux d'alerte) Tj")
	assert.Contains(t, text, "Recommandation num\\351ro 6 [A]")
	assert.NotContains(t, text, "Recommandation num\\351ro 7")
	assert.Contains(t, text, "Signal d'alerte 8")
	assert.NotContains(t, text, "Signal d'alerte 9")
	assert.NotContains(t, text, "Reprise en douceur")
	assert.Contains(t, text, "Page 1 / 1")
	assert.Contains(t, text, "Urgence : 15/112.")
	// warning band
	assert.Contains(t, text, "0.990 0.910 0.910 rg")
}

func TestNativeEncoder_FourPagesIncludesProgram(t *testing.T) {
	enc := NewNativeEncoder(&NativeConfig{Clock: fixedClock})
	tree := testTree(t, testRecord(10, 10), document.FourPages)

	pdf, err := enc.Encode(context.Background(), tree)
	require.NoError(t, err)

	text := strings.Join(pageTexts(t, pdf), "\n")
	assert.Contains(t, text, "Recommandation num\\351ro 10")
	assert.Contains(t, text, "Signal d'alerte 10")
	assert.Contains(t, text, "(Programme) Tj")
	assert.Contains(t, text, "Reprise en douceur \\(2 jours\\)")
}

func TestNativeEncoder_Deterministic(t *testing.T) {
	enc := NewNativeEncoder(&NativeConfig{Clock: fixedClock})
	tree := testTree(t, testRecord(3, 3), document.OnePage)

	a, err := enc.Encode(context.Background(), tree)
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNativeEncoder_Uncompressed(t *testing.T) {
	enc := NewNativeEncoder(&NativeConfig{Clock: fixedClock, DisableCompression: true})
	pdf, err := enc.Encode(context.Background(), testTree(t, testRecord(1, 1), document.OnePage))
	require.NoError(t, err)
	assert.NotContains(t, string(pdf), "/FlateDecode")
	assert.Contains(t, string(pdf), "(Arthrose du genou) Tj")
}

func TestNativeEncoder_UnsupportedCharacter(t *testing.T) {
	rec := testRecord(1, 1)
	rec.Summary = "Douleur intense 🔥"
	enc := NewNativeEncoder(nil)

	_, err := enc.Encode(context.Background(), testTree(t, rec, document.OnePage))
	require.Error(t, err)

	var ee *EncodingError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrNameUnsupportedCharacter, ee.Name)
}

func TestNativeEncoder_PageBudget(t *testing.T) {
	rec := testRecord(1, 1)
	rec.Summary = strings.Repeat("Une phrase assez longue pour remplir la page. ", 600)
	tree := testTree(t, rec, document.OnePage)

	lenient := NewNativeEncoder(&NativeConfig{Clock: fixedClock})
	pdf, err := lenient.Encode(context.Background(), tree)
	require.NoError(t, err)
	assert.Greater(t, estimatePageCount(pdf), 1)
	assert.Contains(t, strings.Join(pageTexts(t, pdf), ""), "Page 2 / ")

	strict := NewNativeEncoder(&NativeConfig{Clock: fixedClock, StrictPageBudget: true})
	_, err = strict.Encode(context.Background(), tree)
	var ee *EncodingError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrNameLayoutOverflow, ee.Name)
}

func TestNativeEncoder_InvalidTree(t *testing.T) {
	enc := NewNativeEncoder(nil)

	_, err := enc.Encode(context.Background(), nil)
	var ee *EncodingError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrNameInvalidTree, ee.Name)
}

func TestNativeEncoder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNativeEncoder(nil).Encode(ctx, testTree(t, testRecord(1, 1), document.OnePage))
	var ee *EncodingError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrNameEncodingCancelled, ee.Name)
}

func TestWrapText(t *testing.T) {
	lines := wrapText("un deux trois quatre", 30, 3) // 10 chars per line
	assert.Equal(t, []string{"un deux", "trois", "quatre"}, lines)

	lines = wrapText("abcdefghijklmnopqrstuvwxyz", 30, 3)
	assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxyz"}, lines)

	assert.Empty(t, wrapText("   ", 30, 3))
}

func TestEstimatePageCount(t *testing.T) {
	assert.Equal(t, 1, estimatePageCount([]byte("no pages")))
	assert.Equal(t, 2, estimatePageCount([]byte("/Type /Pages /Type /Page /Type /Page")))
}
