package document_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	app "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorReporter_Capture_Normalizes(t *testing.T) {
	encErr := &printing.EncodingError{
		Name:    printing.ErrNameEncoderPanic,
		Message: "index out of range",
		Stack:   "goroutine 7 [running]:",
	}

	tests := []struct {
		name        string
		cause       any
		wantName    string
		wantMessage string
		wantStack   string
	}{
		{
			name:        "encoding error",
			cause:       encErr,
			wantName:    "EncoderPanic",
			wantMessage: "index out of range",
			wantStack:   "goroutine 7 [running]:",
		},
		{
			name:        "wrapped encoding error",
			cause:       fmt.Errorf("encode gonarthrose: %w", printing.NewEncodingError(printing.ErrNameLayoutOverflow, "content needs 2 pages", nil)),
			wantName:    "LayoutOverflow",
			wantMessage: "content needs 2 pages",
		},
		{
			name:        "plain error",
			cause:       errors.New("disk full"),
			wantName:    app.ErrNameGeneric,
			wantMessage: "disk full",
		},
		{
			name:        "string",
			cause:       "quelque chose a échoué",
			wantName:    app.ErrNameGeneric,
			wantMessage: "quelque chose a échoué",
		},
		{
			name:        "recovered panic",
			cause:       &app.RecoveredPanic{Value: "boom", Stack: "main.go:12"},
			wantName:    app.ErrNamePanic,
			wantMessage: "boom",
			wantStack:   "main.go:12",
		},
		{
			name:        "bare panic value",
			cause:       42,
			wantName:    app.ErrNamePanic,
			wantMessage: "42",
		},
		{
			name:        "nil",
			cause:       nil,
			wantName:    app.ErrNameGeneric,
			wantMessage: "unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := app.NewErrorReporter(app.WithReporterClock(fixedClock))
			ge := r.Capture("gonarthrose", document.OnePage, tt.cause)

			assert.Equal(t, "gonarthrose", ge.ID)
			assert.Equal(t, document.OnePage, ge.Variant)
			assert.Equal(t, tt.wantName, ge.Name)
			assert.Equal(t, tt.wantMessage, ge.Message)
			assert.Equal(t, tt.wantStack, ge.Stack)
			assert.Equal(t, fixedNow, ge.OccurredAt)
		})
	}
}

func TestErrorReporter_SingleSlotPerPairing(t *testing.T) {
	r := app.NewErrorReporter()

	first := r.Capture("gonarthrose", document.OnePage, "premier échec")
	second := r.Capture("gonarthrose", document.OnePage, "second échec")
	other := r.Capture("gonarthrose", document.FourPages, "autre variante")

	last, ok := r.LastError("gonarthrose", document.OnePage)
	require.True(t, ok)
	assert.Same(t, second, last)
	assert.NotSame(t, first, last)
	assert.Equal(t, 2, r.Len())

	last, ok = r.LastError("gonarthrose", document.FourPages)
	require.True(t, ok)
	assert.Same(t, other, last)

	assert.True(t, r.Clear("gonarthrose", document.OnePage))
	assert.False(t, r.Clear("gonarthrose", document.OnePage))
	_, ok = r.LastError("gonarthrose", document.OnePage)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestErrorReporter_CaptureKeepsGenerationError(t *testing.T) {
	r := app.NewErrorReporter()
	original := &document.GenerationError{ID: "lombalgie", Variant: document.FourPages, Name: "EncodingTimeout", Message: "too slow"}

	ge := r.Capture("lombalgie", document.FourPages, fmt.Errorf("batch item: %w", original))
	assert.Equal(t, "EncodingTimeout", ge.Name)
	assert.Equal(t, "too slow", ge.Message)
}

func TestErrorReporter_DiagnosticJSON(t *testing.T) {
	r := app.NewErrorReporter()
	ge := r.Capture("gonarthrose", document.FourPages, printing.NewEncodingError(printing.ErrNameEncodingTimeout, "native did not finish within 45s", nil))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(ge.Diagnostic().JSON()), &decoded))
	assert.Equal(t, "gonarthrose", decoded["slug"])
	assert.Equal(t, "4pages", decoded["variant"])
	assert.Equal(t, "EncodingTimeout", decoded["name"])
	assert.Equal(t, "native did not finish within 45s", decoded["message"])
	assert.NotContains(t, decoded, "stack")
}
