package printing

import (
	"testing"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromedpConfig_Defaults(t *testing.T) {
	config := &ChromedpConfig{}
	config.applyDefaults()

	assert.Equal(t, defaultChromeTimeout, config.DefaultTimeout)
	assert.Empty(t, config.RemoteURL)
	assert.False(t, config.Headful)
	assert.False(t, config.NoSandbox)
	assert.Equal(t, 1.0, config.Scale)
	assert.Equal(t, document.A4, config.Layout)
	assert.NotNil(t, config.Logger)
}

func TestChromedpConfig_KeepsExplicitValues(t *testing.T) {
	config := &ChromedpConfig{DefaultTimeout: 5 * time.Second, Scale: 0.9}
	config.applyDefaults()

	assert.Equal(t, 5*time.Second, config.DefaultTimeout)
	assert.Equal(t, 0.9, config.Scale)
}

func TestBuildPrintParams_A4(t *testing.T) {
	config := &ChromedpConfig{}
	config.applyDefaults()
	e := &ChromedpEncoder{config: config}

	params := e.buildPrintParams()

	// A4 is 210mm x 297mm with 16mm margins
	assert.InDelta(t, 8.27, params.paperWidth, 0.01)
	assert.InDelta(t, 11.69, params.paperHeight, 0.01)
	assert.InDelta(t, mmToInches(16), params.marginTop, 0.0001)
	assert.Equal(t, params.marginTop, params.marginRight)
	assert.Equal(t, params.marginTop, params.marginBottom)
	assert.Equal(t, params.marginTop, params.marginLeft)
	assert.True(t, params.printBackground)
	assert.True(t, params.displayHeaderFooter)
	assert.Contains(t, params.footerTemplate, `class="pageNumber"`)
	assert.Contains(t, params.footerTemplate, `class="totalPages"`)
}

func TestBuildPrintParams_CustomLayout(t *testing.T) {
	config := &ChromedpConfig{
		Scale:  0.8,
		Layout: document.PageLayout{WidthMM: 148, HeightMM: 210, MarginMM: 10},
	}
	config.applyDefaults()
	e := &ChromedpEncoder{config: config}

	params := e.buildPrintParams()

	assert.InDelta(t, mmToInches(148), params.paperWidth, 0.0001)
	assert.InDelta(t, mmToInches(10), params.marginLeft, 0.0001)
	assert.Equal(t, 0.8, params.scale)
}

func TestNewChromedpEncoder_RequiresLayout(t *testing.T) {
	_, err := NewChromedpEncoder(nil, nil)
	require.Error(t, err)
}

func TestMmToInches(t *testing.T) {
	assert.InDelta(t, 1.0, mmToInches(25.4), 0.0001)
	assert.InDelta(t, 72.0, mmToPoints(25.4), 0.0001)
}
