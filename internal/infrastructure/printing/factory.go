package printing

import (
	"fmt"

	"github.com/fichesante/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Encoder backends
const (
	BackendNative      = "native"
	BackendChromedp    = "chromedp"
	BackendWkhtmltopdf = "wkhtmltopdf"
)

// EncoderFactory creates the configured encoder, wrapped in the watchdog
type EncoderFactory struct {
	cfg    config.EncoderConfig
	layout *HTMLLayout
	logger *zap.Logger
}

// EncoderFactoryOption is a functional option for configuring the factory
type EncoderFactoryOption func(*EncoderFactory)

// WithFactoryLogger sets the logger for the factory and the encoders it builds
func WithFactoryLogger(logger *zap.Logger) EncoderFactoryOption {
	return func(f *EncoderFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewEncoderFactory creates a new factory
func NewEncoderFactory(cfg config.EncoderConfig, layout *HTMLLayout, opts ...EncoderFactoryOption) *EncoderFactory {
	f := &EncoderFactory{
		cfg:    cfg,
		layout: layout,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateNative creates the native encoder
func (f *EncoderFactory) CreateNative() Encoder {
	return NewNativeEncoder(&NativeConfig{
		StrictPageBudget: f.cfg.StrictPageBudget,
		Logger:           f.logger.Named("native"),
	})
}

// CreateBackend creates the encoder named by backend without the watchdog
func (f *EncoderFactory) CreateBackend(backend string) (Encoder, error) {
	switch backend {
	case BackendNative:
		return f.CreateNative(), nil
	case BackendChromedp:
		return NewChromedpEncoder(f.layout, &ChromedpConfig{
			DefaultTimeout: f.cfg.Timeout,
			RemoteURL:      f.cfg.Chrome.RemoteURL,
			NoSandbox:      f.cfg.Chrome.NoSandbox,
			Scale:          f.cfg.Chrome.Scale,
			Logger:         f.logger.Named("chromedp"),
		})
	case BackendWkhtmltopdf:
		return NewWkhtmltopdfEncoder(f.layout, &WkhtmltopdfConfig{
			BinaryPath:     f.cfg.Wkhtmltopdf.BinaryPath,
			DefaultTimeout: f.cfg.Timeout,
			DPI:            f.cfg.Wkhtmltopdf.DPI,
			ImageQuality:   f.cfg.Wkhtmltopdf.ImageQuality,
			Logger:         f.logger.Named("wkhtmltopdf"),
		})
	default:
		return nil, NewEncodingError(ErrNameUnknownBackend, fmt.Sprintf("unknown encoder backend %q", backend), nil)
	}
}

// CreateEncoder creates the configured encoder behind the watchdog.
// When the backend cannot be set up and fallback is allowed, the native
// encoder is used instead.
func (f *EncoderFactory) CreateEncoder() (Encoder, error) {
	enc, err := f.CreateBackend(f.cfg.Backend)
	if err != nil {
		if !f.cfg.FallbackToNative || f.cfg.Backend == BackendNative {
			return nil, fmt.Errorf("failed to create %s encoder: %w", f.cfg.Backend, err)
		}
		f.logger.Warn("encoder backend unavailable, falling back to native encoder",
			zap.String("backend", f.cfg.Backend),
			zap.Error(err))
		enc = f.CreateNative()
	}

	f.logger.Info("using PDF encoder",
		zap.String("backend", enc.Name()),
		zap.Duration("timeout", f.cfg.Timeout))
	return Guarded(enc, f.cfg.Timeout, f.logger), nil
}
