package printing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

const defaultEncodeTimeout = 45 * time.Second

// guardedEncoder runs another encoder under a watchdog
type guardedEncoder struct {
	inner   Encoder
	timeout time.Duration
	logger  *zap.Logger
}

// Guarded wraps an encoder so that panics become EncoderPanic errors and
// calls running longer than timeout fail with EncodingTimeout.
func Guarded(inner Encoder, timeout time.Duration, logger *zap.Logger) Encoder {
	if timeout <= 0 {
		timeout = defaultEncodeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &guardedEncoder{inner: inner, timeout: timeout, logger: logger}
}

type encodeOutcome struct {
	data []byte
	err  error
}

// Encode implements Encoder
func (g *guardedEncoder) Encode(ctx context.Context, tree *document.Tree) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Buffered so the worker never blocks once we stopped listening.
	done := make(chan encodeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				g.logger.Error("encoder panicked",
					zap.String("encoder", g.inner.Name()),
					zap.Any("panic", r))
				done <- encodeOutcome{err: &EncodingError{
					Name:    ErrNameEncoderPanic,
					Message: fmt.Sprint(r),
					Stack:   stack,
				}}
			}
		}()
		// CPU samples taken during the encode carry the backend and variant
		pyroscope.TagWrapper(ctx, profileLabels(g.inner.Name(), tree), func(ctx context.Context) {
			data, err := g.inner.Encode(ctx, tree)
			done <- encodeOutcome{data: data, err: err}
		})
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, asEncodingError(out.err)
		}
		if len(out.data) == 0 {
			return nil, NewEncodingError(ErrNameEmptyOutput, g.inner.Name()+" produced no bytes", nil)
		}
		return out.data, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			g.logger.Warn("encoder watchdog fired",
				zap.String("encoder", g.inner.Name()),
				zap.Duration("timeout", g.timeout))
			return nil, NewEncodingError(ErrNameEncodingTimeout,
				fmt.Sprintf("%s did not finish within %v", g.inner.Name(), g.timeout), ctx.Err())
		}
		return nil, NewEncodingError(ErrNameEncodingCancelled, "encoding was cancelled", ctx.Err())
	}
}

// Name implements Encoder
func (g *guardedEncoder) Name() string {
	return g.inner.Name()
}

// Close implements Encoder
func (g *guardedEncoder) Close() error {
	return g.inner.Close()
}

func profileLabels(encoder string, tree *document.Tree) pyroscope.LabelSet {
	if tree == nil {
		return pyroscope.Labels("encoder", encoder)
	}
	return pyroscope.Labels("encoder", encoder, "variant", string(tree.Variant))
}

// asEncodingError keeps typed encoding errors and wraps anything else
func asEncodingError(err error) *EncodingError {
	var ee *EncodingError
	if errors.As(err, &ee) {
		return ee
	}
	return NewEncodingError(ErrNameRenderFailed, "encoder failed", err)
}
