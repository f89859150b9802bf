package document

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"go.uber.org/zap"
)

// Diagnostic names given to causes that carry none
const (
	ErrNamePanic   = "Panic"
	ErrNameGeneric = "Error"
)

// RecoveredPanic wraps a value recovered from a panic with the stack at that point
type RecoveredPanic struct {
	Value any
	Stack string
}

type slot struct {
	id      string
	variant document.Variant
}

// ErrorReporter keeps the last generation failure of every (id, variant) pairing.
// Each pairing has a single slot; any later outcome replaces or clears it.
type ErrorReporter struct {
	mu     sync.RWMutex
	slots  map[slot]*document.GenerationError
	clock  func() time.Time
	logger *zap.Logger
}

// ErrorReporterOption configures an ErrorReporter
type ErrorReporterOption func(*ErrorReporter)

// WithReporterLogger sets the logger
func WithReporterLogger(logger *zap.Logger) ErrorReporterOption {
	return func(r *ErrorReporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReporterClock sets the clock used to stamp errors
func WithReporterClock(clock func() time.Time) ErrorReporterOption {
	return func(r *ErrorReporter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewErrorReporter creates an empty reporter
func NewErrorReporter(opts ...ErrorReporterOption) *ErrorReporter {
	r := &ErrorReporter{
		slots:  make(map[slot]*document.GenerationError),
		clock:  time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capture normalizes cause into a GenerationError and stores it as the
// last error of the pairing. cause may be an error, a string, a
// *RecoveredPanic or any other recovered panic value.
func (r *ErrorReporter) Capture(id string, v document.Variant, cause any) *document.GenerationError {
	name, message, stack := normalize(cause)
	genErr := &document.GenerationError{
		ID:         id,
		Variant:    v,
		Name:       name,
		Message:    message,
		Stack:      stack,
		OccurredAt: r.clock(),
	}

	r.mu.Lock()
	r.slots[slot{id, v}] = genErr
	r.mu.Unlock()

	r.logger.Warn("document generation failed",
		zap.String("id", id),
		zap.String("variant", v.String()),
		zap.String("name", name),
		zap.String("message", message))
	return genErr
}

// LastError returns the last captured failure of the pairing
func (r *ErrorReporter) LastError(id string, v document.Variant) (*document.GenerationError, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.slots[slot{id, v}]
	return e, ok
}

// Clear drops the stored failure of the pairing and reports whether there was one
func (r *ErrorReporter) Clear(id string, v document.Variant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[slot{id, v}]
	delete(r.slots, slot{id, v})
	return ok
}

// Len returns the number of stored failures
func (r *ErrorReporter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

func normalize(cause any) (name, message, stack string) {
	switch c := cause.(type) {
	case nil:
		return ErrNameGeneric, "unknown error", ""
	case *document.GenerationError:
		return c.Name, c.Message, c.Stack
	case *RecoveredPanic:
		return ErrNamePanic, fmt.Sprint(c.Value), c.Stack
	case error:
		return normalizeError(c)
	case string:
		return ErrNameGeneric, c, ""
	default:
		return ErrNamePanic, fmt.Sprint(c), ""
	}
}

func normalizeError(err error) (name, message, stack string) {
	var ge *document.GenerationError
	if errors.As(err, &ge) {
		return ge.Name, ge.Message, ge.Stack
	}

	name = ErrNameGeneric
	message = err.Error()
	var named document.NamedError
	if errors.As(err, &named) && named.ErrorName() != "" {
		name = named.ErrorName()
		message = strings.TrimPrefix(named.Error(), name+": ")
	}
	var sc document.StackCarrier
	if errors.As(err, &sc) {
		stack = sc.StackTrace()
	}
	return name, message, stack
}
