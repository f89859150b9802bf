package printing

import (
	"context"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
)

// Encoder serializes a document tree into PDF bytes
type Encoder interface {
	// Encode renders the tree; failures are returned as *EncodingError
	Encode(ctx context.Context, tree *document.Tree) ([]byte, error)
	// Name identifies the backend in logs and metrics
	Name() string
	// Close releases any resources held by the encoder
	Close() error
}

// EncodingError represents a failure while encoding a document
type EncodingError struct {
	Name    string
	Message string
	Stack   string
	Cause   error
}

func (e *EncodingError) Error() string {
	if e.Cause != nil {
		return e.Name + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Name + ": " + e.Message
}

func (e *EncodingError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, shared.ErrEncodingFailed) hold
func (e *EncodingError) Is(target error) bool {
	return target == shared.ErrEncodingFailed
}

// ErrorName returns the diagnostic name of the failure
func (e *EncodingError) ErrorName() string {
	return e.Name
}

// StackTrace returns the captured stack, if any
func (e *EncodingError) StackTrace() string {
	return e.Stack
}

// Error names for encoding failures
const (
	ErrNameEncodingTimeout      = "EncodingTimeout"
	ErrNameEncodingCancelled    = "EncodingCancelled"
	ErrNameEncoderPanic         = "EncoderPanic"
	ErrNameUnsupportedCharacter = "UnsupportedCharacter"
	ErrNameLayoutOverflow       = "LayoutOverflow"
	ErrNameInvalidTree          = "InvalidTree"
	ErrNameRenderFailed         = "RenderFailed"
	ErrNameBinaryNotFound       = "BinaryNotFound"
	ErrNameEmptyOutput          = "EmptyOutput"
	ErrNameUnknownBackend       = "UnknownBackend"
)

// NewEncodingError creates a new EncodingError
func NewEncodingError(name, message string, cause error) *EncodingError {
	return &EncodingError{
		Name:    name,
		Message: message,
		Cause:   cause,
	}
}

func validateTree(tree *document.Tree) error {
	if tree == nil {
		return NewEncodingError(ErrNameInvalidTree, "document tree is nil", nil)
	}
	if !tree.Variant.IsValid() {
		return NewEncodingError(ErrNameInvalidTree, "document tree has unknown variant "+tree.Variant.String(), nil)
	}
	return nil
}
