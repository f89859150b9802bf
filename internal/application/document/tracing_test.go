package document_test

import (
	"context"
	"errors"
	"testing"

	app "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/infrastructure/cache"
	contentinfra "github.com/fichesante/backend/internal/infrastructure/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanAttr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestGenerator_RecordsGenerationSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	enc := new(MockEncoder)
	enc.On("Encode", mock.Anything, mock.MatchedBy(func(tree *document.Tree) bool { return tree.ID == "valid-a" })).
		Return([]byte("%PDF-1.4 ok"), nil)
	enc.On("Encode", mock.Anything, mock.Anything).Return(nil, errors.New("renderer crashed"))

	repo := contentinfra.NewMemoryRepository([]*content.Record{testRecord("valid-a", 2, 1), testRecord("valid-b", 2, 1)})
	gen := app.NewGenerator(repo, enc, cache.NewArtifactStore(4), nil,
		app.WithGeneratorTracer(tp.Tracer("test")))

	_, err := gen.Generate(context.Background(), "valid-a", document.FourPages)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "valid-b", document.FourPages)
	require.Error(t, err)
	// cache hits do not start a span
	_, err = gen.Generate(context.Background(), "valid-a", document.FourPages)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "document.generate", ok.Name())
	assert.Equal(t, "valid-a", spanAttr(ok, "document.id").AsString())
	assert.Equal(t, "4pages", spanAttr(ok, "document.variant").AsString())
	assert.Equal(t, "v1", spanAttr(ok, "document.content_version").AsString())
	assert.Equal(t, int64(len("%PDF-1.4 ok")), spanAttr(ok, "document.bytes").AsInt64())
	assert.Equal(t, codes.Ok, ok.Status().Code)

	failed := spans[1]
	assert.Equal(t, "valid-b", spanAttr(failed, "document.id").AsString())
	assert.Equal(t, codes.Error, failed.Status().Code)
	require.NotEmpty(t, failed.Events())
	assert.Equal(t, "exception", failed.Events()[0].Name)
}
