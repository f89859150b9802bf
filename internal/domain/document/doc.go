// Package document contains the Document bounded context.
// It owns the two printable variants of a content record, the pure
// rendering step that turns a record into a paginated document tree with
// variant-specific truncation, and the value types that travel through the
// generation pipeline: cache keys, artifacts, generation failures and batches.
package document
