// Package document orchestrates document generation: the per-item
// Generator pipeline, the ErrorReporter, the HTML FallbackPrinter, the
// background Preloader, the BatchPackager and the DocumentService facade.
package document
