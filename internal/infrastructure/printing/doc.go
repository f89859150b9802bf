// Package printing turns document trees into printable output.
//
// Three PDF encoders implement Encoder:
//   - NativeEncoder writes PDF 1.4 directly with the standard Helvetica fonts
//   - ChromedpEncoder prints the HTML layout through headless Chrome
//   - WkhtmltopdfEncoder prints the HTML layout with the wkhtmltopdf tool
//
// EncoderFactory picks one from configuration and wraps it with Guarded,
// which converts panics and overruns into typed EncodingError values.
//
// HTMLLayout renders the same tree as a self-contained HTML page. It backs
// the browser print fallback (ChromedpOpener) and the HTML-based encoders.
//
// Example usage:
//
//	layout, err := printing.NewHTMLLayout()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	enc, err := printing.NewEncoderFactory(cfg.Encoder, layout).CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tree, _ := document.Render(rec, document.OnePage)
//	pdf, err := enc.Encode(ctx, tree)
package printing
