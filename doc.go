// Package mailpdf renders email messages to PDF.
//
// A [Pipeline] takes an uploaded .msg or .eml file, extracts its HTML
// body with package message, renders it through headless Chrome
// (Chrome DevTools Protocol), and writes the PDF under an output
// directory:
//
//	c, err := mailpdf.NewConverter(mailpdf.WithScriptsDisabled())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	p := mailpdf.NewPipeline(c, "output")
//	conv, err := p.Convert(ctx, message.FormatEML, f)
//	// conv.Path -> /abs/output/1718000000000.pdf
//
// The [Converter] can also be used on its own for arbitrary HTML:
//
//	res, err := c.ConvertHTML(ctx, "<h1>Hello</h1>", nil)
//	res.Bytes()          // []byte
//	res.WriteTo(w)       // io.WriterTo
//
// Use [PageConfig] to control paper size, orientation, margins, and scale.
// Mail conversions always use A4 portrait.
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload]:
//
//	c, err := mailpdf.NewConverter(mailpdf.WithAutoDownload())
//
// Output files are named by a [Namer]; the default [MillisNamer] uses the
// current time in milliseconds and never repeats a name within a process.
package mailpdf
