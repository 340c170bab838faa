package mailpdf

import "github.com/chromedp/cdproto/page"

// PageSize represents paper dimensions in centimeters.
type PageSize struct {
	Width  float64 // Width in centimeters.
	Height float64 // Height in centimeters.
}

// Standard paper sizes.
var (
	A4     = PageSize{Width: 21.0, Height: 29.7}
	A5     = PageSize{Width: 14.8, Height: 21.0}
	Letter = PageSize{Width: 21.59, Height: 27.94}
	Legal  = PageSize{Width: 21.59, Height: 35.56}
)

// Orientation represents the page orientation.
type Orientation int

const (
	// Portrait is the default vertical orientation.
	Portrait Orientation = iota
	// Landscape rotates the page to horizontal orientation.
	Landscape
)

// Margin represents page margins in centimeters.
type Margin struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargin returns a Margin with the same value on all sides.
func UniformMargin(cm float64) Margin {
	return Margin{Top: cm, Right: cm, Bottom: cm, Left: cm}
}

// PageConfig controls the PDF output parameters.
//
// A nil PageConfig or zero-value fields fall back to [DefaultPageConfig]:
// A4 paper, portrait orientation, 1 cm margins, scale 1.0.
type PageConfig struct {
	Size        PageSize
	Orientation Orientation
	Margin      Margin

	// Scale of the webpage rendering, between 0.1 and 2.0.
	Scale float64

	// NoBackground skips background colors and images, which are
	// printed by default.
	NoBackground bool
}

// DefaultPageConfig returns the configuration used for mail rendering.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:        A4,
		Orientation: Portrait,
		Margin:      UniformMargin(1.0),
		Scale:       1.0,
	}
}

// resolved returns a PageConfig with all zero values replaced by defaults.
func (p *PageConfig) resolved() PageConfig {
	d := DefaultPageConfig()
	if p == nil {
		return d
	}
	r := *p
	if r.Size == (PageSize{}) {
		r.Size = d.Size
	}
	if r.Scale <= 0 {
		r.Scale = d.Scale
	}
	if r.Margin == (Margin{}) {
		r.Margin = d.Margin
	}
	return r
}

func cmToInches(cm float64) float64 {
	return cm / 2.54
}

// printParams translates the configuration into a DevTools
// Page.printToPDF command. Chrome expects all lengths in inches.
func (p *PageConfig) printParams() *page.PrintToPDFParams {
	r := p.resolved()

	width, height := cmToInches(r.Size.Width), cmToInches(r.Size.Height)
	if r.Orientation == Landscape {
		width, height = height, width
	}

	return page.PrintToPDF().
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(cmToInches(r.Margin.Top)).
		WithMarginRight(cmToInches(r.Margin.Right)).
		WithMarginBottom(cmToInches(r.Margin.Bottom)).
		WithMarginLeft(cmToInches(r.Margin.Left)).
		WithScale(r.Scale).
		WithPrintBackground(!r.NoBackground)
}
