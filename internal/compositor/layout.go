package compositor

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"adgenius/internal/domain"
)

// Layout constants, in canvas pixels.
const (
	Margin             = 60
	HeadlineSize       = 64
	SubheadlineSize    = 36
	CTASize            = 28
	HeadlineBottom     = 280
	HeadlineLineHeight = 75
	SubheadlineOffset  = 60
	CTAOffset          = 120
	CTAPaddingX        = 40
	CTAPaddingY        = 20
	CTARadius          = 40
	ctaBaselineOffset  = 24

	// GradientStart is the fraction of the height where the overlay fades out.
	GradientStart = 0.4
)

// Measurer returns the advance width of a string in pixels.
type Measurer interface {
	Measure(text string) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(text string) float64

func (f MeasureFunc) Measure(text string) float64 { return f(text) }

// Metrics holds the measurers of the headline and CTA fonts.
type Metrics struct {
	Headline Measurer
	CTA      Measurer
}

// Line is a run of text anchored at its baseline origin.
type Line struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Button is the CTA pill and its label.
type Button struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
	Label  Line    `json:"label"`
}

// Layout is every coordinate the renderer draws at.
type Layout struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	GradientTop    float64 `json:"gradient_top"`
	GradientBottom float64 `json:"gradient_bottom"`
	WrapWidth      float64 `json:"wrap_width"`
	Headline       []Line  `json:"headline"`
	Subheadline    Line    `json:"subheadline"`
	CTA            Button  `json:"cta"`
}

var upper = cases.Upper(language.Und)

// ComputeLayout places the copy on a width x height canvas. The last
// headline baseline sits HeadlineBottom above the bottom edge, so extra
// lines push the headline upwards while the subheadline and CTA keep
// fixed offsets from the bottom.
func ComputeLayout(width, height int, c domain.Copy, m Metrics) Layout {
	l := Layout{
		Width:          width,
		Height:         height,
		GradientTop:    float64(height) * GradientStart,
		GradientBottom: float64(height),
		WrapWidth:      float64(width - 2*Margin),
	}

	lines := WrapHeadline(c.Headline, l.WrapWidth, m.Headline)
	y := float64(height - HeadlineBottom - (len(lines)-1)*HeadlineLineHeight)
	for i, text := range lines {
		if i > 0 {
			y += HeadlineLineHeight
		}
		l.Headline = append(l.Headline, Line{Text: text, X: Margin, Y: y})
	}

	l.Subheadline = Line{Text: c.Subheadline, X: Margin, Y: y + SubheadlineOffset}

	label := upper.String(c.CTA)
	ctaY := y + CTAOffset
	l.CTA = Button{
		X:      Margin,
		Y:      ctaY,
		Width:  m.CTA.Measure(label) + 2*CTAPaddingX,
		Height: CTASize + 2*CTAPaddingY,
		Label:  Line{Text: label, X: Margin + CTAPaddingX, Y: ctaY + CTAPaddingY + ctaBaselineOffset},
	}
	l.CTA.Radius = clampRadius(CTARadius, l.CTA.Width, l.CTA.Height)
	return l
}

// WrapHeadline greedily packs words into lines no wider than maxWidth. A
// word is only moved to a new line when it is not the first word, so a
// single overlong word stays on its own line. The last line is always
// returned, even when the headline is blank.
func WrapHeadline(text string, maxWidth float64, m Measurer) []string {
	words := strings.Fields(text)
	var lines []string
	line := ""
	for n, word := range words {
		test := line + word + " "
		if m.Measure(test) > maxWidth && n > 0 {
			lines = append(lines, strings.TrimRight(line, " "))
			line = word + " "
			continue
		}
		line = test
	}
	return append(lines, strings.TrimRight(line, " "))
}

func clampRadius(r, w, h float64) float64 {
	if w < 2*r {
		r = w / 2
	}
	if h < 2*r {
		r = h / 2
	}
	return r
}
