package compositor

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/opentype"
)

// Faces bundles the three faces the compositor draws with. Faces are not
// safe for concurrent use.
type Faces struct {
	Headline    font.Face
	Subheadline font.Face
	CTA         font.Face
}

// LoadFaces parses the embedded Go fonts. At 72 DPI a point is a pixel,
// so sizes match the layout constants directly.
func LoadFaces() (*Faces, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("compositor: parse bold font: %w", err)
	}
	medium, err := opentype.Parse(gomedium.TTF)
	if err != nil {
		return nil, fmt.Errorf("compositor: parse medium font: %w", err)
	}

	faces := &Faces{}
	if faces.Headline, err = newFace(bold, HeadlineSize); err != nil {
		return nil, err
	}
	if faces.Subheadline, err = newFace(medium, SubheadlineSize); err != nil {
		return nil, err
	}
	if faces.CTA, err = newFace(bold, CTASize); err != nil {
		return nil, err
	}
	return faces, nil
}

// Metrics exposes the faces as layout measurers.
func (f *Faces) Metrics() Metrics {
	return Metrics{Headline: faceMeasurer{f.Headline}, CTA: faceMeasurer{f.CTA}}
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("compositor: new face %.0fpx: %w", size, err)
	}
	return face, nil
}

type faceMeasurer struct {
	face font.Face
}

func (m faceMeasurer) Measure(text string) float64 {
	return float64(font.MeasureString(m.face, text)) / 64
}
