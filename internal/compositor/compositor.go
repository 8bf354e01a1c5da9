// Package compositor renders the exported ad: cover-fit background,
// legibility gradient, wrapped headline, subheadline and CTA pill, encoded
// as PNG. Output is deterministic for identical inputs.
package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"adgenius/internal/domain"
)

const MIMEType = "image/png"

var (
	headlineColor    = color.White
	subheadlineColor = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	buttonColor      = color.White
	buttonTextColor  = color.Black
)

// Artifact is an encoded export.
type Artifact struct {
	Data     []byte
	Filename string
	MIMEType string
	Layout   Layout
}

// Compositor draws ads with a fixed set of faces. Calls are serialized
// because font faces keep internal caches.
type Compositor struct {
	mu    sync.Mutex
	faces *Faces
}

// New loads the embedded fonts.
func New() (*Compositor, error) {
	faces, err := LoadFaces()
	if err != nil {
		return nil, err
	}
	return &Compositor{faces: faces}, nil
}

// Filename returns the export name for a timestamp.
func Filename(t time.Time) string {
	return fmt.Sprintf("adgenius-%d.png", t.UnixMilli())
}

// Layout computes the coordinates Compose would draw at.
func (c *Compositor) Layout(adCopy domain.Copy, width, height int) Layout {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeLayout(width, height, adCopy, c.faces.Metrics())
}

// ComposeAd decodes the rendered background of ad and composes it on the
// canvas of its aspect ratio.
func (c *Compositor) ComposeAd(ad domain.AdRecord, at time.Time) (*Artifact, error) {
	if ad.Rendered.Empty() {
		return nil, domain.ErrNoImage
	}
	bg, err := imaging.Decode(bytes.NewReader(ad.Rendered.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("compositor: decode background: %w", err)
	}
	width, height := ad.AspectRatio.Canvas()
	art, err := c.Compose(bg, ad.Copy(), width, height)
	if err != nil {
		return nil, err
	}
	art.Filename = Filename(at)
	return art, nil
}

// Compose renders adCopy over background on a width x height canvas.
func (c *Compositor) Compose(background image.Image, adCopy domain.Copy, width, height int) (*Artifact, error) {
	if background == nil {
		return nil, domain.ErrNoImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", domain.ErrInvalidRequest, width, height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	layout := ComputeLayout(width, height, adCopy, c.faces.Metrics())
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	fitted := imaging.Fill(background, width, height, imaging.Center, imaging.Lanczos)
	draw.Draw(canvas, canvas.Bounds(), fitted, image.Point{}, draw.Over)

	paintGradient(canvas, layout)
	drawHeadline(canvas, c.faces.Headline, layout.Headline)
	drawText(canvas, c.faces.Subheadline, subheadlineColor, layout.Subheadline)

	btn := layout.CTA
	pill := &roundedRect{
		rect:   image.Rect(int(math.Floor(btn.X)), int(math.Floor(btn.Y)), int(math.Ceil(btn.X+btn.Width)), int(math.Ceil(btn.Y+btn.Height))),
		x:      btn.X,
		y:      btn.Y,
		w:      btn.Width,
		h:      btn.Height,
		radius: btn.Radius,
	}
	draw.DrawMask(canvas, pill.rect, image.NewUniform(buttonColor), image.Point{}, pill, pill.rect.Min, draw.Over)
	drawText(canvas, c.faces.CTA, buttonTextColor, btn.Label)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, canvas, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
		return nil, fmt.Errorf("compositor: encode: %w", err)
	}
	return &Artifact{Data: buf.Bytes(), MIMEType: MIMEType, Layout: layout}, nil
}

// paintGradient darkens the rows between GradientTop and the bottom edge.
// Opacity runs 0.85 at the bottom, 0.3 halfway up and 0 at the top.
func paintGradient(dst draw.Image, l Layout) {
	span := l.GradientBottom - l.GradientTop
	if span <= 0 {
		return
	}
	for y := int(l.GradientTop); y < l.Height; y++ {
		t := (l.GradientBottom - (float64(y) + 0.5)) / span
		a := gradientAlpha(t)
		if a <= 0 {
			continue
		}
		shade := image.NewUniform(color.NRGBA{A: uint8(math.Round(a * 255))})
		draw.Draw(dst, image.Rect(0, y, l.Width, y+1), shade, image.Point{}, draw.Over)
	}
}

// gradientAlpha maps a position from the bottom (0) to the top (1) of the
// overlay onto its opacity.
func gradientAlpha(t float64) float64 {
	switch {
	case t <= 0:
		return 0.85
	case t >= 1:
		return 0
	case t <= 0.5:
		return 0.85 + (0.3-0.85)*(t/0.5)
	default:
		return 0.3 * (1 - (t-0.5)/0.5)
	}
}

// drawHeadline draws every committed line, blank ones included, and
// returns how many were drawn.
func drawHeadline(dst draw.Image, face font.Face, lines []Line) int {
	for _, line := range lines {
		drawText(dst, face, headlineColor, line)
	}
	return len(lines)
}

func drawText(dst draw.Image, face font.Face, c color.Color, line Line) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(line.X * 64)), Y: fixed.Int26_6(math.Round(line.Y * 64))},
	}
	d.DrawString(line.Text)
}

// roundedRect is an alpha mask of a rounded rectangle, antialiased with
// 4x4 supersampling.
type roundedRect struct {
	rect       image.Rectangle
	x, y, w, h float64
	radius     float64
}

func (r *roundedRect) ColorModel() color.Model { return color.AlphaModel }

func (r *roundedRect) Bounds() image.Rectangle { return r.rect }

func (r *roundedRect) At(px, py int) color.Color {
	const n = 4
	hits := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if r.contains(float64(px)+(float64(i)+0.5)/n, float64(py)+(float64(j)+0.5)/n) {
				hits++
			}
		}
	}
	return color.Alpha{A: uint8(hits * 255 / (n * n))}
}

func (r *roundedRect) contains(x, y float64) bool {
	if x < r.x || x > r.x+r.w || y < r.y || y > r.y+r.h {
		return false
	}
	cx := math.Max(r.x+r.radius, math.Min(x, r.x+r.w-r.radius))
	cy := math.Max(r.y+r.radius, math.Min(y, r.y+r.h-r.radius))
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r.radius*r.radius
}
