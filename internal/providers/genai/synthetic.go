package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"adgenius/internal/domain"
)

// syntheticText answers offline. Structured requests get every required
// field filled so downstream decoding succeeds.
func syntheticText(req domain.TextRequest) string {
	seed := deterministicSeed(req.Tier, req.Prompt, req.Search)
	if req.Schema == nil {
		if req.Image != nil {
			return "Synthetic product " + seed[:6]
		}
		return fmt.Sprintf("Synthetic summary %s: durable, well made, great value.", seed[:6])
	}
	obj := make(map[string]string, len(req.Schema.Required))
	for _, field := range req.Schema.Required {
		obj[field] = fmt.Sprintf("Synthetic %s %s", field, seed[:6])
	}
	data, _ := json.Marshal(obj)
	return string(data)
}

func syntheticImage(model string, req domain.ImageRequest) *domain.Image {
	seed := deterministicSeed(model, req.Prompt, req.AspectRatio, len(req.Source.Data))
	width, height := normalizeAspect(req.AspectRatio)
	data := renderSyntheticImage(width, height, seed)
	if data == nil {
		return nil
	}
	img := domain.NewImage(data, "image/png")
	return &img
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// normalizeAspect returns the pixel size the synthetic renderer uses.
func normalizeAspect(aspect domain.AspectRatio) (int, int) {
	switch aspect {
	case domain.AspectLandscape:
		return 1024, 576
	case domain.AspectStory:
		return 576, 1024
	default:
		return 1024, 1024
	}
}
