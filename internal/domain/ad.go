package domain

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Style enumerates the visual themes an ad can be generated in.
type Style string

const (
	StyleStudio    Style = "studio"
	StyleOutdoor   Style = "outdoor"
	StyleMinimal   Style = "minimal"
	StyleCyberpunk Style = "cyberpunk"
	StyleVintage   Style = "vintage"
	StyleElegant   Style = "elegant"
	StyleEnergetic Style = "energetic"
)

// StyleInfo describes a style for pickers and prompts.
type StyleInfo struct {
	ID          Style  `json:"id"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var styleCatalog = []StyleInfo{
	{ID: StyleStudio, Name: "Studio Professional", Label: "Studio", Description: "Clean, professional studio lighting with solid backgrounds."},
	{ID: StyleElegant, Name: "Luxury Elegant", Label: "Luxury", Description: "Premium marble, gold accents, and sophisticated bokeh."},
	{ID: StyleOutdoor, Name: "Outdoor Lifestyle", Label: "Outdoor", Description: "Natural lighting in scenic, high-end environments."},
	{ID: StyleMinimal, Name: "Minimalist Zen", Label: "Minimal", Description: "Simple, airy, focus purely on the product."},
	{ID: StyleCyberpunk, Name: "Cyberpunk Neon", Label: "Neon", Description: "Vibrant colors, dark shadows, and futuristic energy."},
	{ID: StyleEnergetic, Name: "Energetic Pop", Label: "Pop", Description: "Bold colors, dynamic shadows, and high-impact vibes."},
	{ID: StyleVintage, Name: "Vintage Retro", Label: "Vintage", Description: "Warm film tones, faded colors, and nostalgic props."},
}

// Styles returns the style catalogue in picker order.
func Styles() []StyleInfo {
	out := make([]StyleInfo, len(styleCatalog))
	copy(out, styleCatalog)
	return out
}

// ParseStyle accepts either the identifier or the display name of a style.
func ParseStyle(raw string) (Style, error) {
	value := strings.TrimSpace(raw)
	for _, info := range styleCatalog {
		if strings.EqualFold(value, string(info.ID)) || strings.EqualFold(value, info.Name) || strings.EqualFold(value, info.Label) {
			return info.ID, nil
		}
	}
	return "", fmt.Errorf("%w: unknown style %q", ErrInvalidRequest, raw)
}

// DisplayName is the human readable name that prompts receive.
func (s Style) DisplayName() string {
	for _, info := range styleCatalog {
		if info.ID == s {
			return info.Name
		}
	}
	return string(s)
}

// AspectRatio enumerates the supported output ratios.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectStory     AspectRatio = "9:16"
	AspectLandscape AspectRatio = "16:9"
)

// AspectInfo describes an aspect ratio for pickers.
type AspectInfo struct {
	ID     AspectRatio `json:"id"`
	Label  string      `json:"label"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
}

// AspectRatios returns the supported ratios with their canvas sizes.
func AspectRatios() []AspectInfo {
	ratios := []struct {
		id    AspectRatio
		label string
	}{
		{AspectSquare, "Square (Feed)"},
		{AspectStory, "Story (9:16)"},
		{AspectLandscape, "Landscape (16:9)"},
	}
	out := make([]AspectInfo, 0, len(ratios))
	for _, r := range ratios {
		w, h := r.id.Canvas()
		out = append(out, AspectInfo{ID: r.id, Label: r.label, Width: w, Height: h})
	}
	return out
}

// ParseAspectRatio normalizes a ratio string.
func ParseAspectRatio(raw string) (AspectRatio, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1:1", "square":
		return AspectSquare, nil
	case "9:16", "story":
		return AspectStory, nil
	case "16:9", "landscape":
		return AspectLandscape, nil
	}
	return "", fmt.Errorf("%w: unknown aspect ratio %q", ErrInvalidRequest, raw)
}

// Canvas returns the export canvas size. The width is fixed at 1080 and the
// height is one of three constants; it never depends on the rendered image.
func (r AspectRatio) Canvas() (width, height int) {
	switch r {
	case AspectStory:
		return 1080, 1920
	case AspectLandscape:
		return 1080, 608
	default:
		return 1080, 1080
	}
}

// Tier is the quality level of a provider call.
type Tier string

const (
	TierStandard     Tier = "standard"
	TierHighFidelity Tier = "high-fidelity"
)

// ParseTier normalizes a tier name. Empty input selects the standard tier.
func ParseTier(raw string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "standard":
		return TierStandard, nil
	case "high-fidelity", "high_fidelity", "pro":
		return TierHighFidelity, nil
	}
	return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidRequest, raw)
}

// Image is an encoded image buffer. Source images are captured once at
// upload and never mutated afterwards.
type Image struct {
	Data     []byte
	MIMEType string
}

// NewImage copies data and sniffs the MIME type when none is given.
func NewImage(data []byte, mimeType string) Image {
	buf := make([]byte, len(data))
	copy(buf, data)
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(buf)
	}
	return Image{Data: buf, MIMEType: mimeType}
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// ProductProfile is what the analysis stages learned about the product.
type ProductProfile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Strategy drives the image transform and the copy angle.
type Strategy struct {
	ImagePrompt string `json:"image_prompt"`
	CopyAngle   string `json:"copy_angle"`
}

// Copy is the text burned onto the ad.
type Copy struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	CTA         string `json:"cta"`
}

// GenerationRequest captures the options of one generation attempt.
type GenerationRequest struct {
	Style             Style       `json:"style"`
	AspectRatio       AspectRatio `json:"aspect_ratio"`
	CustomInstruction string      `json:"custom_instruction,omitempty"`
	Tier              Tier        `json:"tier"`
	ComplexStrategy   bool        `json:"complex_strategy"`
	Locale            string      `json:"locale,omitempty"`
}

// Validate checks the request against the supported enumerations.
func (r GenerationRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Style, validation.Required, validation.In(StyleStudio, StyleOutdoor, StyleMinimal, StyleCyberpunk, StyleVintage, StyleElegant, StyleEnergetic)),
		validation.Field(&r.AspectRatio, validation.Required, validation.In(AspectSquare, AspectStory, AspectLandscape)),
		validation.Field(&r.Tier, validation.In(TierStandard, TierHighFidelity)),
		validation.Field(&r.CustomInstruction, validation.Length(0, 2000)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// AdRecord is the assembled result of one pipeline run. A record is replaced
// wholesale by a fresh run and never edited field by field.
type AdRecord struct {
	Source      Image          `json:"-"`
	Rendered    Image          `json:"-"`
	Headline    string         `json:"headline"`
	Subheadline string         `json:"subheadline"`
	CTA         string         `json:"cta"`
	Style       Style          `json:"style"`
	AspectRatio AspectRatio    `json:"aspect_ratio"`
	Tier        Tier           `json:"tier"`
	Product     ProductProfile `json:"product"`
	Strategy    Strategy       `json:"strategy"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Copy returns the text block of the record.
func (a AdRecord) Copy() Copy {
	return Copy{Headline: a.Headline, Subheadline: a.Subheadline, CTA: a.CTA}
}
