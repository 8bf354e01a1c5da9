package genai

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"

	"adgenius/internal/domain"
)

// maxInlineEdge caps the longest side of images sent inline.
const maxInlineEdge = 2048

// inlineImagePart encodes an image for the request body. Oversized photos
// are downscaled and re-encoded as PNG; anything that fails to decode is
// sent untouched and left for the API to judge.
func inlineImagePart(img domain.Image) (geminiPart, error) {
	data, mime := img.Data, img.MIMEType
	if len(data) == 0 {
		return geminiPart{}, domain.ErrNoSourceImage
	}
	if decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		b := decoded.Bounds()
		if b.Dx() > maxInlineEdge || b.Dy() > maxInlineEdge {
			fitted := imaging.Fit(decoded, maxInlineEdge, maxInlineEdge, imaging.Lanczos)
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
				return geminiPart{}, fmt.Errorf("encode inline image: %w", err)
			}
			data, mime = buf.Bytes(), "image/png"
		}
	}
	if mime == "" {
		mime = "image/png"
	}
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}, nil
}
