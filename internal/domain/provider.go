package domain

import "context"

// OutputSchema asks the provider for a JSON object whose listed fields are
// all required strings.
type OutputSchema struct {
	Name     string
	Required []string
}

// TextRequest is a single text generation call.
type TextRequest struct {
	Tier   Tier
	Prompt string
	// Image is attached as inline data when set.
	Image  *Image
	Schema *OutputSchema
	// Search enables web grounding.
	Search bool
}

// ImageRequest is a single image transform call.
type ImageRequest struct {
	Tier        Tier
	Source      Image
	Prompt      string
	AspectRatio AspectRatio
}

// ContentProvider is the generative backend consumed by the pipeline.
// GenerateImage returns a nil image and a nil error when the backend
// declines to produce one.
type ContentProvider interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
}
