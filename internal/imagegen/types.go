package imagegen

import "adgenius/internal/domain"

// TransformRequest is the input of the transform stage. Prompt is the
// already chosen image prompt: the caller's custom instruction when given,
// otherwise the strategy's image prompt.
type TransformRequest struct {
	Source      domain.Image
	Style       domain.Style
	AspectRatio domain.AspectRatio
	Prompt      string
	Tier        domain.Tier
}

// Result is a rendered background and the tier that produced it.
type Result struct {
	Image domain.Image
	Tier  domain.Tier
}
