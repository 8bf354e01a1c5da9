package prompt

import (
	"fmt"

	"adgenius/internal/domain"
)

// Defaults substituted when a stage degrades.
const (
	UnnamedProduct  = "A product"
	FallbackProduct = "A high-quality product"
	FallbackAngle   = "Focus on quality and premium features."
)

// StaticStrategy is the template used when no tier produced a strategy.
func StaticStrategy(style domain.Style) domain.Strategy {
	return domain.Strategy{
		ImagePrompt: fmt.Sprintf("A professional photo of the product in %s style. High quality, commercial lighting.", style.DisplayName()),
		CopyAngle:   FallbackAngle,
	}
}

// StaticCopy is the copy used when copywriting fails.
func StaticCopy() domain.Copy {
	return domain.Copy{
		Headline:    "Experience Excellence",
		Subheadline: "The perfect choice for you.",
		CTA:         "Shop Now",
	}
}
