package imagegen

import (
	"fmt"
	"strings"

	"adgenius/internal/domain"
)

var standardRequirements = []string{
	"Photorealistic 8k resolution",
	"Professional studio lighting and composition",
	"Preserve the product's core details and branding",
	"Clean, commercial aesthetic suitable for high-end marketing",
	"Seamless integration with the background",
}

var highFidelityGuidelines = []string{
	"Ultra-photorealistic, 8k UHD, highly detailed texture",
	"Cinematic lighting with perfect shadows and highlights",
	"Sophisticated composition following the rule of thirds",
	"Luxurious and premium atmosphere",
	"Ensure the product is the clear focal point",
}

// BuildInstruction renders the transform prompt for a tier. The prompt text
// is the caller's chosen image prompt and is optional.
func BuildInstruction(tier domain.Tier, style domain.Style, aspect domain.AspectRatio, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	lines := []string{}
	var heading string
	var bullets []string
	if tier == domain.TierHighFidelity {
		lines = append(lines,
			"Create a masterpiece commercial advertisement featuring this product.",
			fmt.Sprintf("Style Theme: %s.", style.DisplayName()),
		)
		if prompt != "" {
			lines = append(lines, "Specific Instructions: "+prompt)
		}
		heading, bullets = "Visual Guidelines:", highFidelityGuidelines
	} else {
		lines = append(lines,
			"Transform this product image into a high-end professional advertisement.",
			fmt.Sprintf("Style: %s.", style.DisplayName()),
		)
		if prompt != "" {
			lines = append(lines, "User Instructions: "+prompt)
		}
		heading, bullets = "Key Requirements:", standardRequirements
	}
	if aspect != "" {
		lines = append(lines, fmt.Sprintf("Compose for a %s frame.", aspect))
	}
	lines = append(lines, "", heading)
	for _, b := range bullets {
		lines = append(lines, "- "+b)
	}
	return strings.Join(lines, "\n")
}
