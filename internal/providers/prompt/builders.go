// Package prompt builds the text prompts of the analysis, research,
// strategy and copywriting stages and decodes their structured answers.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"adgenius/internal/domain"
)

// Output schemas of the structured stages.
var (
	StrategySchema = domain.OutputSchema{Name: "strategy", Required: []string{"imagePrompt", "copyAngle"}}
	CopySchema     = domain.OutputSchema{Name: "copy", Required: []string{"headline", "subheadline", "cta"}}
)

// Analyze asks for the product name of the attached photo.
func Analyze() string {
	return "Identify this product. Return just the product name."
}

// Research asks for a short list of selling points.
func Research(productName string) string {
	return fmt.Sprintf("Summarize top 3 selling points for: %s.", strings.TrimSpace(productName))
}

// Strategy asks for the image prompt and copy angle of an ad.
func Strategy(productDesc string, style domain.Style) string {
	return fmt.Sprintf("Create ad strategy for %s in %s style. Return JSON with 'imagePrompt' and 'copyAngle'.", strings.TrimSpace(productDesc), style.DisplayName())
}

// Copy asks for headline, subheadline and call to action. The angle is
// optional; a non-English locale adds a language instruction.
func Copy(productDesc string, style domain.Style, angle, locale string) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Write ad copy for %s. Style: %s.", strings.TrimSpace(productDesc), style.DisplayName())
	if angle = strings.TrimSpace(angle); angle != "" {
		fmt.Fprintf(sb, " Angle: %s.", strings.TrimSuffix(angle, "."))
	}
	if name := languageName(locale); name != "" {
		fmt.Fprintf(sb, " Write the copy in %s.", name)
	}
	sb.WriteString(" Return JSON: headline, subheadline, cta.")
	return sb.String()
}

// languageName returns the English name of a non-English locale.
func languageName(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return ""
	}
	return display.English.Languages().Name(tag)
}
