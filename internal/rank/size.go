package rank

import (
	"regexp"
	"strings"
)

var (
	dimensionPattern = regexp.MustCompile(
		`(?i)\b\d+(?:\.\d+)?\s*(?:mm|cm|m|in|")?\s*[x×]\s*\d+(?:\.\d+)?(?:\s*[x×]\s*\d+(?:\.\d+)?)?\s*(?:mm|cm|m|in|inch|inches|")?`)
	quantityPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:ml|l|g|kg|oz|lb|pack|pk|pcs|piece|pieces)\b`)
	apparelPattern  = regexp.MustCompile(`(?i)\bsize[:\s]+([a-z0-9]{1,4})\b`)
)

// DetectSize pulls a size hint out of a product title. Dimensions win over
// quantities, which win over apparel sizes. It returns "" when nothing matches.
func DetectSize(title string) string {
	if m := dimensionPattern.FindString(title); m != "" {
		return strings.TrimSpace(m)
	}
	if m := quantityPattern.FindString(title); m != "" {
		return strings.TrimSpace(m)
	}
	if m := apparelPattern.FindStringSubmatch(title); len(m) == 2 {
		return strings.ToUpper(m[1])
	}
	return ""
}
