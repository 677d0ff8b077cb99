package extract

import (
	"fmt"
	"strings"
)

const promptTemplate = `Extract products from this page matching "%s".
Return JSON array: [{"title":"...","price":9.99,"currency":"AUD","imageUrl":"...","productUrl":"...","size":"..."}]
Only include relevant products. Max %d. If none, return [].
HTML: %s`

// BuildPrompt renders the extraction prompt for keyword over cleaned content.
func BuildPrompt(keyword, content string, maxProducts int) string {
	if maxProducts <= 0 {
		maxProducts = 30
	}
	return fmt.Sprintf(promptTemplate, strings.ReplaceAll(keyword, `"`, `'`), maxProducts, content)
}
