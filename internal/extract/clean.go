package extract

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelector lists elements that never carry product text.
const noiseSelector = "script, style, noscript, svg, iframe, template, link, meta, canvas"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// Cleaner shrinks a page before it is sent to a model.
type Cleaner struct {
	// Markdown converts the cleaned DOM to Markdown.
	Markdown bool
	// MaxChars truncates the result; zero means no limit.
	MaxChars int
}

// Clean strips non-content elements and comments, collapses whitespace, and
// truncates to MaxChars runes.
func (c Cleaner) Clean(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}

	if c.Markdown {
		converted, err := md.NewConverter("", true, nil).ConvertString(out)
		if err != nil {
			return "", fmt.Errorf("convert markdown: %w", err)
		}
		out = trailingSpace.ReplaceAllString(converted, "\n")
		out = blankLines.ReplaceAllString(out, "\n\n")
	} else {
		out = whitespaceRun.ReplaceAllString(out, " ")
	}
	return truncate(strings.TrimSpace(out), c.MaxChars), nil
}

func removeComments(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			removeComments(child)
		}
		child = next
	}
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := 0
	for i := range s {
		if runes == limit {
			return s[:i]
		}
		runes++
	}
	return s
}
