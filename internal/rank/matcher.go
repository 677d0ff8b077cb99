// Package rank filters extracted products against the search keyword,
// removes duplicates across sites, and orders the final result set.
package rank

import (
	"sort"
	"strings"
	"unicode"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// Config tunes keyword matching.
type Config struct {
	// MinScore is the fraction of keyword tokens a title must contain.
	MinScore float64
	// Blacklist rejects titles containing any of these terms.
	Blacklist []string
	// Synonyms maps a keyword token to alternative spellings.
	Synonyms map[string][]string
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "for": {}, "of": {}, "with": {},
	"in": {}, "on": {}, "to": {}, "buy": {}, "cheap": {}, "best": {}, "online": {},
	"australia": {}, "au": {}, "sale": {},
}

// Matcher scores product titles against one keyword. It is immutable and safe
// for concurrent use.
type Matcher struct {
	tokens    [][]string
	blacklist []string
	minScore  float64
}

// NewMatcher prepares the keyword tokens and their accepted forms.
func NewMatcher(keyword string, cfg Config) *Matcher {
	synonyms := make(map[string][]string, len(cfg.Synonyms))
	for k, v := range cfg.Synonyms {
		synonyms[Stem(strings.ToLower(k))] = v
	}
	m := &Matcher{minScore: cfg.MinScore}
	for _, tok := range Tokenize(keyword) {
		forms := []string{tok}
		for _, syn := range synonyms[tok] {
			for _, s := range Tokenize(syn) {
				forms = appendUnique(forms, s)
			}
		}
		m.tokens = append(m.tokens, forms)
	}
	for _, term := range cfg.Blacklist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			m.blacklist = append(m.blacklist, term)
		}
	}
	return m
}

// Score returns the fraction of keyword tokens present in title. A keyword
// made only of stop words scores every title 1.
func (m *Matcher) Score(title string) float64 {
	if len(m.tokens) == 0 {
		return 1
	}
	titleTokens := make(map[string]struct{})
	for _, tok := range Tokenize(title) {
		titleTokens[tok] = struct{}{}
	}
	squashed := squash(title)
	matched := 0
	for _, forms := range m.tokens {
		if matchesAny(forms, titleTokens, squashed) {
			matched++
		}
	}
	return float64(matched) / float64(len(m.tokens))
}

// Accept reports whether p is relevant to the keyword.
func (m *Matcher) Accept(p product.Product) bool {
	lower := strings.ToLower(p.Title)
	for _, term := range m.blacklist {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return m.Score(p.Title) >= m.minScore
}

// Filter keeps the valid, accepted products and fills missing sizes.
func (m *Matcher) Filter(products []product.Product) []product.Product {
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		p.Title = strings.Join(strings.Fields(p.Title), " ")
		if !p.Valid() || !m.Accept(p) {
			continue
		}
		if p.Size == "" {
			p.Size = DetectSize(p.Title)
		}
		out = append(out, p)
	}
	return out
}

// Sort orders products by score (highest first), then priced before
// unpriced, keeping discovery order for ties.
func (m *Matcher) Sort(products []product.Product) []product.Product {
	type scored struct {
		p     product.Product
		score float64
	}
	items := make([]scored, len(products))
	for i, p := range products {
		items[i] = scored{p: p, score: m.Score(p.Title)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].p.HasPrice() && !items[j].p.HasPrice()
	})
	out := make([]product.Product, len(items))
	for i, it := range items {
		out[i] = it.p
	}
	return out
}

// Tokenize lowercases s, splits on non-alphanumerics, drops stop words, and
// stems each token.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, Stem(f))
	}
	return out
}

// Stem strips common English plural endings.
func Stem(tok string) string {
	switch {
	case len(tok) > 4 && strings.HasSuffix(tok, "ies"):
		return tok[:len(tok)-3] + "y"
	case len(tok) > 4 && (strings.HasSuffix(tok, "ches") || strings.HasSuffix(tok, "shes") ||
		strings.HasSuffix(tok, "xes") || strings.HasSuffix(tok, "sses")):
		return tok[:len(tok)-2]
	case len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") &&
		!strings.HasSuffix(tok, "us") && !strings.HasSuffix(tok, "is"):
		return tok[:len(tok)-1]
	}
	return tok
}

func matchesAny(forms []string, titleTokens map[string]struct{}, squashed string) bool {
	for _, form := range forms {
		if _, ok := titleTokens[form]; ok {
			return true
		}
		// Compound words such as "carsticker" only match on longer forms.
		if len(form) >= 4 && strings.Contains(squashed, form) {
			return true
		}
	}
	return false
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
