package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// Structured reads products from JSON-LD blocks and, failing that, from
// OpenGraph product meta tags. It never calls out to the network.
type Structured struct {
	DefaultCurrency string
}

// NewStructured creates a structured-data extractor.
func NewStructured(defaultCurrency string) *Structured {
	if defaultCurrency == "" {
		defaultCurrency = product.DefaultCurrency
	}
	return &Structured{DefaultCurrency: defaultCurrency}
}

// Extract implements product.Extractor. The keyword is not used; filtering
// happens downstream.
func (s *Structured) Extract(_ context.Context, page product.Page, _ string) ([]product.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var nodes []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(sel.Text()))))
		dec.UseNumber()
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return
		}
		collectProducts(raw, &nodes)
	})

	base := page.BaseURL()
	supplier := product.Host(page.URL)
	out := make([]product.Product, 0, len(nodes))
	for _, node := range nodes {
		p := s.fromJSONLD(node, base, len(nodes) == 1)
		p.Supplier = supplier
		if p.Valid() {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	if p, ok := s.fromOpenGraph(doc, base); ok {
		p.Supplier = supplier
		if p.Valid() {
			out = append(out, p)
		}
	}
	return out, nil
}

// collectProducts walks the containers JSON-LD uses to group entities:
// top-level arrays, @graph, and ItemList elements.
func collectProducts(v any, out *[]map[string]any) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			collectProducts(item, out)
		}
	case map[string]any:
		if hasType(node, "Product") || hasType(node, "ProductGroup") {
			*out = append(*out, node)
			return
		}
		if graph, ok := node["@graph"]; ok {
			collectProducts(graph, out)
		}
		if hasType(node, "ItemList") || hasType(node, "OfferCatalog") {
			collectProducts(node["itemListElement"], out)
		}
		if hasType(node, "ListItem") {
			collectProducts(node["item"], out)
		}
		if main, ok := node["mainEntity"]; ok {
			collectProducts(main, out)
		}
	}
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

// fromJSONLD uses the page address as the product link only when the node is
// the page's sole product.
func (s *Structured) fromJSONLD(node map[string]any, base string, sole bool) product.Product {
	p := product.Product{
		Title:    strings.TrimSpace(stringValue(node["name"])),
		ImageURL: product.ResolveURL(base, imageValue(node["image"])),
		Size:     strings.TrimSpace(stringValue(node["size"])),
	}
	if ref := stringValue(node["url"]); ref != "" {
		p.ProductURL = product.ResolveURL(base, ref)
	} else if id := stringValue(node["@id"]); strings.HasPrefix(id, "http") {
		p.ProductURL = product.ResolveURL(base, id)
	} else if sole {
		p.ProductURL = base
	}

	price, currency := offerPrice(node["offers"])
	p.Price = price
	p.Currency = strings.ToUpper(currency)
	if p.Currency == "" {
		p.Currency = s.DefaultCurrency
	}
	return p
}

// offerPrice reads the first usable price from an Offer, AggregateOffer, or
// array of offers.
func offerPrice(v any) (*float64, string) {
	switch offer := v.(type) {
	case []any:
		for _, item := range offer {
			if price, currency := offerPrice(item); price != nil {
				return price, currency
			}
		}
	case map[string]any:
		currency := stringValue(offer["priceCurrency"])
		for _, key := range []string{"price", "lowPrice"} {
			if price, implied := ParsePrice(offer[key]); price != nil {
				if currency == "" {
					currency = implied
				}
				return price, currency
			}
		}
		if spec, ok := offer["priceSpecification"]; ok {
			return offerPrice(spec)
		}
	}
	return nil, ""
}

func (s *Structured) fromOpenGraph(doc *goquery.Document, base string) (product.Product, bool) {
	ogType := strings.ToLower(metaContent(doc, "og:type"))
	if ogType != "product" && ogType != "og:product" && ogType != "product.item" {
		return product.Product{}, false
	}
	p := product.Product{
		Title:    strings.TrimSpace(metaContent(doc, "og:title")),
		ImageURL: product.ResolveURL(base, metaContent(doc, "og:image")),
		Currency: strings.ToUpper(metaContent(doc, "product:price:currency", "og:price:currency")),
	}
	p.ProductURL = product.ResolveURL(base, metaContent(doc, "og:url"))
	if p.ProductURL == "" {
		p.ProductURL = base
	}
	p.Price, _ = ParsePrice(metaContent(doc, "product:price:amount", "og:price:amount"))
	if p.Currency == "" {
		p.Currency = s.DefaultCurrency
	}
	return p, true
}

func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, key, key)).First()
		if content := strings.TrimSpace(sel.AttrOr("content", "")); content != "" {
			return content
		}
	}
	return ""
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case map[string]any:
		if name, ok := s["name"].(string); ok {
			return name
		}
	}
	return ""
}

// imageValue handles image given as a URL, an array, or an ImageObject.
func imageValue(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		for _, item := range img {
			if s := imageValue(item); s != "" {
				return s
			}
		}
	case map[string]any:
		for _, key := range []string{"url", "contentUrl"} {
			if s, ok := img[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
