package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-search-crawler/internal/product"
	"github.com/JakeFAU/product-search-crawler/internal/rank"
)

const itemListPage = `<!doctype html><html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
 {"@type":"ListItem","position":1,"item":{"@type":"Product","name":"Car Sticker Flames","image":["/img/flames.jpg"],
   "url":"/p/flames","offers":{"@type":"Offer","price":"12.95","priceCurrency":"aud"}}},
 {"@type":"ListItem","position":2,"item":{"@type":"Product","name":"Car Sticker Stripes","image":{"@type":"ImageObject","url":"https://cdn.shop.example/stripes.jpg"},
   "url":"https://www.shop.example/p/stripes","offers":[{"@type":"AggregateOffer","lowPrice":8,"priceCurrency":"USD"}]}}
]}
</script>
<script type="application/ld+json">{ not json </script>
</head><body></body></html>`

const graphPage = `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@graph":[{"@type":"WebSite","name":"Shop"},
 {"@type":["Product","Thing"],"name":"Bumper Decal","image":"https://shop.example/decal.png","size":"30 x 10 cm","offers":{"price":5}}]}
</script></head><body></body></html>`

const unlinkedListPage = `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
 {"@type":"ListItem","item":{"@type":"Product","name":"Red Bumper Sticker","image":"/img/red.jpg","offers":{"price":"4.50"}}},
 {"@type":"ListItem","item":{"@type":"Product","name":"Blue Bumper Sticker","image":"/img/blue.jpg","offers":{"price":"4.50"}}},
 {"@type":"ListItem","item":{"@type":"Product","name":"Green Bumper Sticker","image":"/img/green.jpg","offers":{"price":"4.50"}}}
]}
</script></head><body></body></html>`

const openGraphPage = `<html><head>
<meta property="og:type" content="product">
<meta property="og:title" content="Reflective Car Sticker">
<meta property="og:image" content="/media/reflective.jpg">
<meta property="product:price:amount" content="19.50">
<meta property="product:price:currency" content="NZD">
</head><body></body></html>`

func TestStructuredItemList(t *testing.T) {
	t.Parallel()

	page := product.Page{URL: "https://www.shop.example/search?q=car+sticker", HTML: itemListPage}
	got, err := NewStructured("").Extract(context.Background(), page, "car sticker")
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "Car Sticker Flames", got[0].Title)
	require.Equal(t, "https://www.shop.example/img/flames.jpg", got[0].ImageURL)
	require.Equal(t, "https://www.shop.example/p/flames", got[0].ProductURL)
	require.InDelta(t, 12.95, *got[0].Price, 1e-9)
	require.Equal(t, "AUD", got[0].Currency)
	require.Equal(t, "shop.example", got[0].Supplier)

	require.Equal(t, "https://cdn.shop.example/stripes.jpg", got[1].ImageURL)
	require.InDelta(t, 8.0, *got[1].Price, 1e-9)
	require.Equal(t, "USD", got[1].Currency)
}

func TestStructuredGraph(t *testing.T) {
	t.Parallel()

	page := product.Page{URL: "https://shop.example/p/decal", HTML: graphPage}
	got, err := NewStructured("AUD").Extract(context.Background(), page, "decal")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Bumper Decal", got[0].Title)
	require.Equal(t, "https://shop.example/p/decal", got[0].ProductURL)
	require.Equal(t, "30 x 10 cm", got[0].Size)
	require.Equal(t, "AUD", got[0].Currency)
	require.InDelta(t, 5.0, *got[0].Price, 1e-9)
}

func TestStructuredOpenGraphFallback(t *testing.T) {
	t.Parallel()

	page := product.Page{URL: "https://shop.example/p/1", FinalURL: "https://shop.example/products/1", HTML: openGraphPage}
	got, err := NewStructured("AUD").Extract(context.Background(), page, "sticker")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Reflective Car Sticker", got[0].Title)
	require.Equal(t, "https://shop.example/media/reflective.jpg", got[0].ImageURL)
	require.Equal(t, "https://shop.example/products/1", got[0].ProductURL)
	require.Equal(t, "NZD", got[0].Currency)
	require.InDelta(t, 19.5, *got[0].Price, 1e-9)
}

func TestStructuredNothingFound(t *testing.T) {
	t.Parallel()

	page := product.Page{URL: "https://shop.example/", HTML: `<html><body><h1>Welcome</h1></body></html>`}
	got, err := NewStructured("AUD").Extract(context.Background(), page, "sticker")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStructuredListWithoutLinksKeepsDistinctProducts(t *testing.T) {
	t.Parallel()

	page := product.Page{URL: "https://shop.example.com/stickers", HTML: unlinkedListPage}
	got, err := NewStructured("AUD").Extract(context.Background(), page, "bumper sticker")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, p := range got {
		require.Empty(t, p.ProductURL, p.Title)
		require.True(t, p.Valid(), p.Title)
	}

	fresh, total := rank.NewDeduper().Add(got)
	require.Len(t, fresh, 3)
	require.Equal(t, 3, total)
}
