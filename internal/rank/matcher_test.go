package rank

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

func price(v float64) *float64 { return &v }

func TestTokenizeDropsStopWordsAndStems(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"car", "sticker"}, Tokenize("Buy the Car Stickers!"))
	require.Equal(t, []string{"battery", "box", "glass"}, Tokenize("batteries, boxes & glass"))
	require.Empty(t, Tokenize("the best online sale"))
}

func TestMatcherScore(t *testing.T) {
	t.Parallel()

	m := NewMatcher("car stickers", Config{MinScore: 0.5})
	require.InDelta(t, 1.0, m.Score("Vinyl Car Sticker Pack"), 1e-9)
	require.InDelta(t, 0.5, m.Score("Car wash"), 1e-9)
	require.InDelta(t, 0.0, m.Score("Bumper decal"), 1e-9)
	// Compound words match on the longer token only.
	require.InDelta(t, 0.5, m.Score("Carsticker 3 pack"), 1e-9)
}

func TestMatcherSynonyms(t *testing.T) {
	t.Parallel()

	m := NewMatcher("car stickers", Config{
		MinScore: 1,
		Synonyms: map[string][]string{"stickers": {"decal", "vinyl wrap"}},
	})
	require.InDelta(t, 1.0, m.Score("Car decals"), 1e-9)
	require.InDelta(t, 1.0, m.Score("Car wrap"), 1e-9)
}

func TestMatcherStopWordKeywordAcceptsAll(t *testing.T) {
	t.Parallel()

	m := NewMatcher("the best", Config{MinScore: 0.9})
	require.InDelta(t, 1.0, m.Score("anything"), 1e-9)
}

func TestMatcherAcceptBlacklist(t *testing.T) {
	t.Parallel()

	m := NewMatcher("car sticker", Config{MinScore: 0.5, Blacklist: []string{" Toy ", ""}})
	require.True(t, m.Accept(product.Product{Title: "Car Sticker"}))
	require.False(t, m.Accept(product.Product{Title: "Toy car sticker"}))
	require.False(t, m.Accept(product.Product{Title: "Garden hose"}))
}

func TestMatcherFilter(t *testing.T) {
	t.Parallel()

	m := NewMatcher("car sticker", Config{MinScore: 0.5})
	in := []product.Product{
		{Title: "  Car   Sticker 100 x 50 mm ", ImageURL: "https://a.example/i.jpg"},
		{Title: "Car", ProductURL: "https://a.example/p"},
		{Title: "Car sticker without links"},
		{Title: "Garden hose", ProductURL: "https://a.example/h"},
		{Title: "Car sticker XL", ProductURL: "https://a.example/x", Size: "Large"},
	}
	out := m.Filter(in)
	require.Len(t, out, 2)
	require.Equal(t, "Car Sticker 100 x 50 mm", out[0].Title)
	require.Equal(t, "100 x 50 mm", out[0].Size)
	require.Equal(t, "Large", out[1].Size)
}

func TestMatcherSort(t *testing.T) {
	t.Parallel()

	m := NewMatcher("red car sticker", Config{})
	in := []product.Product{
		{Title: "Red sticker"},
		{Title: "Red car sticker", Price: nil},
		{Title: "Red car sticker deluxe", Price: price(9.5)},
		{Title: "Blue thing"},
	}
	out := m.Sort(in)
	require.Equal(t, "Red car sticker deluxe", out[0].Title)
	require.Equal(t, "Red car sticker", out[1].Title)
	require.Equal(t, "Red sticker", out[2].Title)
	require.Equal(t, "Blue thing", out[3].Title)
}

func TestDetectSize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Car Sticker 100 x 50 mm": "100 x 50 mm",
		"Decal 30x20cm matte":     "30x20cm",
		"Shampoo 500ml":           "500ml",
		"Coffee beans 1 kg bag":   "1 kg",
		"Cotton T-Shirt Size: xl": "XL",
		"Plain sticker with logo": "",
	}
	for title, want := range cases {
		require.Equal(t, want, DetectSize(title), title)
	}
}
