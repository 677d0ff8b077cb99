package product

import "testing"

func TestDomainBlocklist(t *testing.T) {
	t.Parallel()

	t.Run("host entry covers subdomains", func(t *testing.T) {
		t.Parallel()
		bl := NewDomainBlocklist([]string{"reddit.com", "www.YouTube.com"})
		if bl == nil {
			t.Fatalf("expected blocklist to be created")
		}
		cases := []struct {
			host    string
			blocked bool
		}{
			{"reddit.com", true},
			{"old.reddit.com", true},
			{"www.youtube.com", true},
			{"m.youtube.com", true},
			{"notreddit.com", false},
			{"example.com", false},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.host); got != tc.blocked {
				t.Fatalf("host %q blocked=%v, want %v", tc.host, got, tc.blocked)
			}
		}
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		t.Parallel()
		bl := NewDomainBlocklist([]string{"*.gov.au", ".edu"})
		cases := []struct {
			host    string
			blocked bool
		}{
			{"health.gov.au", true},
			{"gov.au", true},
			{"uni.edu", true},
			{"shop.com.au", false},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.host); got != tc.blocked {
				t.Fatalf("host %q blocked=%v, want %v", tc.host, got, tc.blocked)
			}
		}
	})

	t.Run("url helper", func(t *testing.T) {
		t.Parallel()
		bl := NewDomainBlocklist([]string{"wikipedia.org"})
		if !bl.IsBlockedURL("https://en.wikipedia.org/wiki/Sticker") {
			t.Fatalf("expected wikipedia article to be blocked")
		}
		if bl.IsBlockedURL("https://www.stickershop.com.au/bumper") {
			t.Fatalf("did not expect shop to be blocked")
		}
	})

	t.Run("empty and nil", func(t *testing.T) {
		t.Parallel()
		if NewDomainBlocklist([]string{" ", ""}) != nil {
			t.Fatalf("expected nil blocklist for blank entries")
		}
		var bl *DomainBlocklist
		if bl.IsBlocked("anything") {
			t.Fatalf("nil blocklist should never block")
		}
	})
}
