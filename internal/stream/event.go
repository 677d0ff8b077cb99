// Package stream encodes search events for server-sent-event clients and the
// CLI. Every event is one JSON object whose "type" field sits alongside the
// event data, for example {"type":"status","message":"..."}.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// Type names an event kind.
type Type string

// Event kinds emitted during one search.
const (
	TypeStatus     Type = "status"
	TypeProcessing Type = "processing"
	TypeProducts   Type = "products"
	TypeProgress   Type = "progress"
	TypeComplete   Type = "complete"
	TypeError      Type = "error"
)

// Event pairs a type with its payload struct.
type Event struct {
	Type    Type
	Payload any
}

// MarshalJSON flattens the payload fields next to "type".
func (e Event) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(struct {
		Type Type `json:"type"`
	}{Type: e.Type})
	if err != nil {
		return nil, fmt.Errorf("marshal event type: %w", err)
	}
	if e.Payload == nil {
		return head, nil
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s payload must encode as an object", e.Type)
	}
	if bytes.Equal(body, []byte("{}")) {
		return head, nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// Status carries a human-readable progress message.
type Status struct {
	Message string `json:"message"`
}

// Processing announces that a site has started.
type Processing struct {
	Site       string `json:"site"`
	SiteIndex  int    `json:"siteIndex"`
	TotalSites int    `json:"totalSites"`
}

// Products carries products newly discovered on one site.
type Products struct {
	Site        string            `json:"site"`
	NewProducts []product.Product `json:"newProducts"`
	TotalSoFar  int               `json:"totalSoFar"`
}

// Progress reports how many sites have finished.
type Progress struct {
	Site       string `json:"site"`
	Outcome    string `json:"outcome"`
	Processed  int    `json:"processed"`
	TotalSites int    `json:"totalSites"`
}

// Complete ends a successful search.
type Complete struct {
	SearchID      string            `json:"searchId,omitempty"`
	Keyword       string            `json:"keyword"`
	TotalProducts int               `json:"totalProducts"`
	Products      []product.Product `json:"products"`
}

// Failure ends a search that could not run.
type Failure struct {
	Error string `json:"error"`
}

// StatusEvent builds a status event.
func StatusEvent(message string) Event {
	return Event{Type: TypeStatus, Payload: Status{Message: message}}
}

// ProcessingEvent builds a processing event.
func ProcessingEvent(site string, index, total int) Event {
	return Event{Type: TypeProcessing, Payload: Processing{Site: site, SiteIndex: index, TotalSites: total}}
}

// ProductsEvent builds a products event.
func ProductsEvent(site string, products []product.Product, totalSoFar int) Event {
	if products == nil {
		products = []product.Product{}
	}
	return Event{Type: TypeProducts, Payload: Products{Site: site, NewProducts: products, TotalSoFar: totalSoFar}}
}

// ProgressEvent builds a progress event.
func ProgressEvent(site, outcome string, processed, total int) Event {
	return Event{Type: TypeProgress, Payload: Progress{
		Site:       site,
		Outcome:    outcome,
		Processed:  processed,
		TotalSites: total,
	}}
}

// CompleteEvent builds the terminal success event.
func CompleteEvent(searchID, keyword string, products []product.Product) Event {
	if products == nil {
		products = []product.Product{}
	}
	return Event{Type: TypeComplete, Payload: Complete{
		SearchID:      searchID,
		Keyword:       keyword,
		TotalProducts: len(products),
		Products:      products,
	}}
}

// ErrorEvent builds the terminal failure event.
func ErrorEvent(err error) Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Event{Type: TypeError, Payload: Failure{Error: msg}}
}
