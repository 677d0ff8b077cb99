package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSearchStart Stage = "SEARCH_START"
	StageSiteDone    Stage = "SITE_DONE"
	StageSearchDone  Stage = "SEARCH_DONE"
	StageSearchError Stage = "SEARCH_ERROR"
)

// Outcome summarizes how a single site finished.
type Outcome string

// Site outcomes reported with SITE_DONE.
const (
	OutcomeProducts Outcome = "products"
	OutcomeEmpty    Outcome = "empty"
	OutcomeFailed   Outcome = "failed"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for site fetches.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of a search run.
type Event struct {
	// SearchID identifies the search run using the 16-byte UUID form.
	SearchID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Keyword is set on SEARCH_START.
	Keyword string
	// Site is the host label of a SITE_DONE event.
	Site string
	// URL is the page that was scanned.
	URL string
	// Outcome is required on SITE_DONE.
	Outcome Outcome
	// StatusClass groups the HTTP response code of the fetched page.
	StatusClass StatusClass
	// Rendered is true when the page went through the headless browser.
	Rendered bool
	// Sites is the number of sites found (SEARCH_START) or scanned (SEARCH_DONE).
	Sites int64
	// Products counts new products for a site or the final total for a search.
	Products int64
	// Dur captures site or search latency.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SearchID == [16]byte{} {
		return errors.New("search id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSearchStart:
		if e.Keyword == "" {
			return errors.New("search start requires keyword")
		}
	case StageSearchDone, StageSearchError:
	case StageSiteDone:
		if e.Site == "" {
			return errors.New("site done requires site")
		}
		if e.Outcome == "" {
			return errors.New("site done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Products < 0 || e.Sites < 0 {
		return errors.New("counters must be >= 0")
	}
	return nil
}

// SearchUUID converts the binary search ID to uuid.UUID for repositories.
func (e Event) SearchUUID() uuid.UUID {
	return uuid.UUID(e.SearchID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes. Zero means no response was seen.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
