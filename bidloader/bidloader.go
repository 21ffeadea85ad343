// Package bidloader defines how an ad unit obtains bids and ships an implementation that calls a
// Prebid Server auction endpoint.
package bidloader

import (
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/prebid/prebid-mobile-go/adslot"
)

// Fetcher loads bids for a slot.
//
// Fetch must not block: the result is delivered to onResult exactly once, from any goroutine,
// including inline before Fetch returns. Cancel aborts the outstanding fetches started through this
// fetcher and is a no-op when nothing is in flight; it must not deliver on the calling goroutine. A
// cancelled fetch may still deliver a (late) result.
type Fetcher interface {
	Fetch(slot *adslot.Configuration, onResult func(Result))
	Cancel()
}

// Response is the winning bid of an auction along with the targeting keywords the ad server needs.
type Response struct {
	ID        string
	Currency  string
	Bid       *openrtb2.Bid
	Targeting map[string]string
	CacheID   string
}

// Price returns the winning bid price, or zero.
func (r *Response) Price() float64 {
	if r == nil || r.Bid == nil {
		return 0
	}
	return r.Bid.Price
}

// Result is either a Response or an error.
type Result struct {
	Response *Response
	Err      error
}

func (r Result) Failed() bool {
	return r.Err != nil
}
