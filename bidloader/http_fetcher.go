package bidloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/prebid/prebid-mobile-go/logger"
	"github.com/prebid/prebid-mobile-go/util/uuidutil"
	"golang.org/x/net/context/ctxhttp"
)

const cacheIDTargetingKey = "hb_cache_id"

// HTTPFetcher posts an OpenRTB bid request to a Prebid Server auction endpoint.
//
// The endpoint is expected to accept the request built by buildBidRequest and to answer with an
// OpenRTB bid response whose bids carry Prebid targeting in ext.prebid.targeting:
//
//	{
//	  "id": "...",
//	  "seatbid": [{"bid": [{"id": "b1", "impid": "...", "price": 0.5,
//	    "ext": {"prebid": {"targeting": {"hb_pb": "0.50", "hb_cache_id": "..."}}}}]}]
//	}
//
// A 204 response, or one without bids, is reported as errortypes.NoBids.
type HTTPFetcher struct {
	client     *http.Client
	endpoint   string
	accountID  string
	appBundle  string
	test       bool
	timeout    time.Duration
	idProvider uuidutil.UUIDGenerator

	mu       sync.Mutex
	nextID   uint64
	inFlight map[uint64]context.CancelFunc
	wg       sync.WaitGroup
}

// NewHTTPFetcher returns a Fetcher which uses client to call the auction endpoint configured in cfg.
func NewHTTPFetcher(client *http.Client, cfg *config.Configuration, idProvider uuidutil.UUIDGenerator) *HTTPFetcher {
	if idProvider == nil {
		idProvider = uuidutil.UUIDRandomGenerator{}
	}
	logger.Infof("Making http bid fetcher for endpoint %v", cfg.Host)

	return &HTTPFetcher{
		client:     client,
		endpoint:   cfg.Host,
		accountID:  cfg.AccountID,
		appBundle:  cfg.AppBundle,
		test:       cfg.Test,
		timeout:    cfg.Timeout(),
		idProvider: idProvider,
		inFlight:   make(map[uint64]context.CancelFunc),
	}
}

func (f *HTTPFetcher) Fetch(slot *adslot.Configuration, onResult func(Result)) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	snapshot := slot.Clone()

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.inFlight[id] = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		defer f.release(id)

		onResult(f.fetch(ctx, snapshot))
	}()
}

func (f *HTTPFetcher) release(id uint64) {
	f.mu.Lock()
	cancel, ok := f.inFlight[id]
	delete(f.inFlight, id)
	f.mu.Unlock()

	if ok {
		cancel()
	}
}

// Cancel aborts every outstanding fetch started through f. An ad unit cancels on stop, so each unit
// needs its own HTTPFetcher; several fetchers can share one http.Client.
func (f *HTTPFetcher) Cancel() {
	f.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(f.inFlight))
	for _, cancel := range f.inFlight {
		cancels = append(cancels, cancel)
	}
	f.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every fetch started so far has delivered its result.
func (f *HTTPFetcher) Wait() {
	f.wg.Wait()
}

func (f *HTTPFetcher) fetch(ctx context.Context, slot *adslot.Configuration) Result {
	bidRequest, err := buildBidRequest(slot, f.accountID, f.appBundle, f.test, f.timeout, f.idProvider)
	if err != nil {
		return Result{Err: err}
	}

	body, err := json.Marshal(bidRequest)
	if err != nil {
		return Result{Err: &errortypes.FetchFailure{Message: fmt.Sprintf("config %s: failed to marshal bid request: %v", slot.ConfigID(), err)}}
	}

	httpReq, err := http.NewRequest(http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: &errortypes.FetchFailure{Message: fmt.Sprintf("config %s: failed to build http request: %v", slot.ConfigID(), err)}}
	}
	httpReq.Header.Add("Content-Type", "application/json;charset=utf-8")
	httpReq.Header.Add("Accept", "application/json")

	httpResp, err := ctxhttp.Do(ctx, f.client, httpReq)
	if err != nil {
		return Result{Err: classifyTransportError(ctx, slot.ConfigID(), err)}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNoContent {
		return Result{Err: &errortypes.NoBids{Message: fmt.Sprintf("config %s: no bids", slot.ConfigID())}}
	}

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Result{Err: classifyTransportError(ctx, slot.ConfigID(), err)}
	}
	if httpResp.StatusCode != http.StatusOK {
		return Result{Err: &errortypes.FetchFailure{Message: fmt.Sprintf("config %s: unexpected response status %d: %s", slot.ConfigID(), httpResp.StatusCode, truncate(respBytes, 200))}}
	}

	response, err := parseBidResponse(respBytes)
	if err != nil {
		if _, noBids := err.(*errortypes.NoBids); !noBids {
			logger.Warnf("config %s: %v", slot.ConfigID(), err)
		}
		return Result{Err: err}
	}
	return Result{Response: response}
}

func classifyTransportError(ctx context.Context, configID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &errortypes.Timeout{Message: fmt.Sprintf("config %s: bid request timed out: %v", configID, err)}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return &errortypes.FetchFailure{Message: fmt.Sprintf("config %s: bid request cancelled", configID)}
	}
	return &errortypes.FetchFailure{Message: fmt.Sprintf("config %s: error sending the bid request: %v", configID, err)}
}

// parseBidResponse picks the highest priced bid across all seats.
func parseBidResponse(body []byte) (*Response, error) {
	var bidResponse openrtb2.BidResponse
	if err := json.Unmarshal(body, &bidResponse); err != nil {
		return nil, &errortypes.FetchFailure{Message: fmt.Sprintf("failed to unmarshal bid response: %v", err)}
	}

	var winner *openrtb2.Bid
	for i := range bidResponse.SeatBid {
		for j := range bidResponse.SeatBid[i].Bid {
			bid := &bidResponse.SeatBid[i].Bid[j]
			if winner == nil || bid.Price > winner.Price {
				winner = bid
			}
		}
	}
	if winner == nil {
		return nil, &errortypes.NoBids{Message: fmt.Sprintf("bid response %s has no bids", bidResponse.ID)}
	}

	targeting := readTargeting(winner.Ext)
	return &Response{
		ID:        bidResponse.ID,
		Currency:  bidResponse.Cur,
		Bid:       winner,
		Targeting: targeting,
		CacheID:   targeting[cacheIDTargetingKey],
	}, nil
}

func readTargeting(ext json.RawMessage) map[string]string {
	targeting := make(map[string]string)
	if len(ext) == 0 {
		return targeting
	}

	err := jsonparser.ObjectEach(ext, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		if dataType == jsonparser.String {
			if parsed, err := jsonparser.ParseString(value); err == nil {
				targeting[string(key)] = parsed
			}
		}
		return nil
	}, "prebid", "targeting")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		logger.Debugf("ignoring malformed bid targeting: %v", err)
	}
	return targeting
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
