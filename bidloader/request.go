package bidloader

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/prebid/prebid-mobile-go/util/ptrutil"
	"github.com/prebid/prebid-mobile-go/util/uuidutil"
)

var videoMIMEs = []string{"video/mp4", "video/3gpp", "video/webm", "video/mkv"}

const nativeRequestTemplate = `{"ver":"1.2","context":2,"plcmttype":1,"assets":[{"id":1,"required":1,"title":{"len":90}},{"id":2,"required":1,"img":{"type":3,"wmin":100,"hmin":100}},{"id":3,"required":0,"data":{"type":2,"len":90}}]}`

type storedRequestExt struct {
	Prebid struct {
		StoredRequest struct {
			ID string `json:"id"`
		} `json:"storedrequest"`
	} `json:"prebid"`
}

type requestExt struct {
	Prebid struct {
		StoredRequest struct {
			ID string `json:"id"`
		} `json:"storedrequest"`
		Targeting struct{} `json:"targeting"`
		Cache     struct {
			Bids struct{} `json:"bids"`
		} `json:"cache"`
	} `json:"prebid"`
}

// buildBidRequest turns a slot configuration into a single-imp OpenRTB request. The slot's config
// id selects the stored imp on the server; the account id selects the stored request.
func buildBidRequest(slot *adslot.Configuration, accountID, appBundle string, test bool, timeout time.Duration, ids uuidutil.UUIDGenerator) (*openrtb2.BidRequest, error) {
	if !slot.Configured() {
		return nil, &errortypes.InvalidConfig{Message: "cannot build a bid request for an unconfigured slot"}
	}

	requestID, err := ids.Generate()
	if err != nil {
		return nil, &errortypes.FetchFailure{Message: fmt.Sprintf("failed to generate request id: %v", err)}
	}
	impID, err := ids.Generate()
	if err != nil {
		return nil, &errortypes.FetchFailure{Message: fmt.Sprintf("failed to generate imp id: %v", err)}
	}

	imp := openrtb2.Imp{
		ID:     impID,
		Secure: ptrutil.ToPtr[int8](1),
	}

	var impExt storedRequestExt
	impExt.Prebid.StoredRequest.ID = slot.ConfigID()
	if imp.Ext, err = json.Marshal(impExt); err != nil {
		return nil, &errortypes.FetchFailure{Message: fmt.Sprintf("failed to marshal imp ext: %v", err)}
	}

	formats := slot.Formats()
	if formats.Contains(adslot.FormatBanner) || formats.Contains(adslot.FormatInterstitial) {
		imp.Banner = &openrtb2.Banner{
			Format: toOpenRTBFormats(slot.Sizes()),
			Pos:    slot.Position().OpenRTB(),
		}
	}
	if formats.Contains(adslot.FormatInterstitial) {
		imp.Instl = 1
	}
	if formats.Contains(adslot.FormatVideo) {
		imp.Video = &openrtb2.Video{
			MIMEs: videoMIMEs,
			Pos:   slot.Position().OpenRTB(),
		}
	}
	if formats.Contains(adslot.FormatNative) {
		imp.Native = &openrtb2.Native{
			Request: nativeRequestTemplate,
			Ver:     "1.2",
		}
	}

	bidRequest := &openrtb2.BidRequest{
		ID:   requestID,
		Imp:  []openrtb2.Imp{imp},
		TMax: timeout.Milliseconds(),
		App: &openrtb2.App{
			Bundle:    appBundle,
			Publisher: &openrtb2.Publisher{ID: accountID},
		},
	}
	if test {
		bidRequest.Test = 1
	}

	var reqExt requestExt
	reqExt.Prebid.StoredRequest.ID = accountID
	if bidRequest.Ext, err = json.Marshal(reqExt); err != nil {
		return nil, &errortypes.FetchFailure{Message: fmt.Sprintf("failed to marshal request ext: %v", err)}
	}

	return bidRequest, nil
}

func toOpenRTBFormats(sizes []adslot.Size) []openrtb2.Format {
	formats := make([]openrtb2.Format, 0, len(sizes))
	for _, s := range sizes {
		formats = append(formats, openrtb2.Format{W: int64(s.Width), H: int64(s.Height)})
	}
	return formats
}
