package adunit

import (
	"fmt"
	"strings"

	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/config"
)

func NewBannerAdUnit(deps Dependencies, configID string, size adslot.Size) *AdUnit {
	return newAdUnit(deps, configID, []adslot.Size{size}, adslot.FormatBanner, nil)
}

func NewInterstitialAdUnit(deps Dependencies, configID string, size adslot.Size) *AdUnit {
	return newAdUnit(deps, configID, []adslot.Size{size}, adslot.FormatInterstitial, nil)
}

func NewVideoAdUnit(deps Dependencies, configID string, size adslot.Size) *AdUnit {
	return newAdUnit(deps, configID, []adslot.Size{size}, adslot.FormatVideo, nil)
}

func NewNativeAdUnit(deps Dependencies, configID string, size adslot.Size) *AdUnit {
	return newAdUnit(deps, configID, []adslot.Size{size}, adslot.FormatNative, nil)
}

// NewMediationBannerAdUnit returns a banner unit that passes winning bids to a mediation SDK.
func NewMediationBannerAdUnit(deps Dependencies, configID string, size adslot.Size, mediation MediationUtil) *AdUnit {
	return newAdUnit(deps, configID, []adslot.Size{size}, adslot.FormatBanner, mediation)
}

// NewMediationInterstitialAdUnit returns an interstitial unit that passes winning bids to a
// mediation SDK.
func NewMediationInterstitialAdUnit(deps Dependencies, configID string, size adslot.Size, mediation MediationUtil) *AdUnit {
	return newAdUnit(deps, configID, []adslot.Size{size}, adslot.FormatInterstitial, mediation)
}

// FromConfig builds the unit described by an ad_units entry, with its refresh interval and
// position applied.
func FromConfig(deps Dependencies, entry config.AdUnit) (*AdUnit, error) {
	format, ok := adslot.ParseFormat(entry.Format)
	if !ok {
		return nil, fmt.Errorf("ad unit %s: unknown format %q", entry.ConfigID, entry.Format)
	}
	size := adslot.Size{Width: entry.Width, Height: entry.Height}

	var unit *AdUnit
	switch format {
	case adslot.FormatBanner:
		unit = NewBannerAdUnit(deps, entry.ConfigID, size)
	case adslot.FormatInterstitial:
		unit = NewInterstitialAdUnit(deps, entry.ConfigID, size)
	case adslot.FormatVideo:
		unit = NewVideoAdUnit(deps, entry.ConfigID, size)
	case adslot.FormatNative:
		unit = NewNativeAdUnit(deps, entry.ConfigID, size)
	}
	if unit.State() == StateCreated {
		unit.Destroy()
		return nil, fmt.Errorf("ad unit %s: invalid configuration", entry.ConfigID)
	}

	if entry.RefreshSeconds != 0 {
		if err := unit.SetRefreshInterval(entry.RefreshSeconds); err != nil {
			unit.Destroy()
			return nil, fmt.Errorf("ad unit %s: %w", entry.ConfigID, err)
		}
	}
	if strings.TrimSpace(entry.Position) != "" {
		position := adslot.ParsePosition(entry.Position)
		unit.SetAdPosition(&position)
	}
	return unit, nil
}
