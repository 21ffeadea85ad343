package adslot

import (
	"sort"
	"strings"
)

// Format is the kind of creative an ad unit requests.
type Format int

const (
	FormatBanner Format = iota + 1
	FormatInterstitial
	FormatVideo
	FormatNative
)

func (f Format) String() string {
	switch f {
	case FormatBanner:
		return "banner"
	case FormatInterstitial:
		return "interstitial"
	case FormatVideo:
		return "video"
	case FormatNative:
		return "native"
	default:
		return "unknown"
	}
}

// Valid reports whether f is one of the declared formats.
func (f Format) Valid() bool {
	return f >= FormatBanner && f <= FormatNative
}

// ParseFormat maps a configuration string to a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "banner":
		return FormatBanner, true
	case "interstitial":
		return FormatInterstitial, true
	case "video":
		return FormatVideo, true
	case "native":
		return FormatNative, true
	}
	return 0, false
}

// FormatSet is the set of formats an ad unit reports.
type FormatSet map[Format]struct{}

// NewFormatSet builds a set holding formats.
func NewFormatSet(formats ...Format) FormatSet {
	set := make(FormatSet, len(formats))
	for _, f := range formats {
		set[f] = struct{}{}
	}
	return set
}

func (s FormatSet) Contains(f Format) bool {
	_, ok := s[f]
	return ok
}

// Slice returns the formats in declaration order.
func (s FormatSet) Slice() []Format {
	out := make([]Format, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s FormatSet) clone() FormatSet {
	out := make(FormatSet, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	return out
}
