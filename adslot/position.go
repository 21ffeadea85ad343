package adslot

import (
	"strings"

	"github.com/prebid/openrtb/v20/adcom1"
)

// Position is the placement hint sent to the bidding backend. It has no effect on scheduling.
type Position int

// Values other than PositionUndefined match the OpenRTB placement position codes.
const (
	PositionUndefined  Position = -1
	PositionUnknown    Position = 0
	PositionHeader     Position = 4
	PositionFooter     Position = 5
	PositionSidebar    Position = 6
	PositionFullScreen Position = 7
)

func (p Position) String() string {
	switch p {
	case PositionUndefined:
		return "undefined"
	case PositionUnknown:
		return "unknown"
	case PositionHeader:
		return "header"
	case PositionFooter:
		return "footer"
	case PositionSidebar:
		return "sidebar"
	case PositionFullScreen:
		return "fullscreen"
	default:
		return "undefined"
	}
}

// Value returns the integer code of the position.
func (p Position) Value() int {
	return int(p)
}

// OpenRTB returns the position for imp.banner.pos, or nil when the position was never set.
func (p Position) OpenRTB() *adcom1.PlacementPosition {
	if p == PositionUndefined {
		return nil
	}
	pos := adcom1.PlacementPosition(p)
	return &pos
}

// ParsePosition maps a configuration string to a Position. Unrecognised input yields
// PositionUndefined.
func ParsePosition(s string) Position {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unknown":
		return PositionUnknown
	case "header":
		return PositionHeader
	case "footer":
		return PositionFooter
	case "sidebar":
		return PositionSidebar
	case "fullscreen", "full_screen":
		return PositionFullScreen
	default:
		return PositionUndefined
	}
}

// PositionPtr is a convenience for SetPosition call sites.
func PositionPtr(p Position) *Position {
	return &p
}
