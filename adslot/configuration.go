// Package adslot holds the description of a single ad placement: its identity, the sizes and
// formats it accepts, the placement hint and the refresh cadence.
package adslot

import (
	"fmt"
	"strings"
	"time"

	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/prebid/prebid-mobile-go/logger"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	MinRefreshInterval     = 30 * time.Second
	MaxRefreshInterval     = 120 * time.Second
)

// RefreshLimits bounds the refresh interval a slot accepts.
type RefreshLimits struct {
	Default time.Duration
	Min     time.Duration
	Max     time.Duration
}

// DefaultRefreshLimits returns the 30s default with the [30s, 120s] window.
func DefaultRefreshLimits() RefreshLimits {
	return RefreshLimits{
		Default: DefaultRefreshInterval,
		Min:     MinRefreshInterval,
		Max:     MaxRefreshInterval,
	}
}

func (l RefreshLimits) normalize() RefreshLimits {
	if l.Min <= 0 {
		l.Min = MinRefreshInterval
	}
	if l.Max < l.Min {
		l.Max = l.Min
	}
	if l.Default <= 0 {
		l.Default = DefaultRefreshInterval
	}
	l.Default = l.clamp(l.Default)
	return l
}

func (l RefreshLimits) clamp(d time.Duration) time.Duration {
	if d < l.Min {
		return l.Min
	}
	if d > l.Max {
		return l.Max
	}
	return d
}

// Configuration describes one ad slot. It is not safe for concurrent mutation; the owning ad unit
// serializes writes and hands clones to other goroutines.
type Configuration struct {
	configID        string
	sizes           SizeSet
	formats         FormatSet
	fixedFormat     Format
	refreshInterval time.Duration
	limits          RefreshLimits
	position        Position
	accountID       string
	mediation       any
}

// NewConfiguration returns an unconfigured slot with the default refresh interval and an
// undefined position.
func NewConfiguration(limits RefreshLimits) *Configuration {
	limits = limits.normalize()
	return &Configuration{
		formats:         make(FormatSet),
		refreshInterval: limits.Default,
		limits:          limits,
		position:        PositionUndefined,
	}
}

// Configure replaces the config id and the size set. The first format applied becomes the slot's
// fixed format; later calls only add to the format set. Nothing is changed when the input is
// rejected.
func (c *Configuration) Configure(configID string, sizes []Size, format Format) error {
	if strings.TrimSpace(configID) == "" {
		return &errortypes.InvalidConfig{Message: "config id must not be empty"}
	}
	if len(sizes) == 0 {
		return &errortypes.InvalidConfig{Message: fmt.Sprintf("config %s: at least one size is required", configID)}
	}
	if !format.Valid() {
		return &errortypes.InvalidConfig{Message: fmt.Sprintf("config %s: invalid ad format %d", configID, format)}
	}

	c.configID = configID
	c.sizes = NewSizeSet(sizes...)
	if c.fixedFormat == 0 {
		c.fixedFormat = format
	}
	if c.formats == nil {
		c.formats = make(FormatSet)
	}
	c.formats[format] = struct{}{}
	return nil
}

// SetRefreshInterval stores the refresh interval used the next time a scheduler is started for
// this slot. Values outside the limits are clamped; non-positive values are rejected.
func (c *Configuration) SetRefreshInterval(d time.Duration) error {
	if d <= 0 {
		return &errortypes.InvalidConfig{Message: fmt.Sprintf("refresh interval must be positive, got %v", d)}
	}
	clamped := c.limits.clamp(d)
	if clamped != d {
		logger.Warnf("config %s: refresh interval %v is outside [%v, %v], using %v", c.configID, d, c.limits.Min, c.limits.Max, clamped)
	}
	c.refreshInterval = clamped
	return nil
}

// SetPosition stores the placement hint; nil resets it to PositionUndefined.
func (c *Configuration) SetPosition(p *Position) {
	if p == nil {
		c.position = PositionUndefined
		return
	}
	c.position = *p
}

func (c *Configuration) SetAccountID(accountID string) {
	c.accountID = accountID
}

// SetMediation stores the mediation capability handed to the ad unit. It is opaque here.
func (c *Configuration) SetMediation(m any) {
	c.mediation = m
}

func (c *Configuration) ConfigID() string {
	return c.configID
}

// Sizes returns the sizes in insertion order.
func (c *Configuration) Sizes() []Size {
	return c.sizes.Slice()
}

func (c *Configuration) HasSize(s Size) bool {
	return c.sizes.Contains(s)
}

// Formats returns a copy of the format set.
func (c *Configuration) Formats() FormatSet {
	return c.formats.clone()
}

// Format returns the format fixed at first configuration, or 0 before that.
func (c *Configuration) Format() Format {
	return c.fixedFormat
}

func (c *Configuration) RefreshInterval() time.Duration {
	return c.refreshInterval
}

func (c *Configuration) Position() Position {
	return c.position
}

func (c *Configuration) AccountID() string {
	return c.accountID
}

func (c *Configuration) Mediation() any {
	return c.mediation
}

// Configured reports whether Configure has succeeded at least once.
func (c *Configuration) Configured() bool {
	return c.fixedFormat != 0
}

// Clone returns a deep copy.
func (c *Configuration) Clone() *Configuration {
	clone := *c
	clone.sizes = NewSizeSet(c.sizes.Slice()...)
	clone.formats = c.formats.clone()
	return &clone
}
