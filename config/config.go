package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/spf13/viper"
)

// Configuration holds the process-wide settings shared by every ad unit. It replaces the SDK's
// global account id: it is built once at startup and handed to each ad unit explicitly.
type Configuration struct {
	AccountID string        `mapstructure:"account_id"`
	Host      string        `mapstructure:"host"`
	TimeoutMS uint64        `mapstructure:"timeout_ms"`
	AppBundle string        `mapstructure:"app_bundle"`
	Test      bool          `mapstructure:"test"`
	Refresh   Refresh       `mapstructure:"refresh"`
	Metrics   Metrics       `mapstructure:"metrics"`
	AdUnits   []AdUnit      `mapstructure:"ad_units"`
	Shutdown  ShutdownDelay `mapstructure:"shutdown"`
}

// Refresh bounds the auto refresh cadence of every ad unit.
type Refresh struct {
	DefaultSeconds int `mapstructure:"default_seconds"`
	MinSeconds     int `mapstructure:"min_seconds"`
	MaxSeconds     int `mapstructure:"max_seconds"`
}

// Limits converts the configured seconds into slot refresh limits.
func (r Refresh) Limits() adslot.RefreshLimits {
	return adslot.RefreshLimits{
		Default: time.Duration(r.DefaultSeconds) * time.Second,
		Min:     time.Duration(r.MinSeconds) * time.Second,
		Max:     time.Duration(r.MaxSeconds) * time.Second,
	}
}

func (r Refresh) validate(errs []error) []error {
	if r.MinSeconds <= 0 {
		errs = append(errs, fmt.Errorf("refresh.min_seconds must be positive. Got %d", r.MinSeconds))
	}
	if r.MaxSeconds < r.MinSeconds {
		errs = append(errs, fmt.Errorf("refresh.max_seconds (%d) must not be less than refresh.min_seconds (%d)", r.MaxSeconds, r.MinSeconds))
	}
	if r.DefaultSeconds < r.MinSeconds || r.DefaultSeconds > r.MaxSeconds {
		errs = append(errs, fmt.Errorf("refresh.default_seconds (%d) must be within [%d, %d]", r.DefaultSeconds, r.MinSeconds, r.MaxSeconds))
	}
	return errs
}

type Metrics struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
	Legacy     LegacyMetrics     `mapstructure:"legacy"`
}

type PrometheusMetrics struct {
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
}

// LegacyMetrics enables the go-metrics registry, periodically dumped to the log.
type LegacyMetrics struct {
	Enabled            bool   `mapstructure:"enabled"`
	Prefix             string `mapstructure:"prefix"`
	LogIntervalSeconds int    `mapstructure:"log_interval_seconds"`
}

func (m Metrics) validate(errs []error) []error {
	if m.Prometheus.Port < 0 || m.Prometheus.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.prometheus.port must be within [0, 65535]. Got %d", m.Prometheus.Port))
	}
	if m.Legacy.Enabled && m.Legacy.LogIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("metrics.legacy.log_interval_seconds must be positive when legacy metrics are enabled. Got %d", m.Legacy.LogIntervalSeconds))
	}
	return errs
}

// AdUnit describes one slot the daemon keeps refreshed.
type AdUnit struct {
	ConfigID       string `mapstructure:"config_id"`
	Format         string `mapstructure:"format"`
	Width          uint   `mapstructure:"width"`
	Height         uint   `mapstructure:"height"`
	RefreshSeconds int    `mapstructure:"refresh_seconds"`
	Position       string `mapstructure:"position"`
}

func (a AdUnit) validate(index int, errs []error) []error {
	if strings.TrimSpace(a.ConfigID) == "" {
		errs = append(errs, fmt.Errorf("ad_units[%d].config_id must not be empty", index))
	}
	if _, ok := adslot.ParseFormat(a.Format); !ok {
		errs = append(errs, fmt.Errorf("ad_units[%d].format %q is not one of banner, interstitial, video, native", index, a.Format))
	}
	if a.Width == 0 || a.Height == 0 {
		errs = append(errs, fmt.Errorf("ad_units[%d] needs a non-zero width and height", index))
	}
	if a.RefreshSeconds < 0 {
		errs = append(errs, fmt.Errorf("ad_units[%d].refresh_seconds must not be negative", index))
	}
	return errs
}

// ShutdownDelay is how long main waits for in-flight fetches after destroying ad units.
type ShutdownDelay struct {
	GraceMS int `mapstructure:"grace_ms"`
}

// Timeout returns the bid request timeout.
func (cfg *Configuration) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMS) * time.Millisecond
}

func (cfg *Configuration) validate() []error {
	var errs []error
	if strings.TrimSpace(cfg.AccountID) == "" {
		errs = append(errs, errors.New("account_id must not be empty"))
	}
	if cfg.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	} else if u, err := url.Parse(cfg.Host); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("host %q must be an absolute http(s) url", cfg.Host))
	}
	if cfg.TimeoutMS == 0 {
		errs = append(errs, errors.New("timeout_ms must be positive"))
	}
	errs = cfg.Refresh.validate(errs)
	errs = cfg.Metrics.validate(errs)
	for i, unit := range cfg.AdUnits {
		errs = unit.validate(i, errs)
	}
	return errs
}

// New uses viper to get our configuration
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	if errs := c.validate(); len(errs) > 0 {
		return &c, errortypes.NewAggregateErrors("validation errors", errs)
	}

	return &c, nil
}

// SetupViper registers the defaults and the environment bindings. When filename is not empty the
// matching file is looked up in the working directory and /etc/config.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("account_id", "")
	v.SetDefault("host", "https://prebid-server.rubiconproject.com/openrtb2/auction")
	v.SetDefault("timeout_ms", 2000)
	v.SetDefault("app_bundle", "")
	v.SetDefault("test", false)
	v.SetDefault("refresh.default_seconds", 30)
	v.SetDefault("refresh.min_seconds", 30)
	v.SetDefault("refresh.max_seconds", 120)
	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "prebid_mobile")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.legacy.enabled", false)
	v.SetDefault("metrics.legacy.prefix", "prebidmobile.")
	v.SetDefault("metrics.legacy.log_interval_seconds", 60)
	v.SetDefault("shutdown.grace_ms", 500)
	v.SetDefault("ad_units", []AdUnit{})

	v.SetEnvPrefix("PBM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.ReadInConfig()
	}
}
