package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Features is the typed feature-flag set. Flags are read through fields,
// never through dotted string paths.
type Features struct {
	Platforms PlatformFeatures  `mapstructure:"platforms"`
	AI        AIFeatures        `mapstructure:"ai"`
	Analytics AnalyticsFeatures `mapstructure:"analytics"`
	Payments  PaymentFeatures   `mapstructure:"payments"`
}

type PlatformFeatures struct {
	KDP           PlatformFlag `mapstructure:"kdp"`
	Gumroad       PlatformFlag `mapstructure:"gumroad"`
	AppleBooks    PlatformFlag `mapstructure:"apple_books"`
	Draft2Digital PlatformFlag `mapstructure:"draft2digital"`
}

type PlatformFlag struct {
	Enabled   bool `mapstructure:"enabled"`
	CSVImport bool `mapstructure:"csv_import"`
	APISync   bool `mapstructure:"api_sync"`
}

// Enabled reports whether the named platform is switched on.
func (p PlatformFeatures) Enabled(platform string) bool {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "kdp":
		return p.KDP.Enabled
	case "gumroad":
		return p.Gumroad.Enabled
	case "apple_books":
		return p.AppleBooks.Enabled
	case "draft2digital":
		return p.Draft2Digital.Enabled
	default:
		return false
	}
}

type AIFeatures struct {
	// Enabled is derived from provider configuration, not from the file.
	Enabled     bool `mapstructure:"-"`
	Insights    bool `mapstructure:"insights"`
	Pricing     bool `mapstructure:"pricing"`
	Forecasting bool `mapstructure:"forecasting"`
}

type AnalyticsFeatures struct {
	Enabled        bool `mapstructure:"enabled"`
	DetailedCharts bool `mapstructure:"detailed_charts"`
}

type PaymentFeatures struct {
	// Enabled is derived from the Stripe secret key.
	Enabled       bool `mapstructure:"-"`
	Subscriptions bool `mapstructure:"subscriptions"`
}

func DefaultFeatures() Features {
	return Features{
		Platforms: PlatformFeatures{
			KDP:           PlatformFlag{Enabled: true, CSVImport: true},
			Gumroad:       PlatformFlag{Enabled: true, APISync: true},
			AppleBooks:    PlatformFlag{Enabled: false, CSVImport: true},
			Draft2Digital: PlatformFlag{Enabled: false},
		},
		AI: AIFeatures{
			Insights:    true,
			Pricing:     true,
			Forecasting: false,
		},
		Analytics: AnalyticsFeatures{Enabled: true, DetailedCharts: true},
		Payments:  PaymentFeatures{Subscriptions: true},
	}
}

// FeaturesHolder serves the current flag set and swaps it on file changes.
type FeaturesHolder struct {
	current atomic.Value // holds Features

	aiConfigured       bool
	paymentsConfigured bool
}

// NewFeaturesHolder reads features.yml when present and watches it for
// changes. A missing file keeps the defaults.
func NewFeaturesHolder(cfg Config, log *zap.Logger) (*FeaturesHolder, error) {
	v := viper.New()

	v.SetConfigName("features")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/authorstack")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AUTHORSTACK_FEATURES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setFeatureDefaults(v, DefaultFeatures())

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	holder := &FeaturesHolder{
		aiConfigured:       cfg.AI.Configured(),
		paymentsConfigured: cfg.Stripe.SecretKey != "",
	}
	features, err := holder.decode(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(features)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := holder.decode(v)
			if err != nil {
				log.Warn("feature flag reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("feature flags reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// NewStaticFeatures returns a holder that never reloads. Used by tests and
// tools that do not read a flag file.
func NewStaticFeatures(f Features) *FeaturesHolder {
	holder := &FeaturesHolder{
		aiConfigured:       f.AI.Enabled,
		paymentsConfigured: f.Payments.Enabled,
	}
	holder.current.Store(f)
	return holder
}

func (h *FeaturesHolder) Get() Features {
	return h.current.Load().(Features)
}

func (h *FeaturesHolder) decode(v *viper.Viper) (Features, error) {
	var f Features
	if err := v.Unmarshal(&f); err != nil {
		return Features{}, err
	}
	if err := validateFeatures(f); err != nil {
		return Features{}, err
	}
	f.AI.Enabled = h.aiConfigured
	f.Payments.Enabled = h.paymentsConfigured
	return f, nil
}

func validateFeatures(f Features) error {
	p := f.Platforms
	if !p.KDP.Enabled && !p.Gumroad.Enabled && !p.AppleBooks.Enabled && !p.Draft2Digital.Enabled {
		return errors.New("features.platforms: at least one platform must be enabled")
	}
	return nil
}

func setFeatureDefaults(v *viper.Viper, f Features) {
	setPlatform := func(name string, flag PlatformFlag) {
		v.SetDefault("platforms."+name+".enabled", flag.Enabled)
		v.SetDefault("platforms."+name+".csv_import", flag.CSVImport)
		v.SetDefault("platforms."+name+".api_sync", flag.APISync)
	}
	setPlatform("kdp", f.Platforms.KDP)
	setPlatform("gumroad", f.Platforms.Gumroad)
	setPlatform("apple_books", f.Platforms.AppleBooks)
	setPlatform("draft2digital", f.Platforms.Draft2Digital)

	v.SetDefault("ai.insights", f.AI.Insights)
	v.SetDefault("ai.pricing", f.AI.Pricing)
	v.SetDefault("ai.forecasting", f.AI.Forecasting)
	v.SetDefault("analytics.enabled", f.Analytics.Enabled)
	v.SetDefault("analytics.detailed_charts", f.Analytics.DetailedCharts)
	v.SetDefault("payments.subscriptions", f.Payments.Subscriptions)
}
