package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
	"github.com/blackwell-systems/battdrain/internal/checkin"
)

const (
	configName      = "config"
	configType      = "yaml"
	envPrefix       = "BATTDRAIN"
	envKeySeparator = "_"
)

// DefaultWatchDebounce is how long the watcher waits for a file to settle.
const DefaultWatchDebounce = 2 * time.Second

// Config is the full battdrain configuration.
type Config struct {
	Thresholds ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds"`
	Classify   ClassifyConfig   `mapstructure:"classify" yaml:"classify"`
	Parse      ParseConfig      `mapstructure:"parse" yaml:"parse"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Watch      WatchConfig      `mapstructure:"watch" yaml:"watch"`
}

// ThresholdsConfig holds the scoring thresholds.
type ThresholdsConfig struct {
	SystemUsage     float64 `mapstructure:"system_usage" yaml:"system_usage"`
	ThirdPartyUsage float64 `mapstructure:"third_party_usage" yaml:"third_party_usage"`
	ForegroundRatio float64 `mapstructure:"foreground_ratio" yaml:"foreground_ratio"`
}

// ClassifyConfig controls how app names are classified.
type ClassifyConfig struct {
	Whitelist        []string `mapstructure:"whitelist" yaml:"whitelist"`
	SystemPrefixes   []string `mapstructure:"system_prefixes" yaml:"system_prefixes"`
	ThirdPartyPrefix string   `mapstructure:"third_party_prefix" yaml:"third_party_prefix"`
}

// ParseConfig controls dump decoding.
type ParseConfig struct {
	Encodings []string `mapstructure:"encodings" yaml:"encodings"`
}

// StoreConfig controls report persistence.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// WatchConfig controls the inbox watcher.
type WatchConfig struct {
	Inbox    string        `mapstructure:"inbox" yaml:"inbox"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Load reads configuration from file, environment and defaults. When path is
// empty, config.yaml is searched in the current directory and in Dir().
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Thresholds: ThresholdsConfig{
			SystemUsage:     analyzer.DefaultSystemThreshold,
			ThirdPartyUsage: analyzer.DefaultThirdPartyThreshold,
			ForegroundRatio: analyzer.DefaultRatioThreshold,
		},
		Classify: ClassifyConfig{
			Whitelist:        append([]string(nil), analyzer.DefaultWhitelist...),
			SystemPrefixes:   append([]string(nil), analyzer.DefaultSystemPrefixes...),
			ThirdPartyPrefix: analyzer.DefaultThirdPartyPrefix,
		},
		Parse: ParseConfig{
			Encodings: encodingNames(checkin.DefaultEncodings()),
		},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
	}
}

func applyDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("thresholds.system_usage", d.Thresholds.SystemUsage)
	v.SetDefault("thresholds.third_party_usage", d.Thresholds.ThirdPartyUsage)
	v.SetDefault("thresholds.foreground_ratio", d.Thresholds.ForegroundRatio)

	v.SetDefault("classify.whitelist", d.Classify.Whitelist)
	v.SetDefault("classify.system_prefixes", d.Classify.SystemPrefixes)
	v.SetDefault("classify.third_party_prefix", d.Classify.ThirdPartyPrefix)

	v.SetDefault("parse.encodings", d.Parse.Encodings)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("watch.inbox", d.Watch.Inbox)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// Validate checks thresholds and encoding names.
func (c *Config) Validate() error {
	if err := c.thresholds().Validate(); err != nil {
		return err
	}
	if len(c.Parse.Encodings) == 0 {
		return errors.New("parse.encodings must list at least one encoding")
	}
	if _, err := checkin.LookupEncodings(c.Parse.Encodings); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch.debounce: %s (must be >= 0)", c.Watch.Debounce)
	}
	return nil
}

func (c *Config) thresholds() analyzer.Thresholds {
	return analyzer.Thresholds{
		SystemUsage:     c.Thresholds.SystemUsage,
		ThirdPartyUsage: c.Thresholds.ThirdPartyUsage,
		ForegroundRatio: c.Thresholds.ForegroundRatio,
	}
}

// Scoring converts the configuration to the analyzer's scoring config.
func (c *Config) Scoring() analyzer.Config {
	return analyzer.Config{
		Thresholds: c.thresholds(),
		Classifier: analyzer.NewClassifier(c.Classify.Whitelist, c.Classify.SystemPrefixes, c.Classify.ThirdPartyPrefix),
	}
}

// Encodings resolves the configured encoding names.
func (c *Config) Encodings() ([]checkin.Encoding, error) {
	return checkin.LookupEncodings(c.Parse.Encodings)
}

func encodingNames(encs []checkin.Encoding) []string {
	names := make([]string, len(encs))
	for i, enc := range encs {
		names[i] = enc.Name
	}
	return names
}
