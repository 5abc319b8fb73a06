package analyzer

import (
	"fmt"
	"strings"
)

// Default scoring thresholds.
const (
	DefaultSystemThreshold     = 50.0
	DefaultThirdPartyThreshold = 20.0
	DefaultRatioThreshold      = 0.1

	// DefaultThirdPartyPrefix marks package names of non-system origin.
	DefaultThirdPartyPrefix = "com."
)

// DefaultWhitelist lists the hardware and system power consumers that
// batterystats reports under short names. These are never flagged.
var DefaultWhitelist = []string{
	"scrn", "cpu", "blue", "camera", "video", "cell",
	"wifi", "memory", "phone", "ambi", "idle",
	"audio", "flashlight", "sensors", "???",
}

// DefaultSystemPrefixes are package prefixes that suggest a platform or
// vendor system process.
var DefaultSystemPrefixes = []string{"com.android.", "android.", "com.samsung.", "com.sec."}

// Thresholds holds the numeric limits used by the scorer.
type Thresholds struct {
	SystemUsage     float64 // usage limit for non third-party apps
	ThirdPartyUsage float64 // usage limit for third-party apps
	ForegroundRatio float64 // flagged apps must be below this foreground/usage ratio
}

// Validate rejects thresholds that would make scoring meaningless.
func (t Thresholds) Validate() error {
	if t.SystemUsage < 0 {
		return fmt.Errorf("invalid system usage threshold: %v (must be >= 0)", t.SystemUsage)
	}
	if t.ThirdPartyUsage < 0 {
		return fmt.Errorf("invalid third-party usage threshold: %v (must be >= 0)", t.ThirdPartyUsage)
	}
	if t.ForegroundRatio < 0 {
		return fmt.Errorf("invalid foreground ratio threshold: %v (must be >= 0)", t.ForegroundRatio)
	}
	return nil
}

// Classifier decides how an app name is treated by the scorer.
type Classifier struct {
	whitelist        map[string]struct{}
	systemPrefixes   []string
	thirdPartyPrefix string
}

// NewClassifier builds a Classifier from a whitelist of exact names, a list
// of system package prefixes and the third-party naming prefix.
func NewClassifier(whitelist, systemPrefixes []string, thirdPartyPrefix string) Classifier {
	wl := make(map[string]struct{}, len(whitelist))
	for _, name := range whitelist {
		wl[name] = struct{}{}
	}
	prefixes := make([]string, len(systemPrefixes))
	copy(prefixes, systemPrefixes)

	return Classifier{
		whitelist:        wl,
		systemPrefixes:   prefixes,
		thirdPartyPrefix: thirdPartyPrefix,
	}
}

// DefaultClassifier returns the classifier built from the package defaults.
func DefaultClassifier() Classifier {
	return NewClassifier(DefaultWhitelist, DefaultSystemPrefixes, DefaultThirdPartyPrefix)
}

// IsThirdParty reports whether app follows the third-party naming convention.
func (c Classifier) IsThirdParty(app string) bool {
	return c.thirdPartyPrefix != "" && strings.HasPrefix(app, c.thirdPartyPrefix)
}

// IsWhitelisted reports whether app is a known system component by exact
// name. Whitelisted apps are skipped by the scorer.
func (c Classifier) IsWhitelisted(app string) bool {
	_, ok := c.whitelist[app]
	return ok
}

// IsLikelySystem reports whether app is whitelisted or carries a system
// package prefix. It only annotates results and never excludes an app.
func (c Classifier) IsLikelySystem(app string) bool {
	if c.IsWhitelisted(app) {
		return true
	}
	for _, prefix := range c.systemPrefixes {
		if strings.HasPrefix(app, prefix) {
			return true
		}
	}
	return false
}

// Config is the complete scoring configuration.
type Config struct {
	Thresholds Thresholds
	Classifier Classifier
}

// DefaultConfig returns the stock thresholds and classifier.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			SystemUsage:     DefaultSystemThreshold,
			ThirdPartyUsage: DefaultThirdPartyThreshold,
			ForegroundRatio: DefaultRatioThreshold,
		},
		Classifier: DefaultClassifier(),
	}
}
