package domains

import (
	"math"
	"regexp"
	"strings"

	"github.com/pagelens/pagelens/pkg/defaults"
)

// Weights are the additive factors of the domain risk score. The score is
// a triage heuristic, not a calibrated model; the defaults are kept stable
// so scores stay reproducible across releases.
type Weights struct {
	ThirdParty         float64 `yaml:"third_party" json:"third_party"`
	Insecure           float64 `yaml:"insecure" json:"insecure"`
	Advertising        float64 `yaml:"advertising" json:"advertising"`
	Analytics          float64 `yaml:"analytics" json:"analytics"`
	Social             float64 `yaml:"social" json:"social"`
	ExposedDevelopment float64 `yaml:"exposed_development" json:"exposed_development"`
	Security           float64 `yaml:"security" json:"security"`
	Payment            float64 `yaml:"payment" json:"payment"`
	LoopbackLiteral    float64 `yaml:"loopback_literal" json:"loopback_literal"`
	SuspiciousShape    float64 `yaml:"suspicious_shape" json:"suspicious_shape"`
}

// DefaultWeights returns the stock weights.
func DefaultWeights() Weights {
	return Weights{
		ThirdParty:         2,
		Insecure:           3,
		Advertising:        2,
		Analytics:          1,
		Social:             1,
		ExposedDevelopment: 3,
		Security:           -1,
		Payment:            -1,
		LoopbackLiteral:    2,
		SuspiciousShape:    2,
	}
}

var (
	ipv4LiteralRe  = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)
	longDotComRe   = regexp.MustCompile(`[a-z]{10,}\.com`)
	digitRunRe     = regexp.MustCompile(`\d{4,}`)
	hyphenLabelLen = 20
)

// suspiciousShape reports hostnames that look generated or raw.
func suspiciousShape(host string) bool {
	if ipv4LiteralRe.MatchString(host) || longDotComRe.MatchString(host) || digitRunRe.MatchString(host) {
		return true
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) >= hyphenLabelLen && strings.Contains(label, "-") {
			return true
		}
	}
	return false
}

// score computes the clamped, rounded risk score.
func (w Weights) score(host string, local, secure bool, cats []Category) int {
	s := 0.0
	if !local {
		s += w.ThirdParty
	}
	if !secure {
		s += w.Insecure
	}
	for _, c := range cats {
		switch c {
		case CategoryAdvertising:
			s += w.Advertising
		case CategoryAnalytics:
			s += w.Analytics
		case CategorySocial:
			s += w.Social
		case CategoryDevelopment:
			if !local {
				s += w.ExposedDevelopment
			}
		case CategorySecurity:
			s += w.Security
		case CategoryPayment:
			s += w.Payment
		}
	}
	if strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") {
		s += w.LoopbackLiteral
	}
	if suspiciousShape(host) {
		s += w.SuspiciousShape
	}
	return clampScore(s)
}

func clampScore(s float64) int {
	if math.IsNaN(s) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(defaults.RiskMax, s))))
}
