package domains

import (
	"regexp"
	"strings"
)

// Category is a semantic class of host.
type Category string

const (
	CategoryCDN         Category = "cdn"
	CategoryAnalytics   Category = "analytics"
	CategoryAdvertising Category = "advertising"
	CategorySocial      Category = "social"
	CategorySecurity    Category = "security"
	CategoryPayment     Category = "payment"
	CategoryAPI         Category = "api"
	CategoryDevelopment Category = "development"

	// CategoryThirdParty is assigned to non-local hosts no other
	// category matched.
	CategoryThirdParty Category = "thirdParty"
)

// Categories returns the matchable categories in evaluation order.
func Categories() []Category {
	return []Category{
		CategoryCDN,
		CategoryAnalytics,
		CategoryAdvertising,
		CategorySocial,
		CategorySecurity,
		CategoryPayment,
		CategoryAPI,
		CategoryDevelopment,
	}
}

// matcher tests a hostname against literal substrings and patterns.
type matcher struct {
	substrings []string
	patterns   []*regexp.Regexp
}

func (m matcher) match(host string) bool {
	for _, s := range m.substrings {
		if strings.Contains(host, s) {
			return true
		}
	}
	for _, re := range m.patterns {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

var matchers = map[Category]matcher{
	CategoryCDN: {
		substrings: []string{
			"cdn", "cloudfront.net", "akamai", "akamaized.net", "fastly",
			"jsdelivr.net", "unpkg.com", "cdnjs", "bootstrapcdn", "gstatic.com",
			"fonts.googleapis.com", "ajax.googleapis.com", "azureedge.net",
			"edgecastcdn", "stackpathdns", "code.jquery.com", "cloudflare.com",
			"b-cdn.net", "kxcdn.com",
		},
	},
	CategoryAnalytics: {
		substrings: []string{
			"google-analytics.com", "googletagmanager.com", "analytics",
			"segment.io", "segment.com", "mixpanel", "mxpnl.com", "hotjar",
			"amplitude", "heap.io", "heapanalytics", "matomo", "piwik",
			"plausible.io", "clarity.ms", "newrelic", "nr-data.net",
			"fullstory", "statcounter", "chartbeat", "quantserve",
			"scorecardresearch", "mouseflow", "crazyegg",
		},
	},
	CategoryAdvertising: {
		substrings: []string{
			"doubleclick.net", "googlesyndication", "googleadservices",
			"adservice", "adsystem", "adnxs.com", "criteo", "taboola",
			"outbrain", "adroll", "pubmatic", "rubiconproject", "openx.net",
			"moatads", "advertising.com", "adsrvr.org", "smartadserver",
			"bidswitch", "casalemedia",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(^|\.)ads?\.`),
		},
	},
	CategorySocial: {
		substrings: []string{
			"facebook.com", "facebook.net", "fbcdn.net", "twitter.com",
			"twimg.com", "linkedin.com", "licdn.com", "instagram.com",
			"pinterest", "tiktok", "reddit", "snapchat", "youtube.com",
			"ytimg.com", "disqus", "addthis", "sharethis",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(^|\.)x\.com$`),
		},
	},
	CategorySecurity: {
		substrings: []string{
			"recaptcha", "hcaptcha", "challenges.cloudflare.com",
			"sentry.io", "auth0.com", "okta.com", "onelogin", "duosecurity",
			"perimeterx", "imperva", "incapsula", "arkoselabs", "funcaptcha",
			"datadome",
		},
	},
	CategoryPayment: {
		substrings: []string{
			"stripe.com", "stripe.network", "paypal", "braintree",
			"adyen", "squareup.com", "klarna", "checkout.com",
			"authorize.net", "worldpay", "paddle.com", "recurly",
		},
	},
	CategoryAPI: {
		substrings: []string{
			"graphql", "execute-api", "apigateway", "api-gateway",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(^|[.\-])api[.\-0-9]`),
			regexp.MustCompile(`(^|[.\-])rest[.\-]`),
		},
	},
	CategoryDevelopment: {
		substrings: []string{
			"localhost", "127.0.0.1", "ngrok", ".vercel.app", ".netlify.app",
			".herokuapp.com", ".pages.dev", ".glitch.me", ".repl.co",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(^|[.\-])(dev|develop|development|staging|stage|stg|test|testing|qa|uat|sandbox|preview|beta)[.\-0-9]`),
		},
	},
}

// categorize returns every category host matches, in evaluation order.
func categorize(host string) []Category {
	var out []Category
	for _, c := range Categories() {
		if matchers[c].match(host) {
			out = append(out, c)
		}
	}
	return out
}
