package fraud

import (
	"regexp"
	"strings"
)

// knownBotPattern matches user agents of crawlers, scrapers, HTTP client
// libraries, and headless browsers. A match classifies the hit as a bot
// outright, independent of the accumulated score.
var knownBotPattern = regexp.MustCompile(`(?i)bot|crawl|spider|scrape|slurp|curl|wget|python|java|go-http-client|okhttp|httpclient|headless|phantomjs|puppeteer|playwright|selenium|facebookexternalhit|bingpreview|yandex|baidu|duckduck|whatsapp|telegram|lighthouse`)

// isKnownBotUA reports whether the user agent matches the bot list.
func isKnownBotUA(ua string) bool {
	return ua != "" && knownBotPattern.MatchString(ua)
}

// isSuspiciousUA flags user agents that are odd but not definitively bots.
func isSuspiciousUA(ua string) bool {
	if ua == "" || ua == "-" {
		return true
	}
	return strings.Contains(strings.ToLower(ua), "test")
}

// datacenterPrefixes are literal prefixes of well-known cloud and
// datacenter ranges (AWS, GCP, Azure, crawler farms). A coarse signal,
// not an ASN database.
var datacenterPrefixes = []string{
	"3.", "13.", "18.", "34.", "35.", "52.", "54.",
	"20.36.", "40.74.", "40.76.", "40.77.",
	"64.233.", "66.102.", "66.249.",
	"104.196.", "107.20.", "142.250.", "157.55.", "207.46.",
}

// isDatacenterIP reports whether the IP starts with a known cloud prefix.
func isDatacenterIP(ip string) bool {
	for _, prefix := range datacenterPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}
