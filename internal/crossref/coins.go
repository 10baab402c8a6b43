package crossref

import (
	"net/url"
	"strings"
)

// ParseCoins decodes a COinS citation blob such as
//
//	rft.aulast=Solberg&amp;rft.au=Winton+U.+Solberg&amp;rft.au=Roger+L.+Geiger
//
// into single-valued slugs keyed without the "rft." prefix, plus the
// repeated "au" values collected in order.
func ParseCoins(coins string) (slugs map[string]string, authors []string) {
	slugs = make(map[string]string)
	coins = strings.ReplaceAll(coins, "&amp;", "&")

	for _, part := range strings.Split(coins, "&") {
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimPrefix(strings.TrimSpace(key), "rft.")
		if !ok || key == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		value = strings.TrimSpace(value)

		if key == "au" {
			if value != "" {
				authors = append(authors, value)
			}
			continue
		}
		slugs[key] = value
	}
	return slugs, authors
}
