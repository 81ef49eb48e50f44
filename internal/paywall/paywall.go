// Package paywall flags URLs that belong to known subscription-only publishers.
package paywall

import (
	"strings"

	"meridian/internal/links"
)

// Domains is the deny-list of paywalled publishers. A host matches when it
// equals an entry or is a subdomain of it.
var Domains = []string{
	"ft.com",
	"wsj.com",
	"bloomberg.com",
	"theinformation.com",
	"americanbanker.com",
	"economist.com",
	"barrons.com",
	"seekingalpha.com",
	"hbr.org",
	"thetimes.co.uk",
	"telegraph.co.uk",
	"businessinsider.com",
	"insider.com",
	"nytimes.com",
	"washingtonpost.com",
	"theathletic.com",
	"morningstar.com",
	"tearsheet.co",
	"fortune.com",
	"cnbc.com",
	"thebanker.com",
	"globalcapital.com",
	"risk.net",
	"euromoney.com",
}

// IsPaywalled reports whether rawURL points at a paywalled publisher.
// Unparseable input is treated as not paywalled.
func IsPaywalled(rawURL string) bool {
	host, err := links.Hostname(rawURL)
	if err != nil {
		return false
	}
	for _, domain := range Domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
