package relevance

import (
	"meridian/internal/core"
	"meridian/internal/paywall"
)

// Filter decides whether an item may enter candidate selection.
type Filter interface {
	Apply(item core.NewsItem) bool
	Name() string
}

// FilterFunc is a function that implements the Filter interface
type FilterFunc struct {
	FilterName string
	Fn         func(core.NewsItem) bool
}

func (f FilterFunc) Apply(item core.NewsItem) bool {
	return f.Fn(item)
}

func (f FilterFunc) Name() string {
	return f.FilterName
}

// NotFromSource drops items published by the named source.
func NotFromSource(name string) Filter {
	return FilterFunc{
		FilterName: "not_from_source",
		Fn:         func(item core.NewsItem) bool { return item.SourceName != name },
	}
}

// NotPaywalled drops items hosted by paywalled publishers.
func NotPaywalled() Filter {
	return FilterFunc{
		FilterName: "not_paywalled",
		Fn:         func(item core.NewsItem) bool { return !paywall.IsPaywalled(item.URL) },
	}
}

// NotExcludedURL drops video, podcast and social media pages.
func NotExcludedURL() Filter {
	return FilterFunc{
		FilterName: "not_excluded_url",
		Fn:         func(item core.NewsItem) bool { return !IsExcludedURL(item.URL) },
	}
}

// ApplyFilters keeps items accepted by every filter, preserving order.
func ApplyFilters(items []core.NewsItem, filters ...Filter) []core.NewsItem {
	out := make([]core.NewsItem, 0, len(items))
	for _, item := range items {
		keep := true
		for _, f := range filters {
			if !f.Apply(item) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}
	return out
}
