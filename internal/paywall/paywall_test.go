package paywall

import "testing"

func TestIsPaywalled(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.ft.com/content/abc", true},
		{"https://ft.com/content/abc", true},
		{"https://markets.ft.com/data", true},
		{"https://www.americanbanker.com/news/x", true},
		{"https://BLOOMBERG.com/news", true},
		{"https://www.risk.net/a", true},
		{"https://draft.com/page", false},
		{"https://notwsj.com/a", false},
		{"https://www.finextra.com/news/1", false},
		{"https://techcrunch.com/2026/10/19/x", false},
		{"not a url", false},
		{"", false},
		{"://broken", false},
	}

	for _, tt := range tests {
		if got := IsPaywalled(tt.url); got != tt.want {
			t.Errorf("IsPaywalled(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
