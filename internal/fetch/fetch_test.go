package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const issuePage = `<html><head><title>Issue</title><style>body{}</style></head>
<body>
  <nav>Home</nav>
  <main>
    <h1>AI News</h1>
    <p>OpenAI &amp; Anthropic   shipped</p><p>new models.</p>
    <script>var x = "ignored";</script>
  </main>
  <footer>footer</footer>
</body></html>`

func TestReadableText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"main wins", issuePage, "AI News OpenAI & Anthropic shipped new models."},
		{"article fallback", `<body><div>nav</div><article><p>Story</p></article></body>`, "Story"},
		{"body fallback", `<body><p>One</p><noscript>no</noscript><p>Two</p></body>`, "One Two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadableText(tt.html)
			if err != nil {
				t.Fatalf("ReadableText failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadableText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText("<p>Bank <b>AI</b></p>\n<p>rollout</p>"); got != "Bank AI rollout" {
		t.Errorf("PlainText() = %q", got)
	}
	if got := PlainText("  plain   text "); got != "plain text" {
		t.Errorf("PlainText() = %q", got)
	}
}

func TestIssueLinks(t *testing.T) {
	html := `<body>
	<a href="https://news.smol.ai/issues/26-10-19-agents">Today</a>
	<a href="/issues/26-10-18-Models/">Yesterday</a>
	<a href="https://news.smol.ai/issues/26-10-19-agents#top">Dup</a>
	<a href="https://news.smol.ai/issues">Index</a>
	<a href="https://news.smol.ai/issues/a/b">Nested</a>
	<a href="https://other.com/issues/x">Other</a>
	</body>`

	got, err := IssueLinks(html, "https://news.smol.ai/issues")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"https://news.smol.ai/issues/26-10-19-agents",
		"https://news.smol.ai/issues/26-10-18-models",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("IssueLinks() = %v, want %v", got, want)
	}
}

func TestIssueLinks_ScriptFallback(t *testing.T) {
	html := `<body><script>window.data={"u":"https://news.smol.ai/issues/26-10-19-x","v":"https://NEWS.smol.ai/issues/26-10-18-y"}</script></body>`

	got, err := IssueLinks(html, "https://news.smol.ai/issues/")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "https://news.smol.ai/issues/26-10-18-y" {
		t.Errorf("IssueLinks() = %v", got)
	}
}

func TestFetcher_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(issuePage))
	}))
	defer server.Close()

	f := NewFetcher(WithUserAgent("test-agent"))

	text, err := f.ReadableText(context.Background(), server.URL+"/issue", 7)
	if err != nil {
		t.Fatalf("ReadableText failed: %v", err)
	}
	if text != "AI News" {
		t.Errorf("truncated text = %q", text)
	}

	if _, err := f.Get(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}
