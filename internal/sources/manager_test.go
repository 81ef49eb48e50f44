package sources

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"meridian/internal/feeds"
	"meridian/internal/persistence"
)

func newTestRepo(t *testing.T) persistence.SourceRepository {
	t.Helper()
	db, err := persistence.NewSQLiteDB(filepath.Join(t.TempDir(), "sources.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := persistence.NewMigrationManager(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db.Sources()
}

type stubFetcher struct {
	err   error
	calls int
}

func (s *stubFetcher) FetchFeed(ctx context.Context, feedURL string) ([]feeds.Entry, error) {
	s.calls++
	return []feeds.Entry{{Title: "x"}}, s.err
}

func TestDefaultSources(t *testing.T) {
	defaults, err := DefaultSources()
	if err != nil {
		t.Fatalf("DefaultSources failed: %v", err)
	}
	if len(defaults) < 10 {
		t.Fatalf("only %d default sources", len(defaults))
	}

	seen := map[string]bool{}
	for _, s := range defaults {
		if s.Name == "" || s.URL == "" || !s.IsActive {
			t.Errorf("incomplete default source: %+v", s)
		}
		if seen[s.URL] {
			t.Errorf("duplicate default url %s", s.URL)
		}
		seen[s.URL] = true
	}
	if defaults[0].Name != "Smol AI Issues" {
		t.Errorf("first default = %q", defaults[0].Name)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	m := NewManager(newTestRepo(t), nil, nil)
	ctx := context.Background()

	added, err := m.Seed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defaults, _ := DefaultSources()
	if added != len(defaults) {
		t.Errorf("added = %d, want %d", added, len(defaults))
	}

	again, err := m.Seed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("second seed added %d", again)
	}
}

func TestAddSource(t *testing.T) {
	fetcher := &stubFetcher{}
	m := NewManager(newTestRepo(t), fetcher, nil)
	ctx := context.Background()

	src, err := m.AddSource(ctx, "", "https://www.example.com/feed")
	if err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if src.Name != "example.com" || !src.IsActive || fetcher.calls != 1 {
		t.Errorf("source = %+v calls = %d", src, fetcher.calls)
	}

	if _, err := m.AddSource(ctx, "Again", "https://www.example.com/feed"); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate error = %v", err)
	}
	if _, err := m.AddSource(ctx, "Bad", "not a url"); err == nil {
		t.Error("expected error for invalid url")
	}

	fetcher.err = errors.New("not a feed")
	if _, err := m.AddSource(ctx, "Broken", "https://broken.example.com/feed"); err == nil {
		t.Error("expected validation error")
	}
}

func TestToggleAndRemove(t *testing.T) {
	m := NewManager(newTestRepo(t), nil, nil)
	ctx := context.Background()

	src, err := m.AddSource(ctx, "Feed", "https://feed.example.com/rss")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ToggleSource(ctx, src.ID, false); err != nil {
		t.Fatal(err)
	}
	active, _ := m.ListSources(ctx, true)
	if len(active) != 0 {
		t.Errorf("active = %+v", active)
	}

	if err := m.RemoveSource(ctx, src.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveSource(ctx, src.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("second remove = %v", err)
	}
}
