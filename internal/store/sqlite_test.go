package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/streamkit/memstore/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustStore(t *testing.T, s *SQLiteStore, e *model.Entry) string {
	t.Helper()
	id, err := s.Store(context.Background(), e)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return id
}

func TestStoreAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entry := &model.Entry{
		Type:       model.TypeFact,
		Content:    "Yuki is building a castle in minecraft",
		UserName:   "yuki",
		Importance: model.ImportanceHigh,
	}
	id := mustStore(t, s, entry)
	if id == "" {
		t.Fatal("expected non-empty id")
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected timestamp to be assigned")
	}
	if len(entry.Keywords) == 0 {
		t.Error("expected keywords extracted from content")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != entry.Content {
		t.Errorf("expected content %q, got %q", entry.Content, got.Content)
	}
	if got.UserName != "yuki" {
		t.Errorf("expected user yuki, got %q", got.UserName)
	}

	// Access count is bumped after the read, verify with a second get.
	got2, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got2.AccessCount != 1 {
		t.Errorf("expected access_count 1 after second get, got %d", got2.AccessCount)
	}
	if got2.LastAccessed == nil {
		t.Error("expected last_accessed to be set")
	}
}

func TestStoreDefaults(t *testing.T) {
	s := newTestStore(t)

	entry := &model.Entry{Content: "remembers defaults"}
	mustStore(t, s, entry)

	if entry.Type != model.TypeConversation {
		t.Errorf("expected default type conversation, got %q", entry.Type)
	}
	if entry.Importance != model.ImportanceMedium {
		t.Errorf("expected default importance medium, got %q", entry.Importance)
	}
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cases := []struct {
		name  string
		entry model.Entry
	}{
		{"empty content", model.Entry{Content: "   "}},
		{"unknown type", model.Entry{Content: "hi there friend", Type: "episodic"}},
		{"unknown importance", model.Entry{Content: "hi there friend", Importance: "urgent"}},
		{"stopword-only content", model.Entry{Content: "the is of and"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := tc.entry
			if _, err := s.Store(ctx, &e); !errors.Is(err, model.ErrInvalidEntry) {
				t.Errorf("expected ErrInvalidEntry, got %v", err)
			}
		})
	}

	// Nothing was persisted.
	recent, err := s.Recent(ctx, 10, "")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("expected empty store, got %d entries", len(recent))
	}
}

func TestSuppliedKeywordsRescueContent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entry := &model.Entry{
		Content:  "the and of",
		Keywords: []string{"minecraft"},
	}
	id := mustStore(t, s, entry)

	results, err := s.Search(ctx, SearchParams{Query: "minecraft"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected entry found via supplied keyword, got %v", results)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := mustStore(t, s, &model.Entry{Content: "delete me soon please"})

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Index no longer matches it.
	results, err := s.Search(ctx, SearchParams{Query: "delete"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}

	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSearchOrdersByMatchCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	one := mustStore(t, s, &model.Entry{Content: "minecraft stream tonight"})
	two := mustStore(t, s, &model.Entry{Content: "building a castle in minecraft survival"})
	mustStore(t, s, &model.Entry{Content: "cooking pasta for dinner"})

	results, err := s.Search(ctx, SearchParams{Query: "minecraft castle survival"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != two {
		t.Errorf("expected 3-token match first, got %s", results[0].ID)
	}
	if results[1].ID != one {
		t.Errorf("expected 1-token match second, got %s", results[1].ID)
	}
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	yuki := mustStore(t, s, &model.Entry{
		Content: "yuki loves minecraft builds", UserName: "yuki", Type: model.TypeFact,
	})
	mustStore(t, s, &model.Entry{
		Content: "ren played minecraft once", UserName: "ren", Type: model.TypeConversation,
	})

	results, err := s.Search(ctx, SearchParams{Query: "minecraft", UserName: "yuki"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != yuki {
		t.Fatalf("expected only yuki's entry, got %v", results)
	}

	results, err = s.Search(ctx, SearchParams{Query: "minecraft", Type: model.TypeFact})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != yuki {
		t.Fatalf("expected only fact entry, got %v", results)
	}
}

func TestSearchTouchesOnlyReturned(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	top := mustStore(t, s, &model.Entry{Content: "minecraft castle survival build"})
	other := mustStore(t, s, &model.Entry{Content: "minecraft mention here somewhere"})

	results, err := s.Search(ctx, SearchParams{Query: "minecraft castle survival", Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != top {
		t.Fatalf("expected top match only, got %v", results)
	}

	var topCount, otherCount int
	if err := s.db.QueryRow(`SELECT access_count FROM memories WHERE id = ?`, top).Scan(&topCount); err != nil {
		t.Fatalf("query: %v", err)
	}
	if err := s.db.QueryRow(`SELECT access_count FROM memories WHERE id = ?`, other).Scan(&otherCount); err != nil {
		t.Fatalf("query: %v", err)
	}
	if topCount != 1 {
		t.Errorf("expected returned entry access_count 1, got %d", topCount)
	}
	if otherCount != 0 {
		t.Errorf("expected filtered-out entry access_count 0, got %d", otherCount)
	}
}

func TestSearchCandidateCeilingDropsOldest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i <= maxSearchCandidates; i++ {
		mustStore(t, s, &model.Entry{
			ID:        fmt.Sprintf("%03d", i),
			Content:   "minecraft session log",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	results, err := s.Search(ctx, SearchParams{Query: "minecraft", Limit: maxSearchCandidates + 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != maxSearchCandidates {
		t.Fatalf("expected %d results at the ceiling, got %d", maxSearchCandidates, len(results))
	}
	for _, e := range results {
		if e.ID == "000" {
			t.Fatal("expected the oldest tied candidate to be trimmed, found 000")
		}
	}
	if results[0].ID != "200" {
		t.Errorf("expected newest entry first, got %s", results[0].ID)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustStore(t, s, &model.Entry{Content: "minecraft stream tonight"})

	results, err := s.Search(ctx, SearchParams{Query: "the of and"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for tokenless query, got %d", len(results))
	}
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	mustStore(t, s, &model.Entry{Content: "oldest memory here", Timestamp: base})
	mid := mustStore(t, s, &model.Entry{Content: "middle memory here", Timestamp: base.Add(time.Minute), Type: model.TypeFact})
	newest := mustStore(t, s, &model.Entry{Content: "newest memory here", Timestamp: base.Add(2 * time.Minute)})

	entries, err := s.Recent(ctx, 2, "")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != newest || entries[1].ID != mid {
		t.Errorf("expected newest first, got %s then %s", entries[0].ID, entries[1].ID)
	}

	facts, err := s.Recent(ctx, 10, model.TypeFact)
	if err != nil {
		t.Fatalf("recent facts: %v", err)
	}
	if len(facts) != 1 || facts[0].ID != mid {
		t.Fatalf("expected only the fact entry, got %v", facts)
	}
}

func TestByUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	first := mustStore(t, s, &model.Entry{Content: "yuki first message", UserName: "yuki", Timestamp: base})
	second := mustStore(t, s, &model.Entry{Content: "yuki second message", UserName: "yuki", Timestamp: base.Add(time.Minute)})
	mustStore(t, s, &model.Entry{Content: "ren only message", UserName: "ren", Timestamp: base})

	entries, err := s.ByUser(ctx, "yuki", 10)
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != second || entries[1].ID != first {
		t.Errorf("expected newest first, got %s then %s", entries[0].ID, entries[1].ID)
	}
}

func TestIndexRebuiltOnReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	id := mustStore(t, s, &model.Entry{Content: "minecraft castle build progress"})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	results, err := s2.Search(ctx, SearchParams{Query: "castle"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected entry found after reopen, got %v", results)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)

	mustStore(t, src, &model.Entry{Content: "first exported memory", UserName: "yuki"})
	mustStore(t, src, &model.Entry{Content: "second exported memory"})

	entries, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	dst := newTestStore(t)
	imported, err := dst.Import(ctx, entries)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported != 2 {
		t.Errorf("expected 2 imported, got %d", imported)
	}

	// Ids survive the round trip and the index covers imported entries.
	got, err := dst.Get(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("get imported: %v", err)
	}
	if got.Content != entries[0].Content {
		t.Errorf("expected content %q, got %q", entries[0].Content, got.Content)
	}
	results, err := dst.Search(ctx, SearchParams{Query: "exported"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 search results after import, got %d", len(results))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustStore(t, s, &model.Entry{Content: "a conversation memory here"})
	mustStore(t, s, &model.Entry{Content: "a stored fact right here", Type: model.TypeFact})
	if _, err := s.UpsertProfile(ctx, UpsertProfileParams{UserName: "yuki"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.TotalEntries)
	}
	if stats.TotalUsers != 1 {
		t.Errorf("expected 1 user, got %d", stats.TotalUsers)
	}
	if stats.EntriesByType["conversation"] != 1 || stats.EntriesByType["fact"] != 1 {
		t.Errorf("unexpected type breakdown: %v", stats.EntriesByType)
	}
	if stats.IndexedTokens == 0 {
		t.Error("expected indexed tokens > 0")
	}
	if stats.OldestTimestamp == nil || stats.NewestTimestamp == nil {
		t.Error("expected timestamp range to be set")
	}
}
