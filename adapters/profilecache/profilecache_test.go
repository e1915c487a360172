package profilecache

import (
	"context"
	"testing"

	"github.com/nugget/nostrgraph/signal"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("", 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestObserveAndFindByName(t *testing.T) {
	c := newTestCache(t)
	c.Observe(signal.Event{
		Pubkey:    "ABCDEF",
		Kind:      0,
		CreatedAt: 100,
		Content:   `{"display_name":"Alice Example"}`,
	})

	got, err := c.FindPubkeysByName(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindPubkeysByName: %v", err)
	}
	if len(got) != 1 || got[0] != "abcdef" {
		t.Fatalf("want [abcdef], got %v", got)
	}
}

func TestObserveIgnoresNonProfileKinds(t *testing.T) {
	c := newTestCache(t)
	c.Observe(signal.Event{Pubkey: "abc", Kind: 1, Content: `{"display_name":"x"}`})

	got, err := c.FindPubkeysByName(context.Background(), "x")
	if err != nil {
		t.Fatalf("FindPubkeysByName: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches for a non-profile event, got %v", got)
	}
}

func TestObserveUpdatesExistingProfile(t *testing.T) {
	c := newTestCache(t)
	c.Observe(signal.Event{Pubkey: "abc", Kind: 0, CreatedAt: 1, Content: `{"display_name":"Old Name"}`})
	c.Observe(signal.Event{Pubkey: "abc", Kind: 0, CreatedAt: 2, Content: `{"display_name":"New Name"}`})

	got, err := c.FindPubkeysByName(context.Background(), "new")
	if err != nil {
		t.Fatalf("FindPubkeysByName: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one updated profile, got %v", got)
	}

	got, err = c.FindPubkeysByName(context.Background(), "old")
	if err != nil {
		t.Fatalf("FindPubkeysByName: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected the old name to no longer match, got %v", got)
	}
}

func TestEvictionBoundsRowCount(t *testing.T) {
	c, err := Open("", 2, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	c.Observe(signal.Event{Pubkey: "a", Kind: 0, CreatedAt: 1, Content: `{"display_name":"a"}`})
	c.Observe(signal.Event{Pubkey: "b", Kind: 0, CreatedAt: 2, Content: `{"display_name":"b"}`})
	c.Observe(signal.Event{Pubkey: "c", Kind: 0, CreatedAt: 3, Content: `{"display_name":"c"}`})

	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 2 {
		t.Fatalf("want bounded row count 2, got %d", count)
	}
}
