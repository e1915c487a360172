// Package profilecache implements ports.NameLookup as a bounded,
// process-wide SQLite cache of Nostr profile metadata (kind:0 events),
// populated by observing the event stream a RelaySourceNode produces.
// Once the row count exceeds the configured bound, the oldest entries
// by last-seen time are evicted.
package profilecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"

	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
)

// DefaultMaxRows bounds the cache's row count; the oldest profile by
// last-seen time is evicted once this is exceeded.
const DefaultMaxRows = 10000

// Cache is a bounded SQLite-backed ports.NameLookup, kept current by
// Observe as the embedding application forwards kind:0 events from a
// RelaySourceNode's "event" output.
type Cache struct {
	db      *sql.DB
	maxRows int
	logger  *slog.Logger
}

var _ ports.NameLookup = (*Cache)(nil)

// Open creates or opens the cache database at dbPath ("" or ":memory:"
// for an in-process cache) and ensures its schema exists. A nil logger
// defaults to slog.Default(); maxRows<=0 uses DefaultMaxRows.
func Open(dbPath string, maxRows int, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("profilecache: open: %w", err)
	}

	c := &Cache{db: db, maxRows: maxRows, logger: logger}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("profilecache: migrate: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS profiles (
		pubkey TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		last_seen INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_display_name ON profiles(display_name);
	CREATE INDEX IF NOT EXISTS idx_profiles_last_seen ON profiles(last_seen);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

// profileMeta is the subset of a kind:0 event's content this cache
// indexes.
type profileMeta struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// Observe indexes evt if it is a kind:0 metadata event, replacing any
// prior entry for its pubkey. Non-kind:0 events and malformed content
// are silently ignored (§7 "Data" errors never halt the pipeline).
func (c *Cache) Observe(evt signal.Event) {
	if evt.Kind != 0 {
		return
	}
	var meta profileMeta
	if err := json.Unmarshal([]byte(evt.Content), &meta); err != nil {
		c.logger.Debug("profilecache: malformed kind:0 content", "pubkey", evt.Pubkey, "error", err)
		return
	}
	name := meta.DisplayName
	if name == "" {
		name = meta.Name
	}

	if _, err := c.db.Exec(`
		INSERT INTO profiles (pubkey, display_name, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET display_name = excluded.display_name, last_seen = excluded.last_seen
	`, signal.NormalizeHex(evt.Pubkey), name, evt.CreatedAt); err != nil {
		c.logger.Warn("profilecache: insert failed", "error", err)
		return
	}
	c.evictOverflow()
}

// evictOverflow removes the oldest rows once the cache exceeds
// maxRows, keeping the cache's memory and query cost bounded.
func (c *Cache) evictOverflow() {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return
	}
	if count <= c.maxRows {
		return
	}
	excess := count - c.maxRows
	if _, err := c.db.Exec(`
		DELETE FROM profiles WHERE pubkey IN (
			SELECT pubkey FROM profiles ORDER BY last_seen ASC LIMIT ?
		)
	`, excess); err != nil {
		c.logger.Warn("profilecache: eviction failed", "error", err)
		return
	}
	c.logger.Debug("profilecache: evicted overflow rows",
		"evicted", humanize.Comma(int64(excess)), "kept", humanize.Comma(int64(c.maxRows)))
}

// FindPubkeysByName performs a case-insensitive substring match over
// cached profile display names (§6 "NameLookup").
func (c *Cache) FindPubkeysByName(ctx context.Context, needle string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT pubkey FROM profiles WHERE display_name LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY last_seen DESC
	`, needle)
	if err != nil {
		return nil, fmt.Errorf("profilecache: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var pubkey string
		if err := rows.Scan(&pubkey); err != nil {
			return nil, fmt.Errorf("profilecache: scan: %w", err)
		}
		out = append(out, pubkey)
	}
	return out, rows.Err()
}
