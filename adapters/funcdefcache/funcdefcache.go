// Package funcdefcache wraps a ports.FunctionResolver with a bounded,
// TTL-expiring SQLite cache keyed by path, so a FunctionNode reload
// does not re-fetch an unchanged definition from GitHub on every
// graph rebuild. Entries older than the configured TTL are treated as
// misses and re-fetched from upstream; once the row count exceeds the
// configured bound, the oldest entries by cache time are evicted.
package funcdefcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/nostrgraph/ports"
)

// DefaultTTL is how long a cached definition is served before the
// underlying resolver is consulted again.
const DefaultTTL = 10 * time.Minute

// DefaultMaxRows bounds the cache's row count.
const DefaultMaxRows = 2000

// Cache wraps an upstream ports.FunctionResolver with a bounded,
// TTL-expiring SQLite-backed cache.
type Cache struct {
	upstream ports.FunctionResolver
	db       *sql.DB
	ttl      time.Duration
	maxRows  int
	logger   *slog.Logger
}

var _ ports.FunctionResolver = (*Cache)(nil)

// cachedDoc is the persisted shape of one cache row's value.
type cachedDoc struct {
	Pubkey        string             `json:"pubkey"`
	InputSockets  []ports.FuncSocket `json:"input_sockets"`
	OutputSockets []ports.FuncSocket `json:"output_sockets"`
	InteriorGraph json.RawMessage    `json:"interior_graph"`
}

// Open creates or opens the cache database at dbPath ("" or ":memory:"
// for an in-process cache) wrapping upstream. ttl<=0 uses DefaultTTL;
// maxRows<=0 uses DefaultMaxRows. A nil logger defaults to
// slog.Default().
func Open(dbPath string, upstream ports.FunctionResolver, ttl time.Duration, maxRows int, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("funcdefcache: open: %w", err)
	}
	c := &Cache{upstream: upstream, db: db, ttl: ttl, maxRows: maxRows, logger: logger}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("funcdefcache: migrate: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS function_defs (
		path TEXT PRIMARY KEY,
		doc_json TEXT NOT NULL,
		cached_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_function_defs_cached_at ON function_defs(cached_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the underlying database. It does not close upstream.
func (c *Cache) Close() error { return c.db.Close() }

// Load returns the cached definition at path if present and not
// expired, otherwise consults upstream and (on success) refreshes the
// cache entry.
func (c *Cache) Load(ctx context.Context, path string) (ports.FunctionDefinition, bool, error) {
	if def, ok := c.lookup(path); ok {
		return def, true, nil
	}

	def, ok, err := c.upstream.Load(ctx, path)
	if err != nil || !ok {
		return def, ok, err
	}

	c.store(path, def)
	return def, true, nil
}

func (c *Cache) lookup(path string) (ports.FunctionDefinition, bool) {
	var docJSON string
	var cachedAt int64
	row := c.db.QueryRow(`SELECT doc_json, cached_at FROM function_defs WHERE path = ?`, path)
	if err := row.Scan(&docJSON, &cachedAt); err != nil {
		return ports.FunctionDefinition{}, false
	}
	if time.Since(time.Unix(cachedAt, 0)) > c.ttl {
		return ports.FunctionDefinition{}, false
	}

	var doc cachedDoc
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		c.logger.Warn("funcdefcache: corrupt cache row, ignoring", "path", path, "error", err)
		return ports.FunctionDefinition{}, false
	}
	return ports.FunctionDefinition{
		Pubkey:        doc.Pubkey,
		InputSockets:  doc.InputSockets,
		OutputSockets: doc.OutputSockets,
		InteriorGraph: doc.InteriorGraph,
	}, true
}

func (c *Cache) store(path string, def ports.FunctionDefinition) {
	docJSON, err := json.Marshal(cachedDoc{
		Pubkey:        def.Pubkey,
		InputSockets:  def.InputSockets,
		OutputSockets: def.OutputSockets,
		InteriorGraph: def.InteriorGraph,
	})
	if err != nil {
		c.logger.Warn("funcdefcache: marshal failed, not caching", "path", path, "error", err)
		return
	}

	if _, err := c.db.Exec(`
		INSERT INTO function_defs (path, doc_json, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET doc_json = excluded.doc_json, cached_at = excluded.cached_at
	`, path, string(docJSON), time.Now().Unix()); err != nil {
		c.logger.Warn("funcdefcache: insert failed", "error", err)
		return
	}
	c.evictOverflow()
}

func (c *Cache) evictOverflow() {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM function_defs`).Scan(&count); err != nil {
		return
	}
	if count <= c.maxRows {
		return
	}
	excess := count - c.maxRows
	if _, err := c.db.Exec(`
		DELETE FROM function_defs WHERE path IN (
			SELECT path FROM function_defs ORDER BY cached_at ASC LIMIT ?
		)
	`, excess); err != nil {
		c.logger.Warn("funcdefcache: eviction failed", "error", err)
	}
}
