// Package cache keeps search results and summaries in a local SQLite
// database so repeated runs over the same topics stay off the network.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// migration is a numbered schema change, applied once and recorded in
// schema_migrations.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS searches (
    lang        TEXT NOT NULL,
    query_key   TEXT NOT NULL,
    query       TEXT NOT NULL,
    results     TEXT NOT NULL,
    fetched_at  INTEGER NOT NULL,
    PRIMARY KEY (lang, query_key)
);
CREATE TABLE IF NOT EXISTS summaries (
    lang        TEXT NOT NULL,
    title       TEXT NOT NULL,
    body        BLOB NOT NULL,
    fetched_at  INTEGER NOT NULL,
    PRIMARY KEY (lang, title)
);`,
	},
	{
		Version:     2,
		Description: "track uncompressed summary size",
		SQL:         `ALTER TABLE summaries ADD COLUMN size INTEGER NOT NULL DEFAULT 0;`,
	},
}

// Cache is a per-language view over the cache database.
type Cache struct {
	db   *sql.DB
	lang string
	ttl  time.Duration
	now  func() time.Time
}

// Item is one cached summary, for listings.
type Item struct {
	Title     string
	Size      int
	FetchedAt time.Time
}

// Stats summarises cache contents for one language.
type Stats struct {
	Searches  int
	Summaries int
	Bytes     int64 // compressed summary bytes
	Size      int64 // uncompressed summary bytes
}

// DefaultPath returns FILLER_CACHE_DB or ~/.local/share/filler/cache.db.
func DefaultPath() (string, error) {
	if p := os.Getenv("FILLER_CACHE_DB"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "filler", "cache.db"), nil
}

// Open opens (or creates) the cache database at path. Entries older than
// ttl are treated as misses; ttl <= 0 keeps entries forever.
func Open(path, lang string, ttl time.Duration) (*Cache, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, lang: lang, ttl: ttl, now: time.Now}, nil
}

// OpenDB opens the database, creating parent directories, enabling WAL,
// and running pending migrations.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Key normalizes a search query: NFKC, collapsed whitespace, lower case.
func Key(query string) string {
	s := norm.NFKC.String(query)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

func (c *Cache) fresh(fetchedAt int64) bool {
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(time.Unix(fetchedAt, 0)) < c.ttl
}

// GetSearch returns cached results for query.
func (c *Cache) GetSearch(query string) ([]string, bool, error) {
	var raw string
	var fetchedAt int64
	err := c.db.QueryRow(
		"SELECT results, fetched_at FROM searches WHERE lang = ? AND query_key = ?",
		c.lang, Key(query),
	).Scan(&raw, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get search %q: %w", query, err)
	}
	if !c.fresh(fetchedAt) {
		return nil, false, nil
	}

	var results []string
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, fmt.Errorf("decode search %q: %w", query, err)
	}
	return results, true, nil
}

// PutSearch stores results for query, replacing any older entry.
func (c *Cache) PutSearch(query string, results []string) error {
	if results == nil {
		results = []string{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`INSERT INTO searches (lang, query_key, query, results, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(lang, query_key) DO UPDATE SET
			query = excluded.query, results = excluded.results, fetched_at = excluded.fetched_at`,
		c.lang, Key(query), query, string(raw), c.now().Unix())
	if err != nil {
		return fmt.Errorf("put search %q: %w", query, err)
	}
	return nil
}

// GetSummary returns the cached summary for title.
func (c *Cache) GetSummary(title string) (string, bool, error) {
	var blob []byte
	var fetchedAt int64
	err := c.db.QueryRow(
		"SELECT body, fetched_at FROM summaries WHERE lang = ? AND title = ?",
		c.lang, title,
	).Scan(&blob, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get summary %q: %w", title, err)
	}
	if !c.fresh(fetchedAt) {
		return "", false, nil
	}

	body, err := Decompress(blob)
	if err != nil {
		return "", false, fmt.Errorf("decode summary %q: %w", title, err)
	}
	return body, true, nil
}

// PutSummary stores a summary body, replacing any older entry.
func (c *Cache) PutSummary(title, body string) error {
	blob, err := Compress(body)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`INSERT INTO summaries (lang, title, body, size, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(lang, title) DO UPDATE SET
			body = excluded.body, size = excluded.size, fetched_at = excluded.fetched_at`,
		c.lang, title, blob, len(body), c.now().Unix())
	if err != nil {
		return fmt.Errorf("put summary %q: %w", title, err)
	}
	return nil
}

// List returns the most recently fetched summaries, newest first.
func (c *Cache) List(limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.Query(
		"SELECT title, size, fetched_at FROM summaries WHERE lang = ? ORDER BY fetched_at DESC, title LIMIT ?",
		c.lang, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var fetchedAt int64
		if err := rows.Scan(&it.Title, &it.Size, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		it.FetchedAt = time.Unix(fetchedAt, 0)
		items = append(items, it)
	}
	return items, rows.Err()
}

// Stats counts cached entries for the cache's language.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	if err := c.db.QueryRow("SELECT COUNT(*) FROM searches WHERE lang = ?", c.lang).Scan(&s.Searches); err != nil {
		return s, fmt.Errorf("count searches: %w", err)
	}
	err := c.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(body)), 0), COALESCE(SUM(size), 0) FROM summaries WHERE lang = ?",
		c.lang,
	).Scan(&s.Summaries, &s.Bytes, &s.Size)
	if err != nil {
		return s, fmt.Errorf("count summaries: %w", err)
	}
	return s, nil
}

// Clear removes every entry for the cache's language and returns how many
// rows were deleted.
func (c *Cache) Clear() (int64, error) {
	var total int64
	for _, table := range []string{"searches", "summaries"} {
		res, err := c.db.Exec("DELETE FROM "+table+" WHERE lang = ?", c.lang)
		if err != nil {
			return total, fmt.Errorf("clear %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
