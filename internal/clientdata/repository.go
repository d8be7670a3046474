// Package clientdata provides persistent caching for external API responses.
// Payloads are stored as msgpack blobs in client_data.db with expiration
// timestamps, so clients can work cache-first and fall back to stale data
// when the upstream is down.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Repository provides cache operations over the api_cache table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store saves a value under key with expiration = now + ttl, replacing any
// previous entry. source labels the upstream API for observability.
func (r *Repository) Store(key, source string, value interface{}, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	now := time.Now()
	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO api_cache (cache_key, payload, source, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		key, payload, source, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}

// GetFresh decodes a live entry into out. Expired or absent keys return
// ErrCacheMiss. Use Get to accept stale data as a fallback.
func (r *Repository) GetFresh(key string, out interface{}) error {
	return r.get(key, out, true)
}

// Get decodes an entry into out regardless of expiration. Stale data is
// better than no data when the upstream API fails.
func (r *Repository) Get(key string, out interface{}) error {
	return r.get(key, out, false)
}

func (r *Repository) get(key string, out interface{}, freshOnly bool) error {
	query := `SELECT payload FROM api_cache WHERE cache_key = ?`
	args := []interface{}{key}
	if freshOnly {
		query += ` AND expires_at > ?`
		args = append(args, time.Now().Unix())
	}

	var payload []byte
	err := r.db.QueryRow(query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("key %s: %w", key, ErrCacheMiss)
	}
	if err != nil {
		return fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode cache payload %s: %w", key, err)
	}
	return nil
}

// Delete removes one entry.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM api_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes all entries past their expiration. Returns the
// number of rows deleted.
func (r *Repository) DeleteExpired() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM api_cache WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// CountBySource returns entry counts per source API.
func (r *Repository) CountBySource() (map[string]int64, error) {
	rows, err := r.db.Query(`SELECT source, COUNT(*) FROM api_cache GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan cache count: %w", err)
		}
		counts[source] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache counts: %w", err)
	}
	return counts, nil
}
