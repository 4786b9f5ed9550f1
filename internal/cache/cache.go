// Package cache provides a short-TTL key/value store backed by SQLite.
package cache

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache is an advisory TTL key/value store. Values are msgpack-encoded.
// Concurrent writers racing on a key is tolerated: last writer wins.
type Cache struct {
	db  *sql.DB
	log zerolog.Logger
}

// New creates a new cache instance.
func New(db *sql.DB, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		log: log.With().Str("component", "cache").Logger(),
	}
}

// Get loads the value for key into dest.
// Returns false on miss, expiry, or decode failure.
func (c *Cache) Get(key string, dest interface{}) bool {
	var value []byte
	var expiresAt int64
	err := c.db.QueryRow("SELECT value, expires_at FROM cache WHERE key = ?", key).Scan(&value, &expiresAt)
	if err != nil {
		return false
	}

	if time.Now().Unix() >= expiresAt {
		return false
	}

	if err := msgpack.Unmarshal(value, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached value, treating as miss")
		return false
	}

	return true
}

// Set stores a value under key with the given TTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	encoded, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = c.db.Exec(`
		INSERT INTO cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, encoded, expiresAt)
	return err
}

// Delete removes a cache entry. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all cache entries matching a prefix.
func (c *Cache) DeleteByPrefix(prefix string) error {
	_, err := c.db.Exec("DELETE FROM cache WHERE key LIKE ?", prefix+"%")
	return err
}

// PruneExpired removes entries whose TTL has elapsed.
// Run periodically by the maintenance schedule; correctness does not depend
// on it since Get checks expiry.
func (c *Cache) PruneExpired() (int64, error) {
	res, err := c.db.Exec("DELETE FROM cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
