// Package cache implements the optional memoizing layer between the
// Resolver and a backend.Backend (spec §4.4). It chains an in-memory tier
// in front of an optional on-disk (bbolt) tier, mirroring the
// MemoryCache -> DiskCache chain staticDHCPd builds in
// databases/_caching.py, but as a single Cache value rather than two
// classes linked by a "chained_cache" reference.
package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
)

var bucketPositive = []byte("positive")

// entry is what's actually stored; an entry with a nil Definition, held in
// the negative map, records a known-absent result for the opt-in negative
// cache.
type entry struct {
	def     *backend.Definition
	expires time.Time // zero means "no expiry" (positive entries)
}

// Config controls which tiers are active (spec §4.4).
type Config struct {
	OnDisk           bool
	PersistentPath   string
	NegativeCache    bool
	NegativeCacheTTL time.Duration
}

// Cache is a reader-shared, single-writer memoizing layer in front of a
// backend.Backend. The zero value is not usable; use New.
type Cache struct {
	cfg Config

	mu       sync.RWMutex
	positive map[backend.MAC]entry
	negative map[backend.MAC]entry

	db *bolt.DB // non-nil only when cfg.OnDisk (or PersistentPath) is set
}

// New constructs a Cache. If cfg.OnDisk or cfg.PersistentPath is set, a
// bbolt file is opened at PersistentPath (or at resolvdhcpd-cache.db in the
// working directory if OnDisk alone is set) and preloaded into the in-memory tier so a restart doesn't cost a
// full backend re-warm.
func New(cfg Config) (*Cache, error) {
	c := &Cache{
		cfg:      cfg,
		positive: make(map[backend.MAC]entry),
		negative: make(map[backend.MAC]entry),
	}

	if cfg.OnDisk || cfg.PersistentPath != "" {
		path := cfg.PersistentPath
		if path == "" {
			path = "resolvdhcpd-cache.db"
		}
		db, err := bolt.Open(path, 0600, nil)
		if err != nil {
			return nil, fmt.Errorf("opening cache database %s: %w", path, err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketPositive)
			return err
		}); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing cache bucket: %w", err)
		}
		c.db = db
		if err := c.preload(); err != nil {
			db.Close()
			return nil, fmt.Errorf("preloading cache from %s: %w", path, err)
		}
	}

	return c, nil
}

// Close releases the on-disk handle, if any.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) preload() error {
	return c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPositive)
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 6 {
				return nil
			}
			var mac backend.MAC
			copy(mac[:], k)
			def := &backend.Definition{}
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(def); err != nil {
				return fmt.Errorf("decoding cached definition for %s: %w", mac, err)
			}
			c.positive[mac] = entry{def: def}
			return nil
		})
	})
}

// Lookup returns (def, true) on a cache hit — def is nil for a cached
// negative result. (nil, false) means "not in cache; ask the backend".
func (c *Cache) Lookup(mac backend.MAC) (*backend.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.positive[mac]; ok {
		return e.def, true
	}
	if c.cfg.NegativeCache {
		if e, ok := c.negative[mac]; ok {
			if e.expires.IsZero() || time.Now().Before(e.expires) {
				return nil, true
			}
		}
	}
	return nil, false
}

// Store records a positive result, persisting it to the disk tier if
// configured. The invariant is that what Lookup later returns is
// byte-identical to what the Backend produced — Store does not mutate def.
func (c *Cache) Store(mac backend.MAC, def *backend.Definition) error {
	c.mu.Lock()
	c.positive[mac] = entry{def: def}
	delete(c.negative, mac)
	c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(def); err != nil {
		return fmt.Errorf("encoding definition for %s: %w", mac, err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPositive).Put(mac[:], buf.Bytes())
	})
}

// StoreNegative records that mac is known to the backend as absent.
// No-op unless NegativeCache is enabled. Negative entries live only in
// memory — they're deliberately not persisted, since a provisioning change
// should be visible again after the next restart.
func (c *Cache) StoreNegative(mac backend.MAC) {
	if !c.cfg.NegativeCache {
		return
	}
	var expires time.Time
	if c.cfg.NegativeCacheTTL > 0 {
		expires = time.Now().Add(c.cfg.NegativeCacheTTL)
	}
	c.mu.Lock()
	c.negative[mac] = entry{expires: expires}
	c.mu.Unlock()
}

// Reinitialise flushes the entire table (spec §4.4: "positive entries are
// held until reinitialise() flushes the entire table"). Blocks new reads
// until complete.
func (c *Cache) Reinitialise() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.positive = make(map[backend.MAC]entry)
	c.negative = make(map[backend.MAC]entry)

	if c.db == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPositive); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketPositive)
		return err
	})
}
