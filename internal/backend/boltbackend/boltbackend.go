// Package boltbackend is a reference backend.Backend implementation backed
// by a single BoltDB (go.etcd.io/bbolt) file, keyed by MAC. It exists as a
// working example embedders can use directly or discard; concrete backends
// are not part of the core (spec §1).
package boltbackend

import (
	"bytes"
	"encoding/gob"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
)

var bucketDefinitions = []byte("definitions")

// Backend is a bbolt-backed backend.Backend. One bucket, keyed by the raw
// 6-byte MAC, gob-encoded Definition values.
type Backend struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the BoltDB file at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening backend database %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDefinitions)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing backend bucket: %w", err)
	}
	return &Backend{db: db}, nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Put stores (or replaces) the Definition for mac. Provided for embedders to
// seed the store; not part of the backend.Backend interface.
func (b *Backend) Put(mac backend.MAC, def *backend.Definition) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(def); err != nil {
		return fmt.Errorf("encoding definition for %s: %w", mac, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDefinitions).Put(mac[:], buf.Bytes())
	})
}

// Delete removes the Definition for mac, if any.
func (b *Backend) Delete(mac backend.MAC) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDefinitions).Delete(mac[:])
	})
}

// Lookup implements backend.Backend. A single bucket keyed by MAC never
// produces more than one candidate.
func (b *Backend) Lookup(mac backend.MAC) ([]*backend.Definition, error) {
	var def *backend.Definition
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketDefinitions).Get(mac[:])
		if raw == nil {
			return nil
		}
		d := &backend.Definition{}
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(d); err != nil {
			return fmt.Errorf("decoding definition for %s: %w", mac, err)
		}
		def = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, nil
	}
	return []*backend.Definition{def}, nil
}

// Reinitialise implements backend.Backend. The bbolt file is the source of
// truth already; nothing cached outside it needs dropping.
func (b *Backend) Reinitialise() error {
	return nil
}
