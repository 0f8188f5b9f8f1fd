package cache

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketResults = "results"

// Store persists cache entries in a bbolt file. Each value is stored
// with an 8-byte big-endian Unix expiry prefix; zero means no expiry.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenStore opens or creates the store at path. It waits at most one
// second for another process holding the file lock.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketResults))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a copy of the live value for key.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketResults)).Get([]byte(key))
		if len(v) < 8 || s.expired(v) {
			return nil
		}
		out = append([]byte{}, v[8:]...)
		return nil
	})
	return out, out != nil, err
}

// Put stores value under key for ttl (0 = no expiry).
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, 8+len(value))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf, uint64(s.now().Add(ttl).Unix()))
	}
	copy(buf[8:], value)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketResults)).Put([]byte(key), buf)
	})
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketResults)).Delete([]byte(key))
	})
}

// Prune deletes expired entries and returns how many it removed.
func (s *Store) Prune() (int, error) {
	var n int
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketResults)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) < 8 || s.expired(v) {
				if err := c.Delete(); err != nil {
					return err
				}
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) expired(v []byte) bool {
	at := binary.BigEndian.Uint64(v[:8])
	return at != 0 && s.now().Unix() >= int64(at)
}
