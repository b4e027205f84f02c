package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

type BoltStore struct {
	db         *bolt.DB
	bktSession []byte
	key        []byte
}

var bucketSession = []byte("session")

// OpenBolt opens (or creates) the bolt file at path. prefix is prepended to
// the bucket name so several profiles can share one file.
func OpenBolt(path, prefix, key string) (*BoltStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bkt := []byte(prefix + string(bucketSession))
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bkt)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db, bktSession: bkt, key: []byte(key)}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) LoadToken(ctx context.Context) (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bktSession).Get(s.key)
		if len(v) == 0 {
			return ErrNotFound
		}
		token = string(v)
		return nil
	})
	return token, err
}

func (s *BoltStore) SaveToken(ctx context.Context, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bktSession).Put(s.key, []byte(token))
	})
}

func (s *BoltStore) ClearToken(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bktSession).Delete(s.key)
	})
}
