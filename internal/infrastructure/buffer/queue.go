// Package buffer is a durable FIFO queue for learner action records, backed
// by a local bolt file. Actions land here whenever the relational store is
// unreachable and are flushed by the action processor once it recovers.
package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "actions"

// Store is the bolt-backed queue. Keys are ordered by enqueue time so Peek
// always returns the oldest records first.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open creates or reopens the queue file at path.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: []byte(bucket)}, nil
}

// Enqueue appends the item. A zero id, entity or timestamp is filled in.
func (s *Store) Enqueue(item Item) error {
	if !s.ready() {
		return bolt.ErrDatabaseNotOpen
	}
	item.fill()
	item.key = orderedKey(item)

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(item.key, payload)
	})
}

// Peek returns up to limit of the oldest items without consuming them. Rows
// that no longer decode are skipped; Ack is how a caller disposes of them.
func (s *Store) Peek(limit int) ([]Item, error) {
	if !s.ready() {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(s.bucket).Cursor()
		for k, v := cursor.First(); k != nil && len(items) < limit; k, v = cursor.Next() {
			var item Item
			if json.Unmarshal(v, &item) != nil {
				continue
			}
			item.key = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Ack removes a flushed (or abandoned) item from the queue.
func (s *Store) Ack(item Item) error {
	if !s.ready() {
		return bolt.ErrDatabaseNotOpen
	}
	if len(item.key) == 0 {
		return s.removeByID(item.ID)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(item.key)
	})
}

// Retry moves the item to the back of the queue with a fresh timestamp. The
// caller is responsible for bumping Retries and giving up past its limit.
func (s *Store) Retry(item Item) error {
	if err := s.Ack(item); err != nil {
		return err
	}
	item.key = nil
	item.Timestamp = time.Now()
	return s.Enqueue(item)
}

// Len reports how many items are waiting.
func (s *Store) Len() (int, error) {
	if !s.ready() {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Close() error {
	if !s.ready() {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() bool {
	return s != nil && s.db != nil
}

// removeByID is the slow path for items that were never read back from the
// queue and so carry no bucket key.
func (s *Store) removeByID(id string) error {
	if id == "" {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(s.bucket).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var item Item
			if json.Unmarshal(v, &item) != nil {
				continue
			}
			if item.ID == id {
				return cursor.Delete()
			}
		}
		return nil
	})
}

// orderedKey yields lexicographically time-ordered keys; the id suffix keeps
// same-nanosecond enqueues distinct.
func orderedKey(item Item) []byte {
	return []byte(fmt.Sprintf("%020d_%s", item.Timestamp.UnixNano(), item.ID))
}
