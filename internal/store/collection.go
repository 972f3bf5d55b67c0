package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/CristianUrbainski/teammate-android/internal/metrics"
	"github.com/CristianUrbainski/teammate-android/internal/model"
)

const sep = 0x00

// Layout tells a collection how to index a model: the ids of the parents
// it is listed under (a team for events, a game for stats, every team
// playing for games) and the date it is paged by.
type Layout[M any] struct {
	New     func() M
	Parents func(M) []string
	Date    func(M) time.Time
}

// Parent adapts a single-parent accessor to Layout.Parents.
func Parent[M any](fn func(M) string) func(M) []string {
	return func(m M) []string { return []string{fn(m)} }
}

// Collection is the DAO for one entity type. Records are stored as JSON
// keyed by id; the index bucket maps parent/date/id to nothing and exists
// only for range scans. A model with several parents has one index entry
// per parent.
type Collection[M model.Model[M]] struct {
	db     *DB
	name   string
	data   []byte
	index  []byte
	layout Layout[M]
}

// NewCollection creates the collection's buckets if they do not exist.
func NewCollection[M model.Model[M]](db *DB, name string, layout Layout[M]) (*Collection[M], error) {
	c := &Collection[M]{
		db:     db,
		name:   name,
		data:   []byte(name),
		index:  []byte(name + ":index"),
		layout: layout,
	}

	err := db.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(c.data); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(c.index)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s buckets: %w", name, err)
	}

	return c, nil
}

// Name is the collection's bucket name.
func (c *Collection[M]) Name() string { return c.name }

// Get returns the stored model, or false if there is none.
func (c *Collection[M]) Get(id string) (M, bool, error) {
	c.observe("get")

	var (
		m     M
		found bool
	)

	err := c.db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(c.data).Get([]byte(id))
		if v == nil {
			return nil
		}

		m = c.layout.New()
		found = true

		return json.Unmarshal(v, m)
	})
	if err != nil {
		return m, false, fmt.Errorf("reading %s %s: %w", c.name, id, err)
	}

	return m, found, nil
}

// Upsert writes models and keeps the index in step with their parent and
// date.
func (c *Collection[M]) Upsert(models ...M) error {
	c.observe("upsert")

	return c.db.db.Update(func(tx *bolt.Tx) error {
		data, index := tx.Bucket(c.data), tx.Bucket(c.index)

		for _, m := range models {
			id := []byte(m.ItemID())

			if old := data.Get(id); old != nil {
				prev := c.layout.New()
				if err := json.Unmarshal(old, prev); err == nil {
					if err := deleteKeys(index, c.indexKeys(prev)); err != nil {
						return err
					}
				}
			}

			v, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("encoding %s %s: %w", c.name, m.ItemID(), err)
			}

			if err := data.Put(id, v); err != nil {
				return err
			}

			for _, key := range c.indexKeys(m) {
				if err := index.Put(key, nil); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// Delete removes the given ids and returns how many existed.
func (c *Collection[M]) Delete(ids ...string) (int, error) {
	c.observe("delete")

	var n int

	err := c.db.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = c.deleteIDs(tx, ids)

		return err
	})

	return n, err
}

// DeleteAll empties the collection and returns how many records it held.
func (c *Collection[M]) DeleteAll() (int, error) {
	c.observe("delete_all")

	var n int

	err := c.db.db.Update(func(tx *bolt.Tx) error {
		var err error
		if n, err = clearBucket(tx.Bucket(c.data)); err != nil {
			return err
		}

		_, err = clearBucket(tx.Bucket(c.index))

		return err
	})

	return n, err
}

// DeleteByParent removes every model listed under parent, including its
// entries under any other parent.
func (c *Collection[M]) DeleteByParent(parent string) (int, error) {
	c.observe("delete_by_parent")

	var n int

	err := c.db.db.Update(func(tx *bolt.Tx) error {
		prefix := parentPrefix(parent)

		var ids []string

		cur := tx.Bucket(c.index).Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			ids = append(ids, idFromKey(k))
		}

		var err error
		n, err = c.deleteIDs(tx, ids)

		return err
	})

	return n, err
}

// Before returns up to limit models under parent dated strictly before
// the cursor, newest first.
func (c *Collection[M]) Before(parent string, before time.Time, limit int) ([]M, error) {
	c.observe("before")

	var out []M

	err := c.db.db.View(func(tx *bolt.Tx) error {
		prefix := parentPrefix(parent)
		data := tx.Bucket(c.data)
		cur := tx.Bucket(c.index).Cursor()

		k, _ := cur.Seek(append(prefix, stamp(before)...))
		if k == nil {
			k, _ = cur.Last()
		} else {
			k, _ = cur.Prev()
		}

		for ; k != nil && bytes.HasPrefix(k, prefix) && len(out) < limit; k, _ = cur.Prev() {
			v := data.Get([]byte(idFromKey(k)))
			if v == nil {
				continue
			}

			m := c.layout.New()
			if err := json.Unmarshal(v, m); err != nil {
				return fmt.Errorf("decoding %s %s: %w", c.name, idFromKey(k), err)
			}

			out = append(out, m)
		}

		return nil
	})

	return out, err
}

func (c *Collection[M]) deleteIDs(tx *bolt.Tx, ids []string) (int, error) {
	data, index := tx.Bucket(c.data), tx.Bucket(c.index)

	var n int

	for _, id := range ids {
		v := data.Get([]byte(id))
		if v == nil {
			continue
		}

		m := c.layout.New()
		if err := json.Unmarshal(v, m); err == nil {
			if err := deleteKeys(index, c.indexKeys(m)); err != nil {
				return n, err
			}
		}

		if err := data.Delete([]byte(id)); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

func (c *Collection[M]) observe(op string) {
	metrics.StoreOps.WithLabelValues(c.name, op).Inc()
}

// indexKeys returns one key per distinct parent: parent 0x00
// big-endian(nanos) 0x00 id. The sign bit of the timestamp is flipped so
// dates before 1970 still sort first. A model with no parents is indexed
// under the empty parent.
func (c *Collection[M]) indexKeys(m M) [][]byte {
	parents := c.layout.Parents(m)
	if len(parents) == 0 {
		parents = []string{""}
	}

	at := stamp(c.layout.Date(m))
	keys := make([][]byte, 0, len(parents))
	seen := make(map[string]struct{}, len(parents))

	for _, parent := range parents {
		if _, dup := seen[parent]; dup {
			continue
		}

		seen[parent] = struct{}{}

		key := append(parentPrefix(parent), at...)
		key = append(key, sep)
		keys = append(keys, append(key, m.ItemID()...))
	}

	return keys
}

func deleteKeys(b *bolt.Bucket, keys [][]byte) error {
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}

	return nil
}

func parentPrefix(parent string) []byte {
	return append([]byte(parent), sep)
}

var (
	minStamp = time.Unix(0, math.MinInt64)
	maxStamp = time.Unix(0, math.MaxInt64)
)

func stamp(t time.Time) []byte {
	switch {
	case t.Before(minStamp):
		t = minStamp
	case t.After(maxStamp):
		t = maxStamp
	}

	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixNano())^(1<<63))

	return b[:]
}

// idFromKey strips the parent and timestamp. Parents never contain 0x00,
// so the first separator ends the parent.
func idFromKey(k []byte) string {
	i := bytes.IndexByte(k, sep)
	if i < 0 || len(k) < i+1+8+1 {
		return ""
	}

	return string(k[i+1+8+1:])
}
