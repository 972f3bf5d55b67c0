// Package store is the offline cache. One bbolt file holds the session and
// a bucket pair per collection: the JSON records keyed by id, and an index
// ordering them by parent and date for paged reads.
package store

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/CristianUrbainski/teammate-android/internal/model"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.teammate/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket = []byte("app")
	tokenKey  = []byte("token")
	userKey   = []byte("user")
)

// DB wraps the bbolt database shared by every collection.
type DB struct {
	db *bolt.DB
}

// DefaultPath is ~/.teammate/state.db, or state.db in the working
// directory when the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "state.db"
	}

	return filepath.Join(home, ".teammate", "state.db")
}

// Open opens the database at path, creating it and its directory if
// needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Token returns the cached session token, or empty string.
func (d *DB) Token() string {
	var token string

	_ = d.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(appBucket).Get(tokenKey); v != nil {
			token = string(v)
		}

		return nil
	})

	return token
}

// SetToken persists the session token.
func (d *DB) SetToken(token string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(tokenKey, []byte(token))
	})
}

// User returns the signed-in user, or nil when nobody is signed in.
func (d *DB) User() (*model.User, error) {
	var u *model.User

	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(userKey)
		if v == nil {
			return nil
		}

		u = &model.User{}

		return json.Unmarshal(v, u)
	})

	return u, err
}

// SetUser persists the signed-in user.
func (d *DB) SetUser(u *model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(userKey, data)
	})
}

// SignOut clears the session and every cached collection.
func (d *DB) SignOut() error {
	return d.db.Update(func(tx *bolt.Tx) error {
		err := tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			if string(name) == string(appBucket) {
				return nil
			}

			_, err := clearBucket(b)
			return err
		})
		if err != nil {
			return err
		}

		_, err = clearBucket(tx.Bucket(appBucket))

		return err
	})
}

// clearBucket deletes every key in b and returns how many there were.
func clearBucket(b *bolt.Bucket) (int, error) {
	var keys [][]byte

	err := b.ForEach(func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}

	return len(keys), nil
}
