// Package kvstore exposes an on-disk byte-keyed database as a sheet of
// decoded (key, value) text pairs.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var (
	// ErrKeyNotFound is returned by Get for a missing key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrDatabaseNotFound is returned by OpenExisting when path holds no
	// database.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrDatabaseLocked is returned when another handle holds a conflicting
	// lock on the database.
	ErrDatabaseLocked = errors.New("database is locked")
)

// currentFile marks a directory as a leveldb database.
const currentFile = "CURRENT"

// Store is a byte-keyed, byte-valued on-disk database.
//
// Store is safe for concurrent use.
type Store struct {
	path string
	db   *leveldb.DB
}

// Open opens the database at path, creating it if it does not exist.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("kvstore: path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kvstore: create parent dir: %w", err)
		}
	}

	return open(path, &opt.Options{ErrorIfMissing: false})
}

// OpenExisting opens the database at path read-only. It never creates
// files: a missing path, or a directory that is not a database, yields
// ErrDatabaseNotFound. Read-only handles share the database lock, so any
// number may be open at once; Put on the returned Store fails.
func OpenExisting(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("kvstore: path is required")
	}
	fi, err := os.Stat(filepath.Join(path, currentFile))
	if err != nil || fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, path)
	}

	return open(path, &opt.Options{ErrorIfMissing: true, ReadOnly: true})
}

func open(path string, o *opt.Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		if isLockConflict(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseLocked, path)
		}
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	return &Store{path: path, db: db}, nil
}

// isLockConflict reports whether err is the non-blocking lock failure
// raised when another handle holds the database LOCK file.
func isLockConflict(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

// Path returns the on-disk location of the database.
func (s *Store) Path() string { return s.path }

// Keys returns every key in key order.
func (s *Store) Keys() ([][]byte, error) {
	var keys [][]byte
	err := s.Each(func(k, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	return keys, err
}

// Get returns the value stored under key.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: get: %w", err)
	}
	return v, nil
}

// Put stores value under key, replacing any existing value.
func (s *Store) Put(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("kvstore: put: %w", err)
	}
	return nil
}

// Each calls fn for every entry in key order. The slices passed to fn are
// copies and may be retained. Iteration stops at the first error from fn.
func (s *Store) Each(fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		k := append([]byte(nil), iter.Key()...)
		v := append([]byte(nil), iter.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("kvstore: iterate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
