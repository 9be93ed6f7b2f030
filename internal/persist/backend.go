package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/moby/sys/atomicwriter"
)

// FileExt is the extension of wallet snapshot files.
const FileExt = ".kwal"

// Backend stores one opaque snapshot. Store must replace the previous
// snapshot atomically: a reader sees either the old or the new bytes.
type Backend interface {
	// Load returns ErrNoSnapshot when nothing was stored yet.
	Load() ([]byte, error)
	Store(data []byte) error
	Close() error
}

// Remover is implemented by backends that can delete their snapshot.
type Remover interface {
	Remove() error
}

// ValidateName rejects wallet names that cannot be used as a file name or
// database key.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("wallet name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid wallet name %q", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("wallet name %q contains a path separator", name)
	}
	return nil
}

// FileBackend keeps the snapshot in <dir>/<name>.kwal.
type FileBackend struct {
	path string
}

// NewFileBackend creates dir if needed and returns a backend for name.
func NewFileBackend(dir, name string) (*FileBackend, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create wallet dir: %w", err)
	}
	return &FileBackend{path: filepath.Join(dir, name+FileExt)}, nil
}

// Path returns the snapshot file path.
func (f *FileBackend) Path() string {
	return f.path
}

// Load reads the snapshot file.
func (f *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	return data, err
}

// Store replaces the snapshot file through a synced temp file and rename.
func (f *FileBackend) Store(data []byte) error {
	return atomicwriter.WriteFile(f.path, data, 0600)
}

// Remove deletes the snapshot file. A missing file is not an error.
func (f *FileBackend) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *FileBackend) Close() error {
	return nil
}

// DBBackend keeps the snapshot under w/<name> in a key/value database.
type DBBackend struct {
	db    *storage.PrefixDB
	key   []byte
	owned storage.DB
}

// snapshotPrefix namespaces wallet snapshots inside a shared database.
var snapshotPrefix = []byte("w/")

// NewDBBackend returns a backend storing the snapshot of name in db. The
// database is left open on Close.
func NewDBBackend(db storage.DB, name string) (*DBBackend, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &DBBackend{db: storage.NewPrefixDB(db, snapshotPrefix), key: []byte(name)}, nil
}

// OpenBadgerBackend opens a badger database at dir and stores the
// snapshot of name in it. The database is closed with the backend.
func OpenBadgerBackend(dir, name string) (*DBBackend, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	db, err := storage.NewBadger(dir)
	if err != nil {
		return nil, err
	}
	b, _ := NewDBBackend(db, name)
	b.owned = db
	return b, nil
}

// Load reads the snapshot record.
func (d *DBBackend) Load() ([]byte, error) {
	data, err := d.db.Get(d.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	return data, err
}

// Store replaces the snapshot record with a single put.
func (d *DBBackend) Store(data []byte) error {
	return d.db.Put(d.key, data)
}

// Remove deletes the snapshot record.
func (d *DBBackend) Remove() error {
	return d.db.Delete(d.key)
}

// SnapshotNames lists the wallets that have a snapshot in db.
func SnapshotNames(db storage.DB) ([]string, error) {
	return storage.NewPrefixDB(db, snapshotPrefix).Keys()
}

// Close closes the database when the backend opened it.
func (d *DBBackend) Close() error {
	if d.owned != nil {
		return d.owned.Close()
	}
	return nil
}
