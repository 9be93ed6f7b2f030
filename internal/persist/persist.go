// Package persist makes changesets durable. Every commit writes the
// union of everything committed so far as one snapshot, so loading never
// replays a log.
package persist

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/changeset"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
)

var (
	// ErrWrite is returned when a snapshot cannot be encoded or stored.
	ErrWrite = errors.New("write snapshot")

	// ErrRead is returned when the backend cannot be read.
	ErrRead = errors.New("read snapshot")

	// ErrCorruptSnapshot is returned for a snapshot that fails envelope,
	// digest or payload checks.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrNoSnapshot is returned by backends holding no snapshot yet.
	ErrNoSnapshot = errors.New("no snapshot")
)

// Persist stages changesets in memory and commits them to a backend.
// It is not safe for concurrent use.
type Persist struct {
	backend   Backend
	committed *changeset.ChangeSet
	pending   *changeset.ChangeSet
}

// New returns a Persist writing to backend.
func New(backend Backend) *Persist {
	return &Persist{
		backend:   backend,
		committed: changeset.New(),
		pending:   changeset.New(),
	}
}

// Load reads the stored snapshot and makes it the committed state. A
// backend with no snapshot yields an empty changeset.
func (p *Persist) Load() (*changeset.ChangeSet, error) {
	data, err := p.backend.Load()
	if errors.Is(err, ErrNoSnapshot) {
		klog.Persist.Debug().Msg("no snapshot, starting fresh")
		return changeset.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	cs, err := open(data)
	if err != nil {
		return nil, err
	}
	p.committed = cs.Clone()
	klog.Persist.Debug().
		Int("keychains", len(cs.LastRevealed)).
		Int("txs", len(cs.Txs)).
		Int("anchors", len(cs.Anchors)).
		Msg("snapshot loaded")
	return cs, nil
}

// Stage merges cs into the pending changeset. No I/O.
func (p *Persist) Stage(cs *changeset.ChangeSet) {
	p.pending.Merge(cs)
}

// Pending returns a copy of the staged, uncommitted changeset.
func (p *Persist) Pending() *changeset.ChangeSet {
	return p.pending.Clone()
}

// Commit writes committed plus pending as a new snapshot and clears
// pending. Nothing is written when pending is empty. On failure pending
// is kept so a later Commit retries it.
func (p *Persist) Commit() error {
	if p.pending.IsEmpty() {
		return nil
	}
	union := p.committed.Clone()
	union.Merge(p.pending)

	data, err := seal(union)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrWrite, err)
	}
	if err := p.backend.Store(data); err != nil {
		klog.Persist.Warn().Err(err).Msg("commit failed, changes stay pending")
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	klog.Persist.Debug().Int("bytes", len(data)).Msg("snapshot committed")
	p.committed = union
	p.pending = changeset.New()
	return nil
}

// Close commits pending changes and closes the backend. The backend is
// closed even when the final commit fails.
func (p *Persist) Close() error {
	err := p.Commit()
	if cerr := p.backend.Close(); err == nil {
		err = cerr
	}
	return err
}
