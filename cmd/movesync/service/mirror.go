package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/metrics"
	"github.com/shuttleops/movesync/common/models"
	"github.com/shuttleops/movesync/common/moveindex"
)

// Mirror keeps an immutable snapshot of the open move log.
// Refreshes are serialized; readers load the current snapshot without locking.
type Mirror struct {
	source  MoveSource
	log     *logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	loaded  bool
	version int64
	current atomic.Pointer[moveindex.Snapshot]
}

// NewMirror creates a mirror holding an empty snapshot until the first refresh
func NewMirror(source MoveSource, log *logger.Logger, m *metrics.Metrics) *Mirror {
	mirror := &Mirror{
		source:  source,
		log:     log,
		metrics: m,
	}
	mirror.current.Store(moveindex.Empty())
	return mirror
}

// Snapshot returns the current snapshot
func (m *Mirror) Snapshot() *moveindex.Snapshot {
	return m.current.Load()
}

// Version returns the last version seen from the log
func (m *Mirror) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Refresh checks the log version and rebuilds the snapshot when it changed
// or when force is set. Fetch errors are returned as is and the previous
// snapshot stays in place.
func (m *Mirror) Refresh(ctx context.Context, force bool) (*moveindex.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version, err := m.source.Version(ctx)
	if err != nil {
		m.metrics.ObserveRefresh("error", 0, 0)
		return nil, fmt.Errorf("failed to fetch move log version: %w", err)
	}

	if !force && m.loaded && version == m.version {
		m.metrics.ObserveRefresh("unchanged", version, m.current.Load().Len())
		return m.current.Load(), nil
	}

	rowsVersion, moves, err := m.source.Moves(ctx)
	if err != nil {
		m.metrics.ObserveRefresh("error", 0, 0)
		return nil, fmt.Errorf("failed to fetch move log rows: %w", err)
	}
	if rowsVersion == 0 {
		rowsVersion = version
	}

	snap := moveindex.NewSnapshot(rowsVersion, moves)
	m.current.Store(snap)
	m.version = rowsVersion
	m.loaded = true

	m.metrics.ObserveRefresh("rebuilt", rowsVersion, snap.Len())
	m.log.Info("move index rebuilt",
		"version", rowsVersion,
		"moves", snap.Len(),
		"forced", force)

	return snap, nil
}

// Publish installs a copy of the current snapshot with move replaced.
// Used after a successful write-back so the claim is visible before the
// next version bump is observed.
func (m *Mirror) Publish(move models.Move) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Store(m.current.Load().WithMove(move))
}
