// Package rebalances persists rebalance cycle results in a write-ahead log so
// history survives restarts and can be streamed to the dashboard.
package rebalances

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/suenot/etf-monitor/internal/domain"
)

const (
	defaultDir      = "./wal/rebalances"
	segmentLimit    = 1000
	maxSegments     = 100
	resultKeyPrefix = "rebalance_"
)

// WALStore is a WAL-backed append-only store of rebalance results.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens the rebalance result WAL under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "seg_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init rebalance WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends one cycle result.
func (s *WALStore) Save(result domain.RebalanceResult) error {
	if s == nil || s.wal == nil {
		return errors.New("rebalance store is not initialized")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal rebalance result")
	}

	key := resultKeyPrefix + result.Status.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// ResultsAfter returns all results written after the provided WAL index.
func (s *WALStore) ResultsAfter(index uint64) ([]domain.RebalanceRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("rebalance store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.RebalanceRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, resultKeyPrefix) {
			continue
		}
		var result domain.RebalanceResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, errors.Wrap(err, "decode rebalance result")
		}
		records = append(records, domain.RebalanceRecord{Index: idx, Result: result})
	}

	return records, nil
}

// All returns every stored result, oldest first.
func (s *WALStore) All() ([]domain.RebalanceRecord, error) {
	return s.ResultsAfter(0)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("rebalance store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
