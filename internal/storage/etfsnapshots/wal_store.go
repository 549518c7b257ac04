// Package etfsnapshots persists ETF catalog snapshots and scraped investor
// counts so fund growth can be tracked between runs.
package etfsnapshots

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/suenot/etf-monitor/internal/domain"
)

const (
	defaultDir   = "./wal/etf"
	segmentLimit = 1000
	maxSegments  = 100

	etfKeyPrefix       = "etf_"
	investorsKeyPrefix = "investors_"
)

// WALStore is a WAL-backed store of ETF catalog and investor count snapshots.
// Snapshots are append-only; readers see the latest entry per instrument.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens the ETF snapshot WAL under the provided directory.
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
		return nil, errors.Wrap(err, "init etf snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveEtf appends one catalog snapshot for a fund.
func (s *WALStore) SaveEtf(etf domain.EtfInfo) error {
	if s == nil || s.wal == nil {
		return errors.New("etf snapshot store is not initialized")
	}
	if etf.Ticker == "" {
		return errors.New("etf snapshot requires a ticker")
	}

	payload, err := json.Marshal(etf)
	if err != nil {
		return errors.Wrap(err, "marshal etf snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, etfKeyPrefix+etf.Ticker, payload)
}

// SaveInvestors appends one scraped investor count.
func (s *WALStore) SaveInvestors(snapshot domain.InvestorsSnapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("etf snapshot store is not initialized")
	}
	if snapshot.Figi == "" {
		return errors.New("investors snapshot requires a figi")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal investors snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, investorsKeyPrefix+snapshot.Figi, payload)
}

// LatestEtfs returns the latest stored catalog snapshot per ticker.
func (s *WALStore) LatestEtfs() (map[string]domain.EtfInfo, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("etf snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]domain.EtfInfo)
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, etfKeyPrefix) {
			continue
		}
		var etf domain.EtfInfo
		if err := json.Unmarshal(payload, &etf); err != nil {
			return nil, errors.Wrap(err, "decode etf snapshot")
		}
		latest[etf.Ticker] = etf
	}

	return latest, nil
}

// LatestInvestors returns the latest stored investor count per figi.
func (s *WALStore) LatestInvestors() (map[string]domain.InvestorsSnapshot, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("etf snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]domain.InvestorsSnapshot)
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, investorsKeyPrefix) {
			continue
		}
		var snapshot domain.InvestorsSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode investors snapshot")
		}
		latest[snapshot.Figi] = snapshot
	}

	return latest, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("etf snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
