package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/log"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/utils"
)

const (
	priceKeyPrefix = "price:"        // price:<ASIN>:<zero-padded unix nanos>
	priceDBDir     = "price_history" // subdirectory within stateDir for Badger DB files
)

const maxConflictRetries = 10

// PriceStore keeps one record per observed (ASIN, time) pair in BadgerDB.
// Snapshots accumulate across searches so price movement over time can be
// queried per product.
type PriceStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewPriceStore opens (or creates) the price history database under
// stateDir.
func NewPriceStore(stateDir string, logger *logrus.Entry) (*PriceStore, error) {
	dbPath := filepath.Join(stateDir, priceDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	logger.Infof("Price history database initialized at: %s", dbPath)
	return &PriceStore{db: db, log: logger}, nil
}

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction
// conflicts. Concurrent MVCC transactions on overlapping keys can return
// badger.ErrConflict; these resolve in microseconds, so a tight retry loop
// is sufficient.
func (s *PriceStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func snapshotKey(asin string, at time.Time) []byte {
	// Nanosecond timestamps are zero-padded so lexicographic key order is
	// chronological within an ASIN prefix.
	return []byte(fmt.Sprintf("%s%s:%020d", priceKeyPrefix, asin, at.UnixNano()))
}

// RecordSearch stores one snapshot per priced record carrying an ASIN.
// Satisfies the scraper's Recorder interface.
func (s *PriceStore) RecordSearch(keyword string, records []models.ProductRecord) error {
	if s.db == nil {
		return errors.New("price history DB not initialized")
	}

	now := time.Now()
	stored := 0

	err := s.dbUpdate(func(txn *badger.Txn) error {
		for _, rec := range records {
			if rec.ASIN == "" || rec.Price <= 0 {
				continue
			}
			snap := models.PriceSnapshot{
				ASIN:       rec.ASIN,
				Title:      rec.Title,
				Price:      rec.Price,
				Keyword:    keyword,
				ObservedAt: now,
			}
			val, err := json.Marshal(snap)
			if err != nil {
				return fmt.Errorf("marshal snapshot for %s: %w", rec.ASIN, err)
			}
			if err := txn.SetEntry(badger.NewEntry(snapshotKey(rec.ASIN, now), val)); err != nil {
				return err
			}
			stored++
		}
		return nil
	})
	if err != nil {
		s.log.Errorf("DB Update error in RecordSearch: %v", err)
		return fmt.Errorf("%w: recording price snapshots: %w", utils.ErrDatabase, err)
	}

	s.log.WithFields(logrus.Fields{"keyword": keyword, "snapshots": stored}).Debug("Recorded price snapshots")
	return nil
}

// Snapshots returns all stored observations for an ASIN in chronological
// order. Unknown ASINs yield an empty slice.
func (s *PriceStore) Snapshots(asin string) ([]models.PriceSnapshot, error) {
	if s.db == nil {
		return nil, errors.New("price history DB not initialized")
	}

	prefix := []byte(priceKeyPrefix + asin + ":")
	out := []models.PriceSnapshot{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var snap models.PriceSnapshot
				if err := json.Unmarshal(val, &snap); err != nil {
					s.log.Warnf("Skipping undecodable snapshot at key '%s': %v", it.Item().Key(), err)
					return nil
				}
				out = append(out, snap)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading price history for %s: %w", utils.ErrDatabase, asin, err)
	}
	return out, nil
}

// Close flushes and closes the underlying database.
func (s *PriceStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.log.Info("Closing price history database...")
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing price history database: %v", err)
		return err
	}
	return nil
}
