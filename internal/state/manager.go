package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/evanofslack/cddns/internal/metrics"
)

const (
	addressesKey = "addresses"
	recordPrefix = "record:"
)

type Manager interface {
	LoadState(ctx context.Context) (State, error)
	SaveState(ctx context.Context, state State) error
	Close() error
}

type badgerManager struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

// New opens the state store at path. An empty path disables persistence.
func New(path string, metrics *metrics.Metrics) (Manager, error) {
	if path == "" {
		return NewNop(), nil
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	m := &badgerManager{db: db, metrics: metrics}
	return m, nil
}

func (m *badgerManager) LoadState(ctx context.Context) (State, error) {
	state := State{
		Records: make(map[string]RecordState),
	}

	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(addressesKey))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &state.Addresses)
			}); err != nil {
				return err
			}
		}

		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			id := key[len(recordPrefix):]

			err := item.Value(func(val []byte) error {
				var record RecordState
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				state.Records[id] = record
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	m.metrics.IncBadgerRequest("read", err == nil)
	return state, err
}

func (m *badgerManager) SaveState(ctx context.Context, state State) error {
	txn := m.db.NewTransaction(true)
	defer txn.Discard()

	data, err := json.Marshal(state.Addresses)
	if err != nil {
		m.metrics.IncBadgerRequest("update", false)
		return err
	}
	if err := txn.Set([]byte(addressesKey), data); err != nil {
		m.metrics.IncBadgerRequest("update", false)
		return err
	}

	// First, get all existing keys to handle deletions
	existing := make(map[string]bool)

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	prefix := []byte(recordPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := string(it.Item().Key())
		existing[key[len(recordPrefix):]] = true
	}
	it.Close()

	for id, record := range state.Records {
		data, err := json.Marshal(record)
		if err != nil {
			m.metrics.IncBadgerRequest("update", false)
			return err
		}
		if err := txn.Set([]byte(recordPrefix+id), data); err != nil {
			m.metrics.IncBadgerRequest("update", false)
			return err
		}
		delete(existing, id)
	}

	// Delete records that are no longer tracked
	for id := range existing {
		if err := txn.Delete([]byte(recordPrefix + id)); err != nil {
			m.metrics.IncBadgerRequest("delete", false)
			return err
		}
	}
	err = txn.Commit()
	m.metrics.IncBadgerRequest("update", err == nil)
	return err
}

func (m *badgerManager) Close() error {
	return m.db.Close()
}

type nopManager struct{}

// NewNop returns a manager that remembers nothing.
func NewNop() Manager {
	return nopManager{}
}

func (nopManager) LoadState(ctx context.Context) (State, error) {
	return State{Records: make(map[string]RecordState)}, nil
}

func (nopManager) SaveState(ctx context.Context, state State) error { return nil }

func (nopManager) Close() error { return nil }
