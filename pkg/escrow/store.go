package escrow

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/altv2/swapledger/pkg/events"
)

// Store provides Pebble-based persistence for the order table, the
// order-id counter, the registered settlement-engine identity, the
// enforcement flag, and an append-only event journal.
// Order/counter writes go through the ledger's mutex; the journal keeps
// its own sequence lock so it can serve as an event sink directly.
type Store struct {
	db *pebble.DB

	evtMu  sync.Mutex
	evtSeq uint64
}

// OpenStore opens a Pebble database at the given path
func OpenStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:          32 << 20,                  // 32MB memtable
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		LBaseMaxBytes:         64 << 20,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	s := &Store{db: db}
	s.evtSeq, err = s.loadCounter(keyEventSeq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveOrder persists an order row
func (s *Store) SaveOrder(ord *Order) error {
	data, err := json.Marshal(ord)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", ord.ID, err)
	}
	if err := s.db.Set(orderKey(ord.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order %d: %w", ord.ID, err)
	}
	return nil
}

// SaveNewOrder persists a freshly created order together with the
// advanced order-id counter in one atomic batch, so a crash can never
// leave the counter behind the table (ids must never be reused).
func (s *Store) SaveNewOrder(ord *Order) error {
	data, err := json.Marshal(ord)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", ord.ID, err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(orderKey(ord.ID), data, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(keyOrderSeq), encodeUint64(ord.ID), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit order %d: %w", ord.ID, err)
	}
	return nil
}

// LoadOrder loads a single order row
// Returns nil if the order doesn't exist
func (s *Store) LoadOrder(id uint64) (*Order, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	defer closer.Close()

	var ord Order
	if err := json.Unmarshal(data, &ord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order %d: %w", id, err)
	}
	return &ord, nil
}

// LoadAllOrders replays the full order table, keyed by id
func (s *Store) LoadAllOrders() (map[uint64]*Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open order iterator: %w", err)
	}
	defer iter.Close()

	orders := make(map[uint64]*Order)
	for iter.First(); iter.Valid(); iter.Next() {
		var ord Order
		if err := json.Unmarshal(iter.Value(), &ord); err != nil {
			return nil, fmt.Errorf("corrupt order row %q: %w", iter.Key(), err)
		}
		orders[ord.ID] = &ord
	}
	return orders, nil
}

// LoadOrderSeq returns the last assigned order id (0 if none)
func (s *Store) LoadOrderSeq() (uint64, error) {
	return s.loadCounter(keyOrderSeq)
}

// SaveEngine persists the registered settlement-engine identity
func (s *Store) SaveEngine(engine common.Address) error {
	if err := s.db.Set([]byte(keyEngine), engine.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save engine identity: %w", err)
	}
	return nil
}

// LoadEngine returns the registered settlement-engine identity
// (zero address if never set)
func (s *Store) LoadEngine() (common.Address, error) {
	data, closer, err := s.db.Get([]byte(keyEngine))
	if err == pebble.ErrNotFound {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get engine identity: %w", err)
	}
	defer closer.Close()
	return common.BytesToAddress(data), nil
}

// SaveRestrict persists the asset-admission enforcement flag
func (s *Store) SaveRestrict(enabled bool) error {
	v := []byte{0}
	if enabled {
		v[0] = 1
	}
	if err := s.db.Set([]byte(keyRestrict), v, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save restriction flag: %w", err)
	}
	return nil
}

// LoadRestrict returns the persisted enforcement flag (false if unset)
func (s *Store) LoadRestrict() (bool, error) {
	data, closer, err := s.db.Get([]byte(keyRestrict))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get restriction flag: %w", err)
	}
	defer closer.Close()
	return len(data) == 1 && data[0] == 1, nil
}

// Emit appends an event to the journal, assigning it the next sequence
// number. Journal writes use NoSync: events are derivable from the order
// table, so losing the tail on a crash is acceptable.
// Implements events.Sink.
func (s *Store) Emit(ev events.Event) {
	s.evtMu.Lock()
	defer s.evtMu.Unlock()

	seq := s.evtSeq + 1
	ev.Seq = seq

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(eventKey(seq), data, nil); err != nil {
		return
	}
	if err := batch.Set([]byte(keyEventSeq), encodeUint64(seq), nil); err != nil {
		return
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return
	}
	s.evtSeq = seq
}

// LoadRecentEvents returns the most recent N journal entries,
// newest first
func (s *Store) LoadRecentEvents(limit int) ([]events.Event, error) {
	prefix := []byte(prefixEvent)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open event iterator: %w", err)
	}
	defer iter.Close()

	var evs []events.Event
	for iter.Last(); iter.Valid() && len(evs) < limit; iter.Prev() {
		var ev events.Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			continue // Skip invalid entries
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

func (s *Store) loadCounter(key string) (uint64, error) {
	data, closer, err := s.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter %s: %w", key, err)
	}
	defer closer.Close()

	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt counter %s: %d bytes", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
