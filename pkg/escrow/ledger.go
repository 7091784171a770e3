package escrow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/altv2/swapledger/pkg/asset"
	"github.com/altv2/swapledger/pkg/events"
)

// TokenResolver resolves asset identifiers to transfer primitives.
// *asset.Bank satisfies this.
type TokenResolver interface {
	Resolve(id common.Address) (asset.Token, error)
}

// AdmissionChecker answers whether an asset is on the trading allow-list.
// *asset.Registry satisfies this.
type AdmissionChecker interface {
	IsAdmitted(asset common.Address) bool
}

// Config wires a Ledger's collaborators. Store and Sink are optional;
// without a Store the ledger runs memory-only (tests).
type Config struct {
	Admin   common.Address // Administrator identity
	Custody common.Address // The ledger's own custody account
	Tokens  TokenResolver
	Assets  AdmissionChecker
	Store   *Store
	Sink    events.Sink
}

// Ledger owns the order table and custody of every active order's
// offered leg. All mutating entrypoints follow one discipline, which is
// the ledger's only concurrency control and its reentrancy defense:
//
//  1. validate and flip state under the mutex,
//  2. release the mutex,
//  3. only then issue the external token transfer,
//  4. on transfer failure, restore the prior state and abort.
//
// A token implementation that calls back into the ledger during its own
// transfer therefore observes the already-flipped state (an inactive
// order) and cannot double-spend the escrow. Because CancelOrder and
// ReleaseEscrow both guard on Active and flip it first, exactly one of
// them can win on any order.
type Ledger struct {
	mu       sync.RWMutex
	admin    common.Address
	custody  common.Address
	engine   common.Address // Registered settlement engine; zero = unset
	restrict bool
	seq      uint64 // Last assigned order id
	orders   map[uint64]*Order

	tokens TokenResolver
	assets AdmissionChecker
	store  *Store
	sink   events.Sink
}

// NewLedger creates a ledger, rehydrating the order table, the id
// counter, the engine identity, and the enforcement flag from the store
// when one is configured.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("ledger requires a token resolver")
	}
	if cfg.Assets == nil {
		return nil, fmt.Errorf("ledger requires an admission checker")
	}

	l := &Ledger{
		admin:   cfg.Admin,
		custody: cfg.Custody,
		orders:  make(map[uint64]*Order),
		tokens:  cfg.Tokens,
		assets:  cfg.Assets,
		store:   cfg.Store,
		sink:    cfg.Sink,
	}

	if cfg.Store != nil {
		orders, err := cfg.Store.LoadAllOrders()
		if err != nil {
			return nil, fmt.Errorf("rehydrate orders: %w", err)
		}
		seq, err := cfg.Store.LoadOrderSeq()
		if err != nil {
			return nil, fmt.Errorf("rehydrate order seq: %w", err)
		}
		engine, err := cfg.Store.LoadEngine()
		if err != nil {
			return nil, fmt.Errorf("rehydrate engine identity: %w", err)
		}
		restrict, err := cfg.Store.LoadRestrict()
		if err != nil {
			return nil, fmt.Errorf("rehydrate restriction flag: %w", err)
		}
		l.orders = orders
		l.seq = seq
		l.engine = engine
		l.restrict = restrict
	}

	return l, nil
}

// Custody returns the ledger's custody account identity
func (l *Ledger) Custody() common.Address { return l.custody }

// Admin returns the administrator identity
func (l *Ledger) Admin() common.Address { return l.admin }

// CreateOrder escrows offeredAmount of offered from the caller and
// records a new active order. The pull is allowance-authorized: the
// caller must have approved the custody account as spender beforehand.
// Transfer failures (balance/allowance) propagate verbatim.
//
// The next id is allocated only after the pull succeeds, so the id
// sequence 1,2,3,… has no gaps from failed attempts.
func (l *Ledger) CreateOrder(caller, offered, requested common.Address, offeredAmount, requestedAmount int64) (uint64, error) {
	if offeredAmount <= 0 || requestedAmount <= 0 {
		return 0, fmt.Errorf("create order: %w", ErrInvalidAmount)
	}
	if offered == requested {
		return 0, fmt.Errorf("create order: %w", ErrSameAsset)
	}

	l.mu.RLock()
	restrict := l.restrict
	l.mu.RUnlock()

	if restrict {
		if !l.assets.IsAdmitted(offered) {
			return 0, fmt.Errorf("create order: %w", ErrOfferedAssetNotSupported)
		}
		if !l.assets.IsAdmitted(requested) {
			return 0, fmt.Errorf("create order: %w", ErrRequestedAssetNotSupported)
		}
	}

	tok, err := l.tokens.Resolve(offered)
	if err != nil {
		return 0, err
	}

	// Pull the offered leg into custody before any state is mutated:
	// a failed pull leaves the ledger untouched.
	if err := tok.TransferFrom(l.custody, caller, l.custody, offeredAmount); err != nil {
		return 0, err
	}

	now := time.Now().UTC()

	l.mu.Lock()
	ord := &Order{
		ID:              l.seq + 1,
		Creator:         caller,
		OfferedAsset:    offered,
		RequestedAsset:  requested,
		OfferedAmount:   offeredAmount,
		RequestedAmount: requestedAmount,
		Active:          true,
		CreatedAt:       now.UnixMilli(),
		UpdatedAt:       now.UnixMilli(),
	}
	if l.store != nil {
		if err := l.store.SaveNewOrder(ord); err != nil {
			l.mu.Unlock()
			// Persistence failed; hand the escrowed leg back.
			_ = tok.Transfer(l.custody, caller, offeredAmount)
			return 0, err
		}
	}
	l.seq = ord.ID
	l.orders[ord.ID] = ord
	l.mu.Unlock()

	l.emit(events.Event{
		Type:            events.TypeOrderCreated,
		OrderID:         ord.ID,
		Creator:         caller.Hex(),
		OfferedAsset:    offered.Hex(),
		RequestedAsset:  requested.Hex(),
		OfferedAmount:   offeredAmount,
		RequestedAmount: requestedAmount,
	})
	return ord.ID, nil
}

// CancelOrder deactivates a caller-owned order and returns the escrowed
// leg to the creator. The flip to inactive is recorded before the refund
// transfer is issued; a refund failure rolls the flip back and aborts.
func (l *Ledger) CancelOrder(caller common.Address, id uint64) error {
	l.mu.Lock()
	ord, exists := l.orders[id]
	if !exists {
		l.mu.Unlock()
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderNotFound)
	}
	if !ord.Active {
		l.mu.Unlock()
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderNotActive)
	}
	if ord.Creator != caller {
		l.mu.Unlock()
		return fmt.Errorf("cancel order %d: %w", id, ErrNotCreator)
	}
	if err := l.deactivateLocked(ord); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	tok, err := l.tokens.Resolve(ord.OfferedAsset)
	if err == nil {
		err = tok.Transfer(l.custody, ord.Creator, ord.OfferedAmount)
	}
	if err != nil {
		l.reactivate(ord)
		return err
	}

	l.emit(events.Event{Type: events.TypeOrderCancelled, OrderID: id})
	return nil
}

// ReleaseEscrow pays an active order's escrowed leg to recipient and
// retires the order. Privileged: only the registered settlement engine
// may call it. Guards on Active, so a release racing a cancel (or a
// second release) loses cleanly with ErrOrderNotActive.
// Emits OrderExecuted — the single emission point for execution, so the
// engine does not emit its own.
// Returns the order snapshot so the engine need not re-query.
func (l *Ledger) ReleaseEscrow(caller common.Address, id uint64, recipient common.Address) (Order, error) {
	l.mu.Lock()
	if l.engine == (common.Address{}) || caller != l.engine {
		l.mu.Unlock()
		return Order{}, fmt.Errorf("release escrow %d: %w", id, ErrUnauthorized)
	}
	ord, exists := l.orders[id]
	if !exists {
		l.mu.Unlock()
		return Order{}, fmt.Errorf("release escrow %d: %w", id, ErrOrderNotFound)
	}
	if !ord.Active {
		l.mu.Unlock()
		return Order{}, fmt.Errorf("release escrow %d: %w", id, ErrOrderNotActive)
	}
	if err := l.deactivateLocked(ord); err != nil {
		l.mu.Unlock()
		return Order{}, err
	}
	snapshot := *ord
	l.mu.Unlock()

	tok, err := l.tokens.Resolve(ord.OfferedAsset)
	if err == nil {
		err = tok.Transfer(l.custody, recipient, ord.OfferedAmount)
	}
	if err != nil {
		l.reactivate(ord)
		return Order{}, err
	}

	l.emit(events.Event{
		Type:      events.TypeOrderExecuted,
		OrderID:   id,
		Recipient: recipient.Hex(),
	})
	return snapshot, nil
}

// deactivateLocked flips an order inactive and persists the flip
// (assumes lock is held). The persisted flip is the durable effect that
// must land before any external transfer.
func (l *Ledger) deactivateLocked(ord *Order) error {
	ord.Active = false
	ord.UpdatedAt = time.Now().UTC().UnixMilli()
	if l.store != nil {
		if err := l.store.SaveOrder(ord); err != nil {
			ord.Active = true
			return err
		}
	}
	return nil
}

// reactivate rolls back a deactivation whose follow-up transfer failed
func (l *Ledger) reactivate(ord *Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ord.Active = true
	ord.UpdatedAt = time.Now().UTC().UnixMilli()
	if l.store != nil {
		_ = l.store.SaveOrder(ord)
	}
}

// SetSettlementEngine registers the one identity authorized to call
// ReleaseEscrow. Administrator-only; re-settable.
func (l *Ledger) SetSettlementEngine(caller, engine common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.admin {
		return fmt.Errorf("set settlement engine: %w", ErrUnauthorized)
	}
	if l.store != nil {
		if err := l.store.SaveEngine(engine); err != nil {
			return err
		}
	}
	l.engine = engine
	return nil
}

// SettlementEngine returns the registered engine identity
// (zero address if unset)
func (l *Ledger) SettlementEngine() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.engine
}

// ToggleRestriction flips asset-admission enforcement. Administrator-only.
func (l *Ledger) ToggleRestriction(caller common.Address, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.admin {
		return fmt.Errorf("toggle restriction: %w", ErrUnauthorized)
	}
	if l.store != nil {
		if err := l.store.SaveRestrict(enabled); err != nil {
			return err
		}
	}
	l.restrict = enabled
	return nil
}

// RestrictionEnabled reports whether asset admission is enforced
func (l *Ledger) RestrictionEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.restrict
}

// GetOrder returns a snapshot of an order by id
func (l *Ledger) GetOrder(id uint64) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ord, exists := l.orders[id]
	if !exists {
		return Order{}, fmt.Errorf("get order %d: %w", id, ErrOrderNotFound)
	}
	return *ord, nil
}

// OrderCount returns the number of orders ever created
func (l *Ledger) OrderCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// ListOrders returns snapshots of all orders, ascending by id
func (l *Ledger) ListOrders() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	orders := make([]Order, 0, len(l.orders))
	for _, ord := range l.orders {
		orders = append(orders, *ord)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

// ListActiveOrders returns snapshots of orders still open for execution,
// ascending by id
func (l *Ledger) ListActiveOrders() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	orders := make([]Order, 0)
	for _, ord := range l.orders {
		if ord.Active {
			orders = append(orders, *ord)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

func (l *Ledger) emit(ev events.Event) {
	if l.sink == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	l.sink.Emit(ev)
}
