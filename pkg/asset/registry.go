package asset

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/altv2/swapledger/pkg/events"
)

// Registry maintains the allow-list of assets eligible for trading.
// The administrator identity is held as data and compared against the
// caller identity passed explicitly into every admin-guarded call; there
// is no implicit current-user context.
//
// Whether the allow-list is enforced is not the registry's concern: the
// escrow ledger owns the enforcement flag and consults IsAdmitted here.
type Registry struct {
	mu       sync.RWMutex
	admin    common.Address
	admitted map[common.Address]bool
	sink     events.Sink
}

// NewRegistry creates a registry with an empty allow-list
func NewRegistry(admin common.Address, sink events.Sink) *Registry {
	return &Registry{
		admin:    admin,
		admitted: make(map[common.Address]bool),
		sink:     sink,
	}
}

// AddAsset admits an asset for trading. Administrator-only.
// Emits AssetAdded.
func (r *Registry) AddAsset(caller, asset common.Address) error {
	r.mu.Lock()
	if caller != r.admin {
		r.mu.Unlock()
		return fmt.Errorf("add asset: %w", ErrUnauthorized)
	}
	if r.admitted[asset] {
		r.mu.Unlock()
		return fmt.Errorf("add asset %s: %w", asset.Hex(), ErrAlreadyAdmitted)
	}
	r.admitted[asset] = true
	r.mu.Unlock()

	r.emit(events.Event{Type: events.TypeAssetAdded, Asset: asset.Hex()})
	return nil
}

// RemoveAsset drops an asset from the allow-list. Administrator-only.
// Open orders in the asset are unaffected; removal only gates new orders.
// Emits AssetRemoved.
func (r *Registry) RemoveAsset(caller, asset common.Address) error {
	r.mu.Lock()
	if caller != r.admin {
		r.mu.Unlock()
		return fmt.Errorf("remove asset: %w", ErrUnauthorized)
	}
	if !r.admitted[asset] {
		r.mu.Unlock()
		return fmt.Errorf("remove asset %s: %w", asset.Hex(), ErrNotAdmitted)
	}
	delete(r.admitted, asset)
	r.mu.Unlock()

	r.emit(events.Event{Type: events.TypeAssetRemoved, Asset: asset.Hex()})
	return nil
}

// IsAdmitted reports whether an asset is on the allow-list
func (r *Registry) IsAdmitted(asset common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admitted[asset]
}

// Admin returns the administrator identity
func (r *Registry) Admin() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}

// ListAdmitted returns all admitted asset ids
// Returns a snapshot copy to avoid holding the lock
func (r *Registry) ListAdmitted() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assets := make([]common.Address, 0, len(r.admitted))
	for asset := range r.admitted {
		assets = append(assets, asset)
	}
	return assets
}

func (r *Registry) emit(ev events.Event) {
	if r.sink == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	r.sink.Emit(ev)
}
