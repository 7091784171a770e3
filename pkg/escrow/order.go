package escrow

import (
	"github.com/ethereum/go-ethereum/common"
)

// Order is a standing, fixed-rate offer to exchange OfferedAmount of
// OfferedAsset for RequestedAmount of RequestedAsset. The offered leg is
// held in ledger custody from creation until the order leaves the Active
// state.
//
// Lifecycle: Active → Cancelled (creator) or Active → Executed (settlement
// engine). Both transitions are terminal; orders are never deleted, only
// deactivated, so the table doubles as an audit log.
type Order struct {
	ID      uint64         `json:"id"`      // Monotonic, assigned at creation, never reused
	Creator common.Address `json:"creator"` // Party that posted the order; immutable

	OfferedAsset   common.Address `json:"offeredAsset"`
	RequestedAsset common.Address `json:"requestedAsset"`

	// Amounts in smallest-denomination units of the respective asset
	OfferedAmount   int64 `json:"offeredAmount"`
	RequestedAmount int64 `json:"requestedAmount"`

	// Active starts true and flips false exactly once, on cancellation
	// or execution
	Active bool `json:"active"`

	// Timestamps (Unix milliseconds)
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}
