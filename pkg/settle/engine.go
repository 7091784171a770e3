// Package settle orchestrates the second leg of a trade and triggers
// release of the escrowed first leg.
package settle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/altv2/swapledger/pkg/escrow"
)

// ErrSelfExecution rejects a creator filling its own order
var ErrSelfExecution = errors.New("cannot execute your own order")

// EscrowLedger is the slice of the ledger the engine needs.
// *escrow.Ledger satisfies this.
type EscrowLedger interface {
	GetOrder(id uint64) (escrow.Order, error)
	ReleaseEscrow(caller common.Address, id uint64, recipient common.Address) (escrow.Order, error)
}

// Engine settles orders. It holds its own identity — the capability the
// ledger's privileged release path is registered against — but never
// holds custody of either asset: the requested leg moves caller→creator
// directly, and the offered leg moves custody→caller inside the ledger.
type Engine struct {
	identity common.Address
	ledger   EscrowLedger
	tokens   escrow.TokenResolver
}

// NewEngine creates a settlement engine. The identity must be registered
// with the ledger via SetSettlementEngine before ExecuteOrder can
// release escrow.
func NewEngine(identity common.Address, ledger EscrowLedger, tokens escrow.TokenResolver) *Engine {
	return &Engine{identity: identity, ledger: ledger, tokens: tokens}
}

// Identity returns the engine's capability identity
func (e *Engine) Identity() common.Address { return e.identity }

// ExecuteOrder atomically completes both legs of an order:
//
//	leg 1: requestedAmount of requestedAsset, caller → creator
//	       (allowance-authorized; caller must have approved the engine)
//	leg 2: ReleaseEscrow pays the escrowed offeredAmount to the caller
//	       and retires the order
//
// If the release fails after leg 1 moved funds, leg 1 is unwound before
// returning, so no partial settlement is observable. The ledger's
// active-flag guard makes the release the exactly-once point: however
// many executions race on one order, escrow pays out a single time.
// Transfer failures on leg 1 propagate verbatim.
// OrderExecuted is emitted by the ledger inside ReleaseEscrow.
func (e *Engine) ExecuteOrder(caller common.Address, id uint64) error {
	ord, err := e.ledger.GetOrder(id)
	if err != nil {
		return err
	}
	if !ord.Active {
		return fmt.Errorf("execute order %d: %w", id, escrow.ErrOrderNotActive)
	}
	if caller == ord.Creator {
		return fmt.Errorf("execute order %d: %w", id, ErrSelfExecution)
	}

	tok, err := e.tokens.Resolve(ord.RequestedAsset)
	if err != nil {
		return err
	}

	if err := tok.TransferFrom(e.identity, caller, ord.Creator, ord.RequestedAmount); err != nil {
		return err
	}

	if _, err := e.ledger.ReleaseEscrow(e.identity, id, caller); err != nil {
		// Unwind leg 1 so the aborted settlement leaves no trace. The
		// creator just received these funds, so the refund cannot fail
		// for balance with a well-behaved token.
		if refundErr := tok.Transfer(ord.Creator, caller, ord.RequestedAmount); refundErr != nil {
			return fmt.Errorf("release failed (%w) and refund failed: %v", err, refundErr)
		}
		return err
	}
	return nil
}
