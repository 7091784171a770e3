package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Meta describes a token's static identity
type Meta struct {
	ID     common.Address // Asset identifier (20-byte address)
	Name   string         // Human-readable name (e.g., "Token A")
	Symbol string         // Ticker symbol (e.g., "TKA")
}

// Token is the allowance-authorized transfer primitive the ledger moves
// funds through. Implementations must return ErrInsufficientBalance /
// ErrInsufficientAllowance (or wrap them) so callers can tell an asset
// rejection apart from a ledger rejection.
//
// All amounts are int64 units of the asset's smallest denomination.
type Token interface {
	Meta() Meta
	BalanceOf(holder common.Address) int64
	Allowance(owner, spender common.Address) int64

	// Approve authorizes spender to move up to amount on owner's behalf.
	Approve(owner, spender common.Address, amount int64) error

	// Transfer moves amount from from to to. The caller is trusted to
	// act for from (in-process model: sender identity is explicit).
	Transfer(from, to common.Address, amount int64) error

	// TransferFrom moves amount from from to to, spending spender's
	// allowance granted by from.
	TransferFrom(spender, from, to common.Address, amount int64) error
}

// StandardToken is an in-memory fungible token with mint gated to its
// issuer. Thread-safe.
type StandardToken struct {
	mu         sync.RWMutex
	meta       Meta
	issuer     common.Address
	balances   map[common.Address]int64
	allowances map[common.Address]map[common.Address]int64
}

// NewStandardToken creates a token with zero supply
func NewStandardToken(id common.Address, name, symbol string, issuer common.Address) *StandardToken {
	return &StandardToken{
		meta:       Meta{ID: id, Name: name, Symbol: symbol},
		issuer:     issuer,
		balances:   make(map[common.Address]int64),
		allowances: make(map[common.Address]map[common.Address]int64),
	}
}

func (t *StandardToken) Meta() Meta { return t.meta }

func (t *StandardToken) BalanceOf(holder common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[holder]
}

func (t *StandardToken) Allowance(owner, spender common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

// Mint credits amount to recipient. Issuer-only.
func (t *StandardToken) Mint(caller, recipient common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("mint %s: %w: %d", t.meta.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.issuer {
		return fmt.Errorf("mint %s: %w", t.meta.Symbol, ErrUnauthorized)
	}
	t.balances[recipient] += amount
	return nil
}

func (t *StandardToken) Approve(owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("approve %s: %w: %d", t.meta.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]int64)
	}
	t.allowances[owner][spender] = amount
	return nil
}

func (t *StandardToken) Transfer(from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer %s: %w: %d", t.meta.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moveLocked(from, to, amount)
}

func (t *StandardToken) TransferFrom(spender, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transferFrom %s: %w: %d", t.meta.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[from][spender]
	if allowed < amount {
		return fmt.Errorf("transferFrom %s: %w: allowed %d, need %d", t.meta.Symbol, ErrInsufficientAllowance, allowed, amount)
	}
	if err := t.moveLocked(from, to, amount); err != nil {
		return err
	}
	// Spend allowance only after the balance move succeeded
	t.allowances[from][spender] = allowed - amount
	return nil
}

// moveLocked debits from and credits to (assumes lock is held)
func (t *StandardToken) moveLocked(from, to common.Address, amount int64) error {
	bal := t.balances[from]
	if bal < amount {
		return fmt.Errorf("transfer %s: %w: have %d, need %d", t.meta.Symbol, ErrInsufficientBalance, bal, amount)
	}
	t.balances[from] = bal - amount
	t.balances[to] += amount
	return nil
}

// Bank resolves asset identifiers to their Token implementations.
// The escrow ledger and settlement engine never hold token references
// directly; they look assets up here per call.
type Bank struct {
	mu     sync.RWMutex
	tokens map[common.Address]Token
}

// NewBank creates an empty bank
func NewBank() *Bank {
	return &Bank{tokens: make(map[common.Address]Token)}
}

// Register adds a token under its own asset id.
// Returns error if the id is already taken.
func (b *Bank) Register(tok Token) error {
	if tok == nil {
		return fmt.Errorf("cannot register nil token")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := tok.Meta().ID
	if _, exists := b.tokens[id]; exists {
		return fmt.Errorf("token %s already registered", id.Hex())
	}
	b.tokens[id] = tok
	return nil
}

// Resolve returns the token for an asset id
func (b *Bank) Resolve(id common.Address) (Token, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tok, exists := b.tokens[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id.Hex())
	}
	return tok, nil
}

// List returns all registered tokens
// Returns a snapshot copy to avoid holding the lock
func (b *Bank) List() []Token {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tokens := make([]Token, 0, len(b.tokens))
	for _, tok := range b.tokens {
		tokens = append(tokens, tok)
	}
	return tokens
}
