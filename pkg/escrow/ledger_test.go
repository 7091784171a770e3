package escrow

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/altv2/swapledger/pkg/asset"
)

var (
	admin   = common.HexToAddress("0xAD00000000000000000000000000000000000000")
	alice   = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob     = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	custody = common.HexToAddress("0xCC00000000000000000000000000000000000000")
	engine  = common.HexToAddress("0xEE00000000000000000000000000000000000000")

	tokenA = common.HexToAddress("0x1A00000000000000000000000000000000000000")
	tokenB = common.HexToAddress("0x1B00000000000000000000000000000000000000")
)

type fixture struct {
	bank     *asset.Bank
	registry *asset.Registry
	ledger   *Ledger
	tkA      *asset.StandardToken
	tkB      *asset.StandardToken
}

// newFixture builds a memory-only ledger with two admitted tokens,
// alice funded with 10000 A and bob with 10000 B, both with custody
// approved for the full amount.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	bank := asset.NewBank()
	registry := asset.NewRegistry(admin, nil)

	tkA := asset.NewStandardToken(tokenA, "Token A", "TKA", admin)
	tkB := asset.NewStandardToken(tokenB, "Token B", "TKB", admin)
	for _, tok := range []*asset.StandardToken{tkA, tkB} {
		if err := bank.Register(tok); err != nil {
			t.Fatalf("register token: %v", err)
		}
		if err := registry.AddAsset(admin, tok.Meta().ID); err != nil {
			t.Fatalf("admit token: %v", err)
		}
	}

	ledger, err := NewLedger(Config{
		Admin:   admin,
		Custody: custody,
		Tokens:  bank,
		Assets:  registry,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := ledger.SetSettlementEngine(admin, engine); err != nil {
		t.Fatalf("set engine: %v", err)
	}

	if err := tkA.Mint(admin, alice, 10000); err != nil {
		t.Fatalf("mint A: %v", err)
	}
	if err := tkB.Mint(admin, bob, 10000); err != nil {
		t.Fatalf("mint B: %v", err)
	}
	if err := tkA.Approve(alice, custody, 10000); err != nil {
		t.Fatalf("approve A: %v", err)
	}

	return &fixture{bank: bank, registry: registry, ledger: ledger, tkA: tkA, tkB: tkB}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	id, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 100, 200)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if id != 1 {
		t.Errorf("first order id = %d, want 1", id)
	}

	ord, err := f.ledger.GetOrder(id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if ord.Creator != alice {
		t.Errorf("creator = %s, want %s", ord.Creator.Hex(), alice.Hex())
	}
	if ord.OfferedAsset != tokenA || ord.RequestedAsset != tokenB {
		t.Errorf("assets = %s/%s, want %s/%s", ord.OfferedAsset.Hex(), ord.RequestedAsset.Hex(), tokenA.Hex(), tokenB.Hex())
	}
	if ord.OfferedAmount != 100 || ord.RequestedAmount != 200 {
		t.Errorf("amounts = %d/%d, want 100/200", ord.OfferedAmount, ord.RequestedAmount)
	}
	if !ord.Active {
		t.Error("new order should be active")
	}

	// Escrow conservation: custody gained exactly what alice lost
	if got := f.tkA.BalanceOf(custody); got != 100 {
		t.Errorf("custody balance = %d, want 100", got)
	}
	if got := f.tkA.BalanceOf(alice); got != 9900 {
		t.Errorf("alice balance = %d, want 9900", got)
	}
}

func TestOrderIDMonotonicity(t *testing.T) {
	f := newFixture(t)

	for want := uint64(1); want <= 5; want++ {
		id, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 10, 20)
		if err != nil {
			t.Fatalf("create order %d: %v", want, err)
		}
		if id != want {
			t.Fatalf("order id = %d, want %d", id, want)
		}
	}

	// A failed creation must not burn an id
	if _, err := f.ledger.CreateOrder(bob, tokenA, tokenB, 10, 20); err == nil {
		t.Fatal("expected create to fail for unfunded bob")
	}
	id, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 10, 20)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if id != 6 {
		t.Errorf("order id after failed create = %d, want 6", id)
	}
	if count := f.ledger.OrderCount(); count != 6 {
		t.Errorf("order count = %d, want 6", count)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name               string
		offered, requested common.Address
		offAmt, reqAmt     int64
		wantErr            error
	}{
		{"zero offered amount", tokenA, tokenB, 0, 200, ErrInvalidAmount},
		{"zero requested amount", tokenA, tokenB, 100, 0, ErrInvalidAmount},
		{"negative offered amount", tokenA, tokenB, -5, 200, ErrInvalidAmount},
		{"same asset", tokenA, tokenA, 100, 200, ErrSameAsset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.CreateOrder(alice, tc.offered, tc.requested, tc.offAmt, tc.reqAmt)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}

	if count := f.ledger.OrderCount(); count != 0 {
		t.Errorf("order count after rejected creates = %d, want 0", count)
	}
}

func TestCreateOrderAdmissionGating(t *testing.T) {
	f := newFixture(t)

	outsider := common.HexToAddress("0x1C00000000000000000000000000000000000000")
	tkC := asset.NewStandardToken(outsider, "Token C", "TKC", admin)
	if err := f.bank.Register(tkC); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tkC.Mint(admin, alice, 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tkC.Approve(alice, custody, 1000); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := f.ledger.CreateOrder(alice, outsider, tokenB, 100, 200)
	if !errors.Is(err, ErrOfferedAssetNotSupported) {
		t.Errorf("offered side err = %v, want ErrOfferedAssetNotSupported", err)
	}
	if !errors.Is(err, ErrAssetNotSupported) {
		t.Errorf("offered side err should match the common sentinel, got %v", err)
	}

	_, err = f.ledger.CreateOrder(alice, tokenA, outsider, 100, 200)
	if !errors.Is(err, ErrRequestedAssetNotSupported) {
		t.Errorf("requested side err = %v, want ErrRequestedAssetNotSupported", err)
	}

	// Admitting the asset makes the identical call succeed
	if err := f.registry.AddAsset(admin, outsider); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	if _, err := f.ledger.CreateOrder(alice, outsider, tokenB, 100, 200); err != nil {
		t.Errorf("create after admission failed: %v", err)
	}
}

func TestCreateOrderRestrictionDisabled(t *testing.T) {
	f := newFixture(t)

	if err := f.ledger.ToggleRestriction(admin, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	// Registered but not admitted: passes once enforcement is off
	outsider := common.HexToAddress("0x1C00000000000000000000000000000000000000")
	tkC := asset.NewStandardToken(outsider, "Token C", "TKC", admin)
	if err := f.bank.Register(tkC); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tkC.Mint(admin, alice, 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tkC.Approve(alice, custody, 1000); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.ledger.CreateOrder(alice, outsider, tokenB, 100, 200); err != nil {
		t.Errorf("create with restriction off failed: %v", err)
	}
}

func TestCreateOrderInsufficientAllowance(t *testing.T) {
	f := newFixture(t)

	if err := f.tkA.Approve(alice, custody, 50); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 100, 200)
	if !errors.Is(err, asset.ErrInsufficientAllowance) {
		t.Errorf("err = %v, want the token's ErrInsufficientAllowance verbatim", err)
	}
}

func TestCancelOrderRoundTrip(t *testing.T) {
	f := newFixture(t)

	id, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 100, 200)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := f.ledger.CancelOrder(alice, id); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	// Creator's balance fully restored, custody drained
	if got := f.tkA.BalanceOf(alice); got != 10000 {
		t.Errorf("alice balance = %d, want 10000", got)
	}
	if got := f.tkA.BalanceOf(custody); got != 0 {
		t.Errorf("custody balance = %d, want 0", got)
	}

	ord, err := f.ledger.GetOrder(id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if ord.Active {
		t.Error("cancelled order should be inactive")
	}
}

func TestCancelOrderErrors(t *testing.T) {
	f := newFixture(t)

	id, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 100, 200)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := f.ledger.CancelOrder(alice, 999); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("unknown id err = %v, want ErrOrderNotFound", err)
	}

	// Non-creator cancel fails, order stays active
	if err := f.ledger.CancelOrder(bob, id); !errors.Is(err, ErrNotCreator) {
		t.Errorf("non-creator err = %v, want ErrNotCreator", err)
	}
	if ord, _ := f.ledger.GetOrder(id); !ord.Active {
		t.Error("order should remain active after rejected cancel")
	}

	// Second cancel fails with NotActive
	if err := f.ledger.CancelOrder(alice, id); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := f.ledger.CancelOrder(alice, id); !errors.Is(err, ErrOrderNotActive) {
		t.Errorf("double cancel err = %v, want ErrOrderNotActive", err)
	}
}

func TestReleaseEscrow(t *testing.T) {
	f := newFixture(t)

	id, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 100, 200)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	snapshot, err := f.ledger.ReleaseEscrow(engine, id, bob)
	if err != nil {
		t.Fatalf("release escrow: %v", err)
	}
	if snapshot.OfferedAmount != 100 || snapshot.RequestedAmount != 200 {
		t.Errorf("snapshot amounts = %d/%d, want 100/200", snapshot.OfferedAmount, snapshot.RequestedAmount)
	}

	if got := f.tkA.BalanceOf(bob); got != 100 {
		t.Errorf("recipient balance = %d, want 100", got)
	}
	if ord, _ := f.ledger.GetOrder(id); ord.Active {
		t.Error("released order should be inactive")
	}

	// Double release is rejected
	if _, err := f.ledger.ReleaseEscrow(engine, id, bob); !errors.Is(err, ErrOrderNotActive) {
		t.Errorf("double release err = %v, want ErrOrderNotActive", err)
	}
}

func TestReleaseEscrowAuthorization(t *testing.T) {
	f := newFixture(t)

	id, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 100, 200)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := f.ledger.ReleaseEscrow(bob, id, bob); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-engine release err = %v, want ErrUnauthorized", err)
	}
	if ord, _ := f.ledger.GetOrder(id); !ord.Active {
		t.Error("order should remain active after rejected release")
	}
}

func TestReleaseEscrowUnsetEngine(t *testing.T) {
	f := newFixture(t)

	// Re-point the ledger at no engine: the zero address never matches
	ledger, err := NewLedger(Config{
		Admin:   admin,
		Custody: custody,
		Tokens:  f.bank,
		Assets:  f.registry,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	id, err := ledger.CreateOrder(alice, tokenA, tokenB, 100, 200)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := ledger.ReleaseEscrow(common.Address{}, id, bob); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("zero-caller release err = %v, want ErrUnauthorized", err)
	}
}

func TestAdminGuards(t *testing.T) {
	f := newFixture(t)

	if err := f.ledger.ToggleRestriction(alice, false); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("toggle by non-admin err = %v, want ErrUnauthorized", err)
	}
	if err := f.ledger.SetSettlementEngine(alice, alice); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("set engine by non-admin err = %v, want ErrUnauthorized", err)
	}

	// Re-settable by the admin
	other := common.HexToAddress("0xEF00000000000000000000000000000000000000")
	if err := f.ledger.SetSettlementEngine(admin, other); err != nil {
		t.Fatalf("re-set engine: %v", err)
	}
	if got := f.ledger.SettlementEngine(); got != other {
		t.Errorf("engine = %s, want %s", got.Hex(), other.Hex())
	}
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		if _, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 10, 20); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	if err := f.ledger.CancelOrder(alice, 2); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	all := f.ledger.ListOrders()
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	for i, ord := range all {
		if ord.ID != uint64(i+1) {
			t.Errorf("all[%d].ID = %d, want %d", i, ord.ID, i+1)
		}
	}

	active := f.ledger.ListActiveOrders()
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}
	if active[0].ID != 1 || active[1].ID != 3 {
		t.Errorf("active ids = %d,%d, want 1,3", active[0].ID, active[1].ID)
	}
}

// escrowInvariant checks that custody holds at least the sum of offered
// amounts over active orders, per asset.
func escrowInvariant(t *testing.T, l *Ledger, bank *asset.Bank, custody common.Address) {
	t.Helper()

	need := make(map[common.Address]int64)
	for _, ord := range l.ListActiveOrders() {
		need[ord.OfferedAsset] += ord.OfferedAmount
	}
	for id, want := range need {
		tok, err := bank.Resolve(id)
		if err != nil {
			t.Fatalf("resolve %s: %v", id.Hex(), err)
		}
		if got := tok.BalanceOf(custody); got < want {
			t.Errorf("custody balance of %s = %d, below active escrow %d", id.Hex(), got, want)
		}
	}
}

func TestEscrowConservationAcrossLifecycle(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 4; i++ {
		if _, err := f.ledger.CreateOrder(alice, tokenA, tokenB, 100, 200); err != nil {
			t.Fatalf("create order: %v", err)
		}
		escrowInvariant(t, f.ledger, f.bank, custody)
	}

	if err := f.ledger.CancelOrder(alice, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	escrowInvariant(t, f.ledger, f.bank, custody)

	if _, err := f.ledger.ReleaseEscrow(engine, 2, bob); err != nil {
		t.Fatalf("release: %v", err)
	}
	escrowInvariant(t, f.ledger, f.bank, custody)

	// Equality holds absent external interference
	if got := f.tkA.BalanceOf(custody); got != 200 {
		t.Errorf("custody balance = %d, want 200 (orders 3 and 4)", got)
	}
}
