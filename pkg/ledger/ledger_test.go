package ledger

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	weth  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := OpenMemStore()
	if err != nil {
		t.Fatalf("OpenMemStore: %v", err)
	}
	l, err := Open(store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	tx := l.Begin()
	mustNoErr(t, tx.RegisterToken(Token{Address: usdc, Symbol: "USDC", Decimals: 6}))
	mustNoErr(t, tx.RegisterToken(Token{Address: weth, Symbol: "WETH", Decimals: 18}))
	mustNoErr(t, tx.Mint(usdc, alice, big.NewInt(1_000)))
	mustNoErr(t, tx.Commit())
	return l
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestCommitPublishes(t *testing.T) {
	l := newTestLedger(t)

	tx := l.Begin()
	mustNoErr(t, tx.Transfer(usdc, alice, bob, big.NewInt(300)))
	tx.MarkNonceUsed(alice, big.NewInt(7))
	tx.Record(alice, big.NewInt(7), []byte(`{"ok":true}`))

	// Nothing is visible outside the Tx before Commit
	if got := l.BalanceOf(usdc, bob); got.Sign() != 0 {
		t.Errorf("uncommitted balance visible: %s", got)
	}
	if got := tx.BalanceOf(usdc, bob); got.Int64() != 300 {
		t.Errorf("tx balance = %s, want 300", got)
	}
	if l.NonceUsed(alice, big.NewInt(7)) {
		t.Error("uncommitted nonce visible")
	}

	mustNoErr(t, tx.Commit())

	if got := l.BalanceOf(usdc, alice); got.Int64() != 700 {
		t.Errorf("alice = %s, want 700", got)
	}
	if got := l.BalanceOf(usdc, bob); got.Int64() != 300 {
		t.Errorf("bob = %s, want 300", got)
	}
	if !l.NonceUsed(alice, big.NewInt(7)) {
		t.Error("nonce not marked after commit")
	}
	if rec, ok := l.Execution(alice, big.NewInt(7)); !ok || string(rec) != `{"ok":true}` {
		t.Errorf("execution = %q, %v", rec, ok)
	}
	if err := tx.Commit(); !errors.Is(err, ErrTxDone) {
		t.Errorf("second Commit = %v, want ErrTxDone", err)
	}
}

func TestRollbackDiscards(t *testing.T) {
	l := newTestLedger(t)

	tx := l.Begin()
	mustNoErr(t, tx.Transfer(usdc, alice, bob, big.NewInt(1_000)))
	tx.MarkNonceUsed(alice, big.NewInt(1))
	tx.Rollback()
	tx.Rollback() // no-op

	if got := l.BalanceOf(usdc, alice); got.Int64() != 1_000 {
		t.Errorf("alice = %s, want 1000", got)
	}
	if l.NonceUsed(alice, big.NewInt(1)) {
		t.Error("rolled back nonce is marked")
	}

	// the lock was released
	tx = l.Begin()
	tx.Rollback()
}

func TestTransferErrors(t *testing.T) {
	l := newTestLedger(t)
	tx := l.Begin()
	defer tx.Rollback()

	if err := tx.Transfer(usdc, alice, bob, big.NewInt(1_001)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw = %v, want ErrInsufficientBalance", err)
	}
	if err := tx.Transfer(usdc, alice, bob, big.NewInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("negative = %v, want ErrNegativeAmount", err)
	}
	unknown := common.HexToAddress("0xdead")
	if err := tx.Mint(unknown, alice, big.NewInt(1)); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("unknown token = %v, want ErrUnknownToken", err)
	}
	if err := tx.RegisterToken(Token{Address: usdc, Symbol: "USDC", Decimals: 6}); !errors.Is(err, ErrTokenExists) {
		t.Errorf("duplicate token = %v, want ErrTokenExists", err)
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	l := newTestLedger(t)
	tx := l.Begin()
	defer tx.Rollback()

	if err := tx.TransferFrom(usdc, bob, alice, bob, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("without approval = %v, want ErrInsufficientAllowance", err)
	}

	mustNoErr(t, tx.Approve(usdc, alice, bob, big.NewInt(500)))
	mustNoErr(t, tx.TransferFrom(usdc, bob, alice, bob, big.NewInt(200)))

	if got := tx.Allowance(usdc, alice, bob); got.Int64() != 300 {
		t.Errorf("allowance = %s, want 300", got)
	}
	if got := tx.BalanceOf(usdc, bob); got.Int64() != 200 {
		t.Errorf("bob = %s, want 200", got)
	}

	// allowance is checked before balance, balance still bounds it
	mustNoErr(t, tx.Approve(usdc, alice, bob, big.NewInt(10_000)))
	if err := tx.TransferFrom(usdc, bob, alice, bob, big.NewInt(5_000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw via allowance = %v, want ErrInsufficientBalance", err)
	}
}

func TestPools(t *testing.T) {
	l := newTestLedger(t)
	pool := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	tx := l.Begin()
	if err := tx.SetTick(pool, 1); !errors.Is(err, ErrUnknownPool) {
		t.Errorf("SetTick on missing pool = %v", err)
	}
	mustNoErr(t, tx.RegisterPool(Pool{Address: pool, Token0: usdc, Token1: weth, Fee: 500, Tick: 10}))
	if err := tx.RegisterPool(Pool{Address: pool, Token0: usdc, Token1: weth, Fee: 500}); !errors.Is(err, ErrPoolExists) {
		t.Errorf("duplicate pool = %v", err)
	}
	mustNoErr(t, tx.SetTick(pool, -20))
	mustNoErr(t, tx.Commit())

	p, ok := l.Pool(pool)
	if !ok || p.Tick != -20 || p.Fee != 500 {
		t.Errorf("pool = %+v, %v", p, ok)
	}
	if len(l.Pools()) != 1 || len(l.Tokens()) != 2 {
		t.Errorf("pools=%d tokens=%d", len(l.Pools()), len(l.Tokens()))
	}
}

func TestReopenLoadsState(t *testing.T) {
	dir := t.TempDir()
	log := zap.NewNop().Sugar()

	store, err := OpenStore(dir)
	mustNoErr(t, err)
	l, err := Open(store, log)
	mustNoErr(t, err)

	pool := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	tx := l.Begin()
	mustNoErr(t, tx.RegisterToken(Token{Address: usdc, Symbol: "USDC", Decimals: 6}))
	mustNoErr(t, tx.RegisterToken(Token{Address: weth, Symbol: "WETH", Decimals: 18}))
	mustNoErr(t, tx.RegisterPool(Pool{Address: pool, Token0: usdc, Token1: weth, Fee: 3000, Tick: -42}))
	mustNoErr(t, tx.Mint(weth, alice, big.NewInt(5)))
	mustNoErr(t, tx.Approve(weth, alice, bob, big.NewInt(3)))
	tx.MarkNonceUsed(alice, big.NewInt(99))
	tx.Record(alice, big.NewInt(99), []byte(`{"nonce":"99"}`))
	mustNoErr(t, tx.Commit())
	mustNoErr(t, l.Close())

	store, err = OpenStore(dir)
	mustNoErr(t, err)
	l, err = Open(store, log)
	mustNoErr(t, err)
	defer l.Close()

	if dec, err := l.Decimals(usdc); err != nil || dec != 6 {
		t.Errorf("decimals = %d, %v", dec, err)
	}
	if p, ok := l.Pool(pool); !ok || p.Tick != -42 {
		t.Errorf("pool = %+v, %v", p, ok)
	}
	if got := l.BalanceOf(weth, alice); got.Int64() != 5 {
		t.Errorf("balance = %s", got)
	}
	if got := l.Allowance(weth, alice, bob); got.Int64() != 3 {
		t.Errorf("allowance = %s", got)
	}
	if !l.NonceUsed(alice, big.NewInt(99)) {
		t.Error("nonce lost on reopen")
	}
	if rec, ok := l.Execution(alice, big.NewInt(99)); !ok || string(rec) != `{"nonce":"99"}` {
		t.Errorf("execution = %q, %v", rec, ok)
	}
}

func TestConcurrentNonceConsumption(t *testing.T) {
	l := newTestLedger(t)
	nonce := big.NewInt(42)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := l.Begin()
			defer tx.Rollback()
			if tx.NonceUsed(alice, nonce) {
				return
			}
			tx.MarkNonceUsed(alice, nonce)
			if err := tx.Commit(); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			wins++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("nonce consumed %d times, want exactly once", wins)
	}
}

func TestKeyUpperBound(t *testing.T) {
	if got := string(keyUpperBound([]byte("bal:"))); got != "bal;" {
		t.Errorf("keyUpperBound(bal:) = %q", got)
	}
	if got := keyUpperBound([]byte{0xff, 0xff}); got != nil {
		t.Errorf("keyUpperBound(ffff) = %x, want nil", got)
	}
}
