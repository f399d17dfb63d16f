package lockup_test

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bbchain/core/events"
	"bbchain/native/lockup"
	lockupstate "bbchain/state/lockup"
	"bbchain/storage"
)

var (
	admin    = addr(0xAD)
	alice    = addr(0x01)
	bob      = addr(0x02)
	charlie  = addr(0x03)
	vault    = addr(0xAA)
	treasury = addr(0xBB)
)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type testLedger struct {
	balances map[string]map[[20]byte]*big.Int
	frozen   map[string]map[[20]byte]*big.Int
}

func newTestLedger() *testLedger {
	return &testLedger{
		balances: make(map[string]map[[20]byte]*big.Int),
		frozen:   make(map[string]map[[20]byte]*big.Int),
	}
}

func (l *testLedger) bucket(m map[string]map[[20]byte]*big.Int, asset string) map[[20]byte]*big.Int {
	if m[asset] == nil {
		m[asset] = make(map[[20]byte]*big.Int)
	}
	return m[asset]
}

func (l *testLedger) fund(asset string, who [20]byte, amount int64) {
	l.fundBig(asset, who, big.NewInt(amount))
}

func (l *testLedger) fundBig(asset string, who [20]byte, amount *big.Int) {
	bucket := l.bucket(l.balances, asset)
	if bucket[who] == nil {
		bucket[who] = big.NewInt(0)
	}
	bucket[who].Add(bucket[who], amount)
}

func (l *testLedger) balance(asset string, who [20]byte) *big.Int {
	if v := l.bucket(l.balances, asset)[who]; v != nil {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (l *testLedger) frozenOf(asset string, who [20]byte) *big.Int {
	if v := l.bucket(l.frozen, asset)[who]; v != nil {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (l *testLedger) FreeBalance(asset string, who [20]byte) (*big.Int, error) {
	free := new(big.Int).Sub(l.balance(asset, who), l.frozenOf(asset, who))
	if free.Sign() < 0 {
		free.SetInt64(0)
	}
	return free, nil
}

func (l *testLedger) EnsureCanWithdraw(asset string, who [20]byte, amount *big.Int) error {
	free, _ := l.FreeBalance(asset, who)
	if free.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: %s balance too low", asset)
	}
	return nil
}

func (l *testLedger) Transfer(asset string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: bad amount")
	}
	if err := l.EnsureCanWithdraw(asset, from, amount); err != nil {
		return err
	}
	bucket := l.bucket(l.balances, asset)
	bucket[from] = new(big.Int).Sub(l.balance(asset, from), amount)
	bucket[to] = new(big.Int).Add(l.balance(asset, to), amount)
	return nil
}

func (l *testLedger) LockAndFreeze(asset string, who [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: bad freeze amount")
	}
	if l.balance(asset, who).Cmp(amount) < 0 {
		return fmt.Errorf("ledger: cannot freeze more than balance")
	}
	l.bucket(l.frozen, asset)[who] = new(big.Int).Set(amount)
	return nil
}

type testAssets struct {
	issuance map[string]*big.Int
}

func newTestAssets() *testAssets {
	return &testAssets{issuance: make(map[string]*big.Int)}
}

func (a *testAssets) register(asset string, issuance *big.Int) {
	a.issuance[asset] = new(big.Int).Set(issuance)
}

func (a *testAssets) Exists(asset string) bool {
	_, ok := a.issuance[asset]
	return ok
}

func (a *testAssets) TotalIssuance(asset string) (*big.Int, error) {
	v, ok := a.issuance[asset]
	if !ok {
		return nil, fmt.Errorf("assets: unknown asset %s", asset)
	}
	return new(big.Int).Set(v), nil
}

type testAuth struct {
	admins map[[20]byte]bool
}

func (a *testAuth) IsAdmin(who [20]byte) bool { return a.admins[who] }

type testEnv struct {
	t      *testing.T
	engine *lockup.Engine
	ledger *testLedger
	assets *testAssets
	store  *lockupstate.Store
	events *events.Recorder
	height uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	params := lockup.DefaultParams()
	params.LockAsset = "BNC"
	params.VaultAddress = vault
	params.TreasuryAddress = treasury

	env := &testEnv{
		t:      t,
		ledger: newTestLedger(),
		assets: newTestAssets(),
		store:  lockupstate.NewStore(storage.NewMemDB()),
		events: &events.Recorder{},
	}
	env.assets.register("BNC", big.NewInt(0))

	engine := lockup.NewEngine(params)
	engine.SetState(env.store)
	engine.SetLedger(env.ledger)
	engine.SetAssetInfo(env.assets)
	engine.SetAuthorizer(&testAuth{admins: map[[20]byte]bool{admin: true}})
	engine.SetEmitter(env.events)
	engine.SetBlockFunc(func() uint64 { return env.height })
	env.engine = engine
	return env
}

func (env *testEnv) setBlock(height uint64) { env.height = height }

func (env *testEnv) balanceOf(who [20]byte) *big.Int {
	env.t.Helper()
	balance, err := env.engine.BalanceOf(who)
	require.NoError(env.t, err)
	return balance
}

func (env *testEnv) totalSupply() *big.Int {
	env.t.Helper()
	total, err := env.engine.TotalSupply()
	require.NoError(env.t, err)
	return total
}

func big10(v int64, zeros int) *big.Int {
	out := big.NewInt(v)
	return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(zeros)), nil))
}

func TestEngineRequiresWiring(t *testing.T) {
	engine := lockup.NewEngine(lockup.DefaultParams())
	_, err := engine.CreateLock(alice, big.NewInt(1), 100)
	require.Error(t, err)

	engine.SetState(lockupstate.NewStore(storage.NewMemDB()))
	_, err = engine.CreateLock(alice, big.NewInt(1), 100)
	require.Error(t, err)
}

func TestSetConfigRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.SetConfig(alice, big.NewInt(1), nil)
	require.ErrorIs(t, err, lockup.ErrUnauthorized)

	minLock := uint64(lockup.BlocksPerWeek)
	require.NoError(t, env.engine.SetConfig(admin, big10(50, 9), &minLock))

	// Partial updates keep the other value.
	require.NoError(t, env.engine.SetConfig(admin, big10(20, 9), nil))
	cfg, err := env.store.LockConfig()
	require.NoError(t, err)
	require.Equal(t, big10(20, 9), cfg.MinMint)
	require.Equal(t, minLock, cfg.MinLockBlocks)

	require.Equal(t, events.TypeLockupConfigUpdated, env.events.Events[0].EventType())
}
