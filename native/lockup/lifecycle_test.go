package lockup_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bbchain/core/events"
	"bbchain/fixedpoint"
	"bbchain/native/lockup"
)

const (
	fourYearsLessFiveDays = uint64((4*365*86400 - 5*86400) / 12)
	twoYearsLessFiveDays  = uint64((2*365*86400 - 5*86400) / 12)
)

func TestCreateLockRoundsToWeekBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", alice, big10(10, 12))
	env.setBlock(20)

	id, err := env.engine.CreateLock(alice, big10(10, 12), fourYearsLessFiveDays)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	position, ok, err := env.store.PositionGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10483200), position.End)
	require.Equal(t, big10(10, 12), position.Amount)

	require.Equal(t, "9972575751740", env.balanceOf(alice).String())
	require.Equal(t, "9972575751740", env.totalSupply().String())

	// Principal moved into the vault.
	require.Equal(t, int64(0), env.ledger.balance("BNC", alice).Int64())
	require.Equal(t, big10(10, 12), env.ledger.balance("BNC", vault))

	supply, err := env.store.Supply()
	require.NoError(t, err)
	require.Equal(t, big10(10, 12), supply)

	require.Equal(t, events.TypeLockupCreated, env.events.Events[len(env.events.Events)-1].EventType())
}

func TestCreateLockValidation(t *testing.T) {
	env := newTestEnv(t)
	env.setBlock(20)

	_, err := env.engine.CreateLock(alice, big.NewInt(0), fourYearsLessFiveDays)
	require.ErrorIs(t, err, lockup.ErrArguments)

	// Unfunded account.
	_, err = env.engine.CreateLock(alice, big.NewInt(100), fourYearsLessFiveDays)
	require.ErrorIs(t, err, lockup.ErrNotEnoughBalance)

	env.ledger.fundBig("BNC", alice, big10(100, 12))

	// Beyond the maximum lock horizon.
	_, err = env.engine.CreateLock(alice, big10(10, 12), lockup.MaxLockBlocks+lockup.BlocksPerWeek)
	require.ErrorIs(t, err, lockup.ErrArguments)

	// Below the configured minimum.
	require.NoError(t, env.engine.SetConfig(admin, big10(50, 9), nil))
	_, err = env.engine.CreateLock(alice, big10(10, 9), fourYearsLessFiveDays)
	require.ErrorIs(t, err, lockup.ErrBelowMinimumMint)
	require.NoError(t, env.engine.SetConfig(admin, big.NewInt(0), nil))

	// Shorter than the configured minimum duration.
	minLock := 4 * lockup.BlocksPerWeek
	require.NoError(t, env.engine.SetConfig(admin, nil, &minLock))
	_, err = env.engine.CreateLock(alice, big10(10, 12), lockup.BlocksPerWeek)
	require.ErrorIs(t, err, lockup.ErrArguments)
	zero := uint64(0)
	require.NoError(t, env.engine.SetConfig(admin, nil, &zero))

	// Position cap.
	for i := 0; i < lockup.MaxPositions; i++ {
		_, err := env.engine.CreateLock(alice, big.NewInt(1_000_000), twoYearsLessFiveDays)
		require.NoError(t, err)
	}
	_, err = env.engine.CreateLock(alice, big.NewInt(1_000_000), twoYearsLessFiveDays)
	require.ErrorIs(t, err, lockup.ErrExceedsMaxPositions)
}

func TestBalancesDecayLinearly(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", alice, big10(10, 12))
	env.ledger.fundBig("BNC", bob, big10(5, 12))
	env.setBlock(20)

	_, err := env.engine.CreateLock(alice, big10(10, 12), fourYearsLessFiveDays)
	require.NoError(t, err)
	_, err = env.engine.CreateLock(bob, big10(5, 12), twoYearsLessFiveDays)
	require.NoError(t, err)

	require.Equal(t, "9972575751740", env.balanceOf(alice).String())
	require.Equal(t, "2493136560680", env.balanceOf(bob).String())
	require.Equal(t, "12465712312420", env.totalSupply().String())

	// Queries before the first point give zero.
	early, err := env.engine.BalanceOfAt(alice, 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), early.Int64())

	env.setBlock(2_000_000)
	require.Equal(t, "8070008777600", env.balanceOf(alice).String())
	require.Equal(t, "1541854073600", env.balanceOf(bob).String())
	require.Equal(t, "9611862851200", env.totalSupply().String())

	// At the shorter lock's expiry its contribution has fully decayed and
	// the scheduled slope change drops out of the projection.
	env.setBlock(5_241_600)
	require.Equal(t, int64(0), env.balanceOf(bob).Int64())
	require.Equal(t, "4986297388800", env.balanceOf(alice).String())
	require.Equal(t, "4986297388800", env.totalSupply().String())

	// Historical query against the same state.
	historic, err := env.engine.TotalSupplyAt(2_000_000)
	require.NoError(t, err)
	require.Equal(t, "9611862851200", historic.String())

	env.setBlock(10_483_200)
	require.Equal(t, int64(0), env.balanceOf(alice).Int64())
	require.Equal(t, int64(0), env.totalSupply().Int64())
}

func TestDepositForAndIncreaseAmount(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", alice, big10(10, 12))
	env.ledger.fundBig("BNC", bob, big10(5, 12))
	env.setBlock(20)

	id, err := env.engine.CreateLock(alice, big10(10, 12), fourYearsLessFiveDays)
	require.NoError(t, err)

	// Anyone may top up an existing position.
	env.setBlock(30)
	require.NoError(t, env.engine.DepositFor(bob, id, big10(5, 12)))
	require.Equal(t, "14958854599800", env.balanceOf(alice).String())

	position, _, err := env.store.PositionGet(id)
	require.NoError(t, err)
	require.Equal(t, big10(15, 12), position.Amount)

	supply, err := env.store.Supply()
	require.NoError(t, err)
	require.Equal(t, big10(15, 12), supply)

	err = env.engine.DepositFor(bob, id, big.NewInt(0))
	require.ErrorIs(t, err, lockup.ErrArguments)
	err = env.engine.DepositFor(bob, 99, big10(1, 12))
	require.ErrorIs(t, err, lockup.ErrLockNotExist)

	// IncreaseAmount is owner-only.
	err = env.engine.IncreaseAmount(bob, id, big10(1, 12))
	require.ErrorIs(t, err, lockup.ErrLockNotExist)

	// Expired positions cannot grow.
	env.setBlock(10_483_200)
	err = env.engine.DepositFor(bob, id, big10(1, 12))
	require.ErrorIs(t, err, lockup.ErrExpired)
}

func TestIncreaseUnlockTime(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", bob, big10(5, 12))
	env.setBlock(20)

	id, err := env.engine.CreateLock(bob, big10(5, 12), twoYearsLessFiveDays)
	require.NoError(t, err)

	env.setBlock(2_000_000)
	require.NoError(t, env.engine.IncreaseUnlockTime(bob, id, 1_000_000))

	position, _, err := env.store.PositionGet(id)
	require.NoError(t, err)
	require.Equal(t, uint64(6249600), position.End)
	require.Equal(t, "2021305241600", env.balanceOf(bob).String())

	// The extension formula always lands past the previous expiry, so the
	// ceiling is the only way to fail.
	err = env.engine.IncreaseUnlockTime(bob, id, lockup.MaxLockBlocks)
	require.ErrorIs(t, err, lockup.ErrArguments)

	err = env.engine.IncreaseUnlockTime(alice, id, 1_000_000)
	require.ErrorIs(t, err, lockup.ErrLockNotExist)

	env.setBlock(6_249_600)
	err = env.engine.IncreaseUnlockTime(bob, id, 1_000_000)
	require.ErrorIs(t, err, lockup.ErrExpired)
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", bob, big10(5, 12))
	env.setBlock(20)

	id, err := env.engine.CreateLock(bob, big10(5, 12), twoYearsLessFiveDays)
	require.NoError(t, err)

	err = env.engine.Withdraw(bob, id)
	require.ErrorIs(t, err, lockup.ErrExpired)
	err = env.engine.Withdraw(alice, id)
	require.ErrorIs(t, err, lockup.ErrLockNotExist)

	env.setBlock(5_241_600)
	require.NoError(t, env.engine.Withdraw(bob, id))

	require.Equal(t, big10(5, 12), env.ledger.balance("BNC", bob))
	require.Equal(t, int64(0), env.ledger.balance("BNC", vault).Int64())
	require.Equal(t, int64(0), env.balanceOf(bob).Int64())
	require.Equal(t, int64(0), env.totalSupply().Int64())

	supply, err := env.store.Supply()
	require.NoError(t, err)
	require.Equal(t, int64(0), supply.Int64())

	ids, err := env.store.UserPositions(bob)
	require.NoError(t, err)
	require.Empty(t, ids)

	err = env.engine.Withdraw(bob, id)
	require.ErrorIs(t, err, lockup.ErrLockNotExist)

	// The tolerant variant treats a missing position as settled.
	require.NoError(t, env.engine.WithdrawInner(bob, id))
}

func TestRedeemUnlockChargesLinearPenalty(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", alice, big10(10, 12))
	env.setBlock(20)

	id, err := env.engine.CreateLock(alice, big10(10, 12), twoYearsLessFiveDays)
	require.NoError(t, err)

	err = env.engine.RedeemUnlock(bob, id)
	require.ErrorIs(t, err, lockup.ErrLockNotExist)

	env.setBlock(2_000_000)
	require.NoError(t, env.engine.RedeemUnlock(alice, id))

	// 3_241_600 blocks remained of the 10_512_000 maximum.
	require.Equal(t, "6916286149163", env.ledger.balance("BNC", alice).String())
	require.Equal(t, "3083713850837", env.ledger.balance("BNC", treasury).String())
	require.Equal(t, int64(0), env.ledger.balance("BNC", vault).Int64())
	require.Equal(t, int64(0), env.balanceOf(alice).Int64())

	last := env.events.Events[len(env.events.Events)-1]
	redeemed, ok := last.(events.LockupRedeemed)
	require.True(t, ok)
	require.Equal(t, "3083713850837", redeemed.Penalty.String())
}

func TestOverflowRejectedWithoutSideEffects(t *testing.T) {
	env := newTestEnv(t)
	max := new(big.Int).Set(fixedpoint.MaxUint128)
	env.ledger.fundBig("BNC", alice, max)
	env.ledger.fundBig("BNC", bob, big.NewInt(1))
	env.setBlock(20)

	id, err := env.engine.CreateLock(alice, max, twoYearsLessFiveDays)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	// One more unit would push the total past the 128-bit bound. The lock
	// is rejected and nothing moves: no supply bump, no transfer, no
	// position.
	_, err = env.engine.CreateLock(bob, big.NewInt(1), twoYearsLessFiveDays)
	require.ErrorIs(t, err, lockup.ErrOverflow)

	supply, err := env.store.Supply()
	require.NoError(t, err)
	require.Equal(t, max, supply)
	require.Equal(t, big.NewInt(1), env.ledger.balance("BNC", bob))
	require.Equal(t, max, env.ledger.balance("BNC", vault))
	ids, err := env.store.UserPositions(bob)
	require.NoError(t, err)
	require.Empty(t, ids)

	// Topping up the saturated position overflows the same way.
	env.ledger.fundBig("BNC", alice, big.NewInt(1))
	err = env.engine.IncreaseAmount(alice, id, big.NewInt(1))
	require.ErrorIs(t, err, lockup.ErrOverflow)

	position, _, err := env.store.PositionGet(id)
	require.NoError(t, err)
	require.Equal(t, max, position.Amount)
	supply, err = env.store.Supply()
	require.NoError(t, err)
	require.Equal(t, max, supply)

	// Rejected calls did not consume position ids.
	require.NoError(t, env.engine.RedeemUnlock(alice, id))
	next, err := env.engine.CreateLock(bob, big.NewInt(1), twoYearsLessFiveDays)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)
}

func TestRedeemUnlockAfterExpiryFails(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", alice, big10(10, 12))
	env.setBlock(20)

	id, err := env.engine.CreateLock(alice, big10(10, 12), twoYearsLessFiveDays)
	require.NoError(t, err)

	env.setBlock(5_241_600)
	err = env.engine.RedeemUnlock(alice, id)
	require.ErrorIs(t, err, lockup.ErrExpired)
}
