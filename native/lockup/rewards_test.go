package lockup_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bbchain/native/lockup"
)

const fourYearsLessSevenDays = uint64((4*365*86400 - 7*86400) / 12)

func TestRewardDistributionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fundBig("BNC", bob, big10(100, 9))
	env.ledger.fundBig("BNC", charlie, big10(100, 9))
	env.ledger.fundBig("KSM", alice, big10(1, 9))

	env.setBlock(60)
	id, err := env.engine.CreateLock(bob, big10(20, 9), fourYearsLessSevenDays)
	require.NoError(t, err)
	require.NoError(t, env.engine.IncreaseAmount(bob, id, big10(80, 9)))
	require.Equal(t, "99715627680", env.balanceOf(bob).String())

	duration := uint64(50400)
	require.NoError(t, env.engine.NotifyRewards(admin, alice, &duration, []string{"KSM"}))

	// The notifier's entire free balance moved into the vault.
	require.Equal(t, int64(0), env.ledger.balance("KSM", alice).Int64())
	require.Equal(t, big10(1, 9), env.ledger.balance("KSM", vault))

	conf, ok, err := env.store.Incentive(lockup.SystemPoolID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(19841), conf.RewardRate["KSM"].Int64())
	require.Equal(t, uint64(50460), conf.PeriodFinish)

	env.setBlock(80)
	require.NoError(t, env.engine.GetRewards(bob))
	require.Equal(t, "396819", env.ledger.balance("KSM", bob).String())

	// Claiming again in the same block yields nothing more.
	require.NoError(t, env.engine.GetRewards(bob))
	require.Equal(t, "396819", env.ledger.balance("KSM", bob).String())

	env.setBlock(50480)
	require.NoError(t, env.engine.GetRewards(bob))
	require.Equal(t, "999986398", env.ledger.balance("KSM", bob).String())

	// Fund and arm a second period, then bring in a second staker.
	env.ledger.fundBig("KSM", alice, big10(1, 9))
	require.NoError(t, env.engine.NotifyRewards(admin, alice, nil, []string{"KSM"}))
	_, err = env.engine.CreateLock(charlie, big10(100, 9), fourYearsLessSevenDays)
	require.NoError(t, err)

	env.setBlock(57680)
	require.NoError(t, env.engine.GetRewards(bob))
	require.NoError(t, env.engine.GetRewards(charlie))
	require.Equal(t, "1071241763", env.ledger.balance("KSM", bob).String())
	require.Equal(t, "71599834", env.ledger.balance("KSM", charlie).String())

	env.setBlock(108080)
	require.NoError(t, env.engine.GetRewards(charlie))
	require.NoError(t, env.engine.GetRewards(bob))
	require.Equal(t, "1498768947", env.ledger.balance("KSM", bob).String())
	require.Equal(t, "501203849", env.ledger.balance("KSM", charlie).String())

	// Claims never exceed the injected rewards; truncation dust stays in
	// the vault.
	paid := new(big.Int).Add(env.ledger.balance("KSM", bob), env.ledger.balance("KSM", charlie))
	require.True(t, paid.Cmp(big10(2, 9)) <= 0)
	require.Equal(t, "27204", env.ledger.balance("KSM", vault).String())
}

func TestNotifyRewardsValidation(t *testing.T) {
	env := newTestEnv(t)
	duration := uint64(50400)

	err := env.engine.NotifyRewards(bob, alice, &duration, []string{"KSM"})
	require.ErrorIs(t, err, lockup.ErrUnauthorized)

	err = env.engine.NotifyRewards(admin, alice, nil, []string{"KSM"})
	require.ErrorIs(t, err, lockup.ErrArguments)

	err = env.engine.GetRewards(bob)
	require.ErrorIs(t, err, lockup.ErrNoRewardPool)
}

func TestAutoNotifyReward(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fund("KSM", charlie, 1000)
	duration := uint64(100)
	controller := charlie
	require.NoError(t, env.engine.SetIncentive(admin, 7, &duration, &controller))

	env.setBlock(100)
	require.NoError(t, env.engine.AutoNotifyReward(7, 100, []string{"KSM"}))
	require.Equal(t, int64(0), env.ledger.balance("KSM", charlie).Int64())
	require.Equal(t, int64(1000), env.ledger.balance("KSM", vault).Int64())

	conf, _, err := env.store.Incentive(7)
	require.NoError(t, err)
	require.Equal(t, int64(10), conf.RewardRate["KSM"].Int64())
	require.Equal(t, uint64(200), conf.PeriodFinish)

	// Mid-period ticks are a no-op.
	env.setBlock(150)
	require.NoError(t, env.engine.AutoNotifyReward(7, 150, []string{"KSM"}))
	require.Equal(t, uint64(200), conf.PeriodFinish)

	// Pools without a controller never self-arm.
	require.NoError(t, env.engine.SetIncentive(admin, 8, &duration, nil))
	require.NoError(t, env.engine.AutoNotifyReward(8, 300, []string{"KSM"}))
	stored, _, err := env.store.Incentive(8)
	require.NoError(t, err)
	require.Equal(t, uint64(0), stored.PeriodFinish)
}

func TestGetRewardsInnerWithShareOverride(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.fund("KSM", charlie, 1000)
	duration := uint64(100)
	controller := charlie
	require.NoError(t, env.engine.SetIncentive(admin, 7, &duration, &controller))

	env.setBlock(100)
	require.NoError(t, env.engine.AutoNotifyReward(7, 100, []string{"KSM"}))

	env.setBlock(150)
	share := &lockup.ShareInfo{Share: big.NewInt(50), Total: big.NewInt(100)}
	require.NoError(t, env.engine.GetRewardsInner(7, bob, share))
	require.Equal(t, int64(250), env.ledger.balance("KSM", bob).Int64())

	err := env.engine.GetRewardsInner(9, bob, share)
	require.ErrorIs(t, err, lockup.ErrNoRewardPool)
}
