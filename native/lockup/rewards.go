package lockup

import (
	"math/big"
	"sort"

	"bbchain/core/events"
)

func newIncentiveConfig() *IncentiveConfig {
	return &IncentiveConfig{
		RewardRate:           make(map[string]*big.Int),
		RewardPerTokenStored: make(map[string]*big.Int),
	}
}

// SetIncentive configures the reward period length and the optional
// controller account that funds automatic re-arms for a pool.
func (e *Engine) SetIncentive(caller [20]byte, pool uint64, duration *uint64, controller *[20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	conf, ok, err := e.state.Incentive(pool)
	if err != nil {
		return err
	}
	if !ok {
		conf = newIncentiveConfig()
	}
	if duration != nil {
		if *duration == 0 {
			return ErrArguments
		}
		conf.RewardsDuration = *duration
	}
	if controller != nil {
		conf.Controller = *controller
	}
	return e.state.SetIncentive(pool, conf)
}

// NotifyRewards funds the system pool from the source account's entire free
// balance in each listed asset and (re)arms the distribution period.
func (e *Engine) NotifyRewards(caller, source [20]byte, duration *uint64, assets []string) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	conf, ok, err := e.state.Incentive(SystemPoolID)
	if err != nil {
		return err
	}
	if !ok {
		conf = newIncentiveConfig()
	}
	if duration != nil {
		conf.RewardsDuration = *duration
	}
	if conf.RewardsDuration == 0 {
		return ErrArguments
	}
	if err := e.state.SetIncentive(SystemPoolID, conf); err != nil {
		return err
	}
	return e.notifyReward(SystemPoolID, source, assets)
}

// AutoNotifyReward re-arms a pool from its stored controller once the running
// period has finished. Pools without a controller are left alone. Intended to
// be called from the block hook with the current height.
func (e *Engine) AutoNotifyReward(pool uint64, n uint64, assets []string) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	conf, ok, err := e.state.Incentive(pool)
	if err != nil {
		return err
	}
	if !ok || conf.Controller == ([20]byte{}) || conf.RewardsDuration == 0 {
		return nil
	}
	if n < conf.PeriodFinish {
		return nil
	}
	return e.notifyReward(pool, conf.Controller, assets)
}

func (e *Engine) notifyReward(pool uint64, source [20]byte, assets []string) error {
	if err := e.updateReward(pool, nil, nil); err != nil {
		return err
	}
	conf, _, err := e.state.Incentive(pool)
	if err != nil {
		return err
	}
	now := e.currentBlock()
	duration := new(big.Int).SetUint64(conf.RewardsDuration)
	finish := now + conf.RewardsDuration
	lastReward := make([]AssetAmount, 0, len(assets))
	for _, asset := range assets {
		amount, err := e.ledger.FreeBalance(asset, source)
		if err != nil {
			return err
		}
		amount = copyBigInt(amount)
		leftover := big.NewInt(0)
		if now < conf.PeriodFinish {
			if rate := conf.RewardRate[asset]; rate != nil {
				leftover = new(big.Int).Mul(rate, new(big.Int).SetUint64(conf.PeriodFinish-now))
			}
		}
		rate := new(big.Int).Add(amount, leftover)
		conf.RewardRate[asset] = rate.Div(rate, duration)
		if amount.Sign() > 0 {
			if err := e.ledger.Transfer(asset, source, e.params.VaultAddress, amount); err != nil {
				return err
			}
		}
		lastReward = append(lastReward, AssetAmount{Asset: asset, Amount: amount})
		e.emit(events.RewardsNotified{Pool: pool, Asset: asset, Amount: copyBigInt(amount), PeriodFinish: finish})
	}
	conf.PeriodFinish = finish
	conf.LastUpdateBlock = now
	conf.LastReward = lastReward
	return e.state.SetIncentive(pool, conf)
}

// updateReward settles the pool's reward-per-token index to the current block
// and, when `who` is given, banks that account's accrued share. It must run
// before any mutation that changes shares. Pools that were never configured
// are a no-op.
func (e *Engine) updateReward(pool uint64, who *[20]byte, share *ShareInfo) error {
	conf, ok, err := e.state.Incentive(pool)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	now := e.currentBlock()
	applicable := now
	if conf.PeriodFinish < applicable {
		applicable = conf.PeriodFinish
	}
	var total *big.Int
	if share != nil && share.Total != nil {
		total = share.Total
	} else if total, err = e.TotalSupplyAt(now); err != nil {
		return err
	}
	if applicable > conf.LastUpdateBlock && total.Sign() > 0 {
		elapsed := new(big.Int).SetUint64(applicable - conf.LastUpdateBlock)
		for asset, rate := range conf.RewardRate {
			if rate == nil || rate.Sign() == 0 {
				continue
			}
			delta := new(big.Int).Mul(rate, elapsed)
			delta.Mul(delta, RewardPrecision)
			delta.Div(delta, total)
			stored := conf.RewardPerTokenStored[asset]
			if stored == nil {
				stored = big.NewInt(0)
			}
			conf.RewardPerTokenStored[asset] = new(big.Int).Add(stored, delta)
		}
	}
	conf.LastUpdateBlock = applicable
	if who != nil {
		var userShare *big.Int
		if share != nil && share.Share != nil {
			userShare = share.Share
		} else if userShare, err = e.BalanceOfAt(*who, now); err != nil {
			return err
		}
		paid, err := e.state.UserRewardPerTokenPaid(pool, *who)
		if err != nil {
			return err
		}
		owed, err := e.state.UserRewards(pool, *who)
		if err != nil {
			return err
		}
		for asset, index := range conf.RewardPerTokenStored {
			prev := paid[asset]
			if prev == nil {
				prev = big.NewInt(0)
			}
			diff := new(big.Int).Sub(index, prev)
			if diff.Sign() > 0 && userShare.Sign() > 0 {
				accrued := new(big.Int).Mul(userShare, diff)
				accrued.Div(accrued, RewardPrecision)
				current := owed[asset]
				if current == nil {
					current = big.NewInt(0)
				}
				owed[asset] = new(big.Int).Add(current, accrued)
			}
			paid[asset] = copyBigInt(index)
		}
		if err := e.state.SetUserRewardPerTokenPaid(pool, *who, paid); err != nil {
			return err
		}
		if err := e.state.SetUserRewards(pool, *who, owed); err != nil {
			return err
		}
	}
	return e.state.SetIncentive(pool, conf)
}

// GetRewards settles the caller's accrued rewards from the system pool.
func (e *Engine) GetRewards(who [20]byte) error {
	return e.GetRewardsInner(SystemPoolID, who, nil)
}

// GetRewardsInner settles accrued rewards for a pool, optionally accounting
// shares supplied by an external pool. Claiming with nothing owed is a no-op.
func (e *Engine) GetRewardsInner(pool uint64, who [20]byte, share *ShareInfo) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	if _, ok, err := e.state.Incentive(pool); err != nil {
		return err
	} else if !ok {
		return ErrNoRewardPool
	}
	if err := e.updateReward(pool, &who, share); err != nil {
		return err
	}
	owed, err := e.state.UserRewards(pool, who)
	if err != nil {
		return err
	}
	assets := make([]string, 0, len(owed))
	for asset := range owed {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		amount := owed[asset]
		if amount == nil || amount.Sign() <= 0 {
			continue
		}
		if err := e.ledger.Transfer(asset, e.params.VaultAddress, who, amount); err != nil {
			return err
		}
		owed[asset] = big.NewInt(0)
		e.emit(events.RewardPaid{Pool: pool, Who: who, Asset: asset, Amount: copyBigInt(amount)})
		e.metrics.RewardPaid(asset)
	}
	return e.state.SetUserRewards(pool, who, owed)
}
