package lockup

import (
	"math/big"

	"bbchain/core/events"
	"bbchain/fixedpoint"
)

// SetMarkupCoefficient installs or replaces the boost coefficients for an
// asset. Boost deposits for the asset are rejected until this runs.
func (e *Engine) SetMarkupCoefficient(caller [20]byte, asset string, hardcap, coefficient, lockShareCoefficient fixedpoint.Ratio) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	if e.assets == nil {
		return errNilAssets
	}
	if !e.assets.Exists(asset) {
		return ErrArguments
	}
	cfg := &MarkupConfig{
		Hardcap:              hardcap,
		Coefficient:          coefficient,
		LockShareCoefficient: lockShareCoefficient,
		UpdateBlock:          e.currentBlock(),
	}
	return e.state.SetMarkupConfig(asset, cfg)
}

// markupContribution evaluates one holder's coefficient for one asset:
// Coefficient weighted by the holder's share of total issuance plus
// LockShareCoefficient weighted by the holder's share of all frozen
// collateral, capped at the asset hardcap.
func (e *Engine) markupContribution(cfg *MarkupConfig, asset string, locked, totalLock *big.Int) (fixedpoint.Ratio, error) {
	if locked == nil || locked.Sign() <= 0 {
		return fixedpoint.Zero(), nil
	}
	issuance, err := e.assets.TotalIssuance(asset)
	if err != nil {
		return fixedpoint.Ratio{}, err
	}
	contribution := fixedpoint.Zero()
	if issuance != nil && issuance.Sign() > 0 {
		share, err := fixedpoint.FromRational(locked, issuance)
		if err != nil {
			return fixedpoint.Ratio{}, mapMathErr(err)
		}
		term, err := cfg.Coefficient.Mul(share)
		if err != nil {
			return fixedpoint.Ratio{}, mapMathErr(err)
		}
		if contribution, err = contribution.Add(term); err != nil {
			return fixedpoint.Ratio{}, mapMathErr(err)
		}
	}
	if totalLock != nil && totalLock.Sign() > 0 {
		share, err := fixedpoint.FromRational(locked, totalLock)
		if err != nil {
			return fixedpoint.Ratio{}, mapMathErr(err)
		}
		term, err := cfg.LockShareCoefficient.Mul(share)
		if err != nil {
			return fixedpoint.Ratio{}, mapMathErr(err)
		}
		if contribution, err = contribution.Add(term); err != nil {
			return fixedpoint.Ratio{}, mapMathErr(err)
		}
	}
	return contribution.Min(cfg.Hardcap), nil
}

// userAggregate sums the holder's per-asset contributions, capped at 1.0.
func (e *Engine) userAggregate(who [20]byte) (fixedpoint.Ratio, error) {
	assets, err := e.state.UserMarkupAssets(who)
	if err != nil {
		return fixedpoint.Ratio{}, err
	}
	aggregate := fixedpoint.Zero()
	for _, asset := range assets {
		locked, ok, err := e.state.LockedToken(asset, who)
		if err != nil {
			return fixedpoint.Ratio{}, err
		}
		if !ok {
			continue
		}
		if aggregate, err = aggregate.Add(locked.MarkupCoefficient); err != nil {
			return fixedpoint.Ratio{}, mapMathErr(err)
		}
	}
	return aggregate.Min(fixedpoint.One()), nil
}

// applyMarkup records the holder's new aggregate multiplier and, when it
// actually changed, re-checkpoints every live position at the new effective
// amount. It reports whether new points were written.
func (e *Engine) applyMarkup(who [20]byte, newAggregate fixedpoint.Ratio) (bool, error) {
	info, ok, err := e.state.UserMarkup(who)
	if err != nil {
		return false, err
	}
	oldAggregate := fixedpoint.Zero()
	if ok {
		oldAggregate = info.MarkupCoefficient
	}
	if ok && newAggregate.Cmp(oldAggregate) == 0 {
		return false, nil
	}
	if err := e.state.SetUserMarkup(who, &UserMarkupInfo{
		OldMarkupCoefficient: oldAggregate,
		MarkupCoefficient:    newAggregate,
	}); err != nil {
		return false, err
	}
	if err := e.updateReward(SystemPoolID, &who, nil); err != nil {
		return false, err
	}
	ids, err := e.state.UserPositions(who)
	if err != nil {
		return false, err
	}
	now := e.currentBlock()
	for _, id := range ids {
		position, ok, err := e.state.PositionGet(id)
		if err != nil {
			return false, err
		}
		if !ok || !position.Active() || position.End <= now {
			continue
		}
		oldEffective, err := effectiveWith(oldAggregate, position.Amount)
		if err != nil {
			return false, err
		}
		newEffective, err := effectiveWith(newAggregate, position.Amount)
		if err != nil {
			return false, err
		}
		oldLocked := lockedBalance{amount: copyBigInt(position.Amount), effective: oldEffective, end: position.End}
		newLocked := lockedBalance{amount: copyBigInt(position.Amount), effective: newEffective, end: position.End}
		if err := e.checkpoint(id, true, oldLocked, newLocked); err != nil {
			return false, err
		}
	}
	return true, nil
}

// DepositMarkup freezes boost collateral in the holder's own account. The
// tokens never move; they are locked as proof of holding.
func (e *Engine) DepositMarkup(who [20]byte, asset string, value *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	if e.assets == nil {
		return errNilAssets
	}
	cfg, ok, err := e.state.MarkupConfig(asset)
	if err != nil {
		return err
	}
	if !ok {
		return ErrArguments
	}
	if value == nil || value.Sign() <= 0 {
		return ErrArguments
	}
	locked, _, err := e.state.LockedToken(asset, who)
	if err != nil {
		return err
	}
	current := locked.Clone()
	newAmount, err := fixedpoint.CheckedAdd(current.Amount, value)
	if err != nil {
		return mapMathErr(err)
	}
	if err := e.ledger.EnsureCanWithdraw(asset, who, value); err != nil {
		return ErrNotEnoughBalance
	}
	now := e.currentBlock()
	if err := e.checkpointGap(now); err != nil {
		return err
	}
	totalLock, err := e.state.TotalLock(asset)
	if err != nil {
		return err
	}
	newTotal, err := fixedpoint.CheckedAdd(totalLock, value)
	if err != nil {
		return mapMathErr(err)
	}
	contribution, err := e.markupContribution(cfg, asset, newAmount, newTotal)
	if err != nil {
		return err
	}
	if err := e.state.SetTotalLock(asset, newTotal); err != nil {
		return err
	}
	if err := e.state.SetLockedToken(asset, who, &LockedToken{
		Amount:            newAmount,
		MarkupCoefficient: contribution,
		RefreshBlock:      now,
	}); err != nil {
		return err
	}
	if err := e.ledger.LockAndFreeze(asset, who, newAmount); err != nil {
		return err
	}
	aggregate, err := e.userAggregate(who)
	if err != nil {
		return err
	}
	if _, err := e.applyMarkup(who, aggregate); err != nil {
		return err
	}
	e.emit(events.MarkupDeposited{Who: who, Asset: asset, Amount: copyBigInt(value), Coeff: contribution.Inner()})
	return nil
}

// WithdrawMarkup releases all frozen collateral the holder has for the asset
// and re-checkpoints their positions without the lost contribution.
func (e *Engine) WithdrawMarkup(who [20]byte, asset string) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	if _, ok, err := e.state.MarkupConfig(asset); err != nil {
		return err
	} else if !ok {
		return ErrArguments
	}
	locked, ok, err := e.state.LockedToken(asset, who)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotExist
	}
	if err := e.checkpointGap(e.currentBlock()); err != nil {
		return err
	}
	totalLock, err := e.state.TotalLock(asset)
	if err != nil {
		return err
	}
	newTotal, err := fixedpoint.CheckedSub(totalLock, locked.Amount)
	if err != nil {
		return mapMathErr(err)
	}
	if err := e.state.SetTotalLock(asset, newTotal); err != nil {
		return err
	}
	if err := e.state.DeleteLockedToken(asset, who); err != nil {
		return err
	}
	if err := e.ledger.LockAndFreeze(asset, who, big.NewInt(0)); err != nil {
		return err
	}
	aggregate, err := e.userAggregate(who)
	if err != nil {
		return err
	}
	if _, err := e.applyMarkup(who, aggregate); err != nil {
		return err
	}
	e.emit(events.MarkupWithdrawn{Who: who, Asset: asset, Amount: copyBigInt(locked.Amount)})
	return nil
}

// RefreshMarkup re-evaluates every holder of the asset against the current
// coefficients. Anyone may call it; holders whose aggregate is unchanged are
// skipped, so repeated calls settle to a no-op.
func (e *Engine) RefreshMarkup(asset string) error {
	holders, cfg, err := e.refreshTargets(asset)
	if err != nil {
		return err
	}
	e.metrics.MarkupRefreshScanned(len(holders))
	for _, who := range holders {
		if err := e.refreshHolder(cfg, asset, who); err != nil {
			return err
		}
	}
	return nil
}

// RefreshMarkupBatch processes at most `limit` holders starting at `offset`
// and returns the offset for the next call, equal to the holder count once
// the scan is complete.
func (e *Engine) RefreshMarkupBatch(asset string, offset, limit int) (int, error) {
	holders, cfg, err := e.refreshTargets(asset)
	if err != nil {
		return 0, err
	}
	if offset < 0 || limit <= 0 {
		return 0, ErrArguments
	}
	if offset >= len(holders) {
		return len(holders), nil
	}
	end := offset + limit
	if end > len(holders) {
		end = len(holders)
	}
	e.metrics.MarkupRefreshScanned(end - offset)
	for _, who := range holders[offset:end] {
		if err := e.refreshHolder(cfg, asset, who); err != nil {
			return 0, err
		}
	}
	return end, nil
}

func (e *Engine) refreshTargets(asset string) ([][20]byte, *MarkupConfig, error) {
	if err := e.requireState(); err != nil {
		return nil, nil, err
	}
	if e.assets == nil {
		return nil, nil, errNilAssets
	}
	cfg, ok, err := e.state.MarkupConfig(asset)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrArguments
	}
	holders, err := e.state.LockedTokenHolders(asset)
	if err != nil {
		return nil, nil, err
	}
	if err := e.checkpointGap(e.currentBlock()); err != nil {
		return nil, nil, err
	}
	return holders, cfg, nil
}

func (e *Engine) refreshHolder(cfg *MarkupConfig, asset string, who [20]byte) error {
	locked, ok, err := e.state.LockedToken(asset, who)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	totalLock, err := e.state.TotalLock(asset)
	if err != nil {
		return err
	}
	contribution, err := e.markupContribution(cfg, asset, locked.Amount, totalLock)
	if err != nil {
		return err
	}
	if err := e.state.SetLockedToken(asset, who, &LockedToken{
		Amount:            copyBigInt(locked.Amount),
		MarkupCoefficient: contribution,
		RefreshBlock:      e.currentBlock(),
	}); err != nil {
		return err
	}
	aggregate, err := e.userAggregate(who)
	if err != nil {
		return err
	}
	changed, err := e.applyMarkup(who, aggregate)
	if err != nil {
		return err
	}
	if changed {
		e.emit(events.MarkupRefreshed{Who: who, Asset: asset, Coeff: contribution.Inner()})
	}
	return nil
}
