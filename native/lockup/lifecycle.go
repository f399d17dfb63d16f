package lockup

import (
	"math/big"

	"bbchain/core/events"
	"bbchain/fixedpoint"
)

// effectiveAmount applies the caller's current markup multiplier to a raw
// principal amount.
func (e *Engine) effectiveAmount(who [20]byte, amount *big.Int) (*big.Int, error) {
	info, ok, err := e.state.UserMarkup(who)
	if err != nil {
		return nil, err
	}
	if !ok {
		return copyBigInt(amount), nil
	}
	return effectiveWith(info.MarkupCoefficient, amount)
}

func effectiveWith(coeff fixedpoint.Ratio, amount *big.Int) (*big.Int, error) {
	if coeff.IsZero() {
		return copyBigInt(amount), nil
	}
	boost, err := coeff.MulInt(amount)
	if err != nil {
		return nil, mapMathErr(err)
	}
	out, err := fixedpoint.CheckedAdd(amount, boost)
	return out, mapMathErr(err)
}

// CreateLock locks `value` of the lock asset until roughly `unlockAfter`
// blocks from now, rounded up to the next week boundary. It returns the new
// position id.
func (e *Engine) CreateLock(who [20]byte, value *big.Int, unlockAfter uint64) (uint64, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	if err := e.requireLedger(); err != nil {
		return 0, err
	}
	now := e.currentBlock()
	end := e.params.roundToWeek(unlockAfter + now)
	return e.createLockInner(who, value, end, now)
}

func (e *Engine) createLockInner(who [20]byte, value *big.Int, end, now uint64) (uint64, error) {
	cfg, err := e.state.LockConfig()
	if err != nil {
		return 0, err
	}
	if value == nil || value.Sign() <= 0 {
		return 0, ErrArguments
	}
	if cfg != nil && cfg.MinMint != nil && value.Cmp(cfg.MinMint) < 0 {
		return 0, ErrBelowMinimumMint
	}
	if end > e.params.maxUnlockAt(now) {
		return 0, ErrArguments
	}
	if cfg != nil && end < now+cfg.MinLockBlocks {
		return 0, ErrArguments
	}
	ids, err := e.state.UserPositions(who)
	if err != nil {
		return 0, err
	}
	if len(ids) >= e.params.MaxPositions {
		return 0, ErrExceedsMaxPositions
	}
	if err := e.ledger.EnsureCanWithdraw(e.params.LockAsset, who, value); err != nil {
		return 0, ErrNotEnoughBalance
	}
	// Horizon and overflow rejections happen before the first write.
	if err := e.checkpointGap(now); err != nil {
		return 0, err
	}
	effective, err := e.effectiveAmount(who, value)
	if err != nil {
		return 0, err
	}
	supply, err := e.state.Supply()
	if err != nil {
		return 0, err
	}
	newSupply, err := fixedpoint.CheckedAdd(supply, value)
	if err != nil {
		return 0, mapMathErr(err)
	}
	if err := e.updateReward(SystemPoolID, &who, nil); err != nil {
		return 0, err
	}
	id, err := e.state.NextPositionID()
	if err != nil {
		return 0, err
	}
	if err := e.state.SetSupply(newSupply); err != nil {
		return 0, err
	}
	if err := e.ledger.Transfer(e.params.LockAsset, who, e.params.VaultAddress, value); err != nil {
		return 0, err
	}
	locked := lockedBalance{amount: copyBigInt(value), effective: effective, end: end}
	if err := e.checkpoint(id, true, emptyLocked(), locked); err != nil {
		return 0, err
	}
	if err := e.state.PositionPut(id, &Position{Owner: who, Amount: copyBigInt(value), End: end}); err != nil {
		return 0, err
	}
	if err := e.state.SetUserPositions(who, append(ids, id)); err != nil {
		return 0, err
	}
	e.emit(events.LockupCreated{Who: who, ID: id, Amount: copyBigInt(value), End: end})
	return id, nil
}

// DepositFor adds principal to an existing active position. The payer funds
// the deposit; the position owner receives the balance.
func (e *Engine) DepositFor(payer [20]byte, id uint64, value *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotExist
	}
	return e.depositFor(payer, id, position, value)
}

// IncreaseAmount adds principal to a position the caller owns.
func (e *Engine) IncreaseAmount(who [20]byte, id uint64, value *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok || position.Owner != who {
		return ErrLockNotExist
	}
	return e.depositFor(who, id, position, value)
}

func (e *Engine) depositFor(payer [20]byte, id uint64, position *Position, value *big.Int) error {
	if value == nil || value.Sign() <= 0 {
		return ErrArguments
	}
	now := e.currentBlock()
	if position.End <= now {
		return ErrExpired
	}
	if err := e.ledger.EnsureCanWithdraw(e.params.LockAsset, payer, value); err != nil {
		return ErrNotEnoughBalance
	}
	if err := e.checkpointGap(now); err != nil {
		return err
	}
	newAmount, err := fixedpoint.CheckedAdd(position.Amount, value)
	if err != nil {
		return mapMathErr(err)
	}
	supply, err := e.state.Supply()
	if err != nil {
		return err
	}
	newSupply, err := fixedpoint.CheckedAdd(supply, value)
	if err != nil {
		return mapMathErr(err)
	}
	oldEffective, err := e.effectiveAmount(position.Owner, position.Amount)
	if err != nil {
		return err
	}
	newEffective, err := e.effectiveAmount(position.Owner, newAmount)
	if err != nil {
		return err
	}
	if err := e.updateReward(SystemPoolID, &position.Owner, nil); err != nil {
		return err
	}
	if err := e.state.SetSupply(newSupply); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.params.LockAsset, payer, e.params.VaultAddress, value); err != nil {
		return err
	}
	oldLocked := lockedBalance{amount: copyBigInt(position.Amount), effective: oldEffective, end: position.End}
	newLocked := lockedBalance{amount: copyBigInt(newAmount), effective: newEffective, end: position.End}
	if err := e.checkpoint(id, true, oldLocked, newLocked); err != nil {
		return err
	}
	position.Amount = newAmount
	if err := e.state.PositionPut(id, position); err != nil {
		return err
	}
	e.emit(events.LockupDeposited{Who: position.Owner, ID: id, Amount: copyBigInt(value), Total: copyBigInt(newAmount)})
	return nil
}

// IncreaseUnlockTime pushes a position's expiry out by roughly `extendBy`
// blocks, rounded up to the next week boundary past the current expiry.
func (e *Engine) IncreaseUnlockTime(who [20]byte, id uint64, extendBy uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok || position.Owner != who {
		return ErrLockNotExist
	}
	now := e.currentBlock()
	if position.End <= now {
		return ErrExpired
	}
	newEnd := e.params.roundToWeek(extendBy + position.End)
	if newEnd > e.params.maxUnlockAt(now) {
		return ErrArguments
	}
	if err := e.checkpointGap(now); err != nil {
		return err
	}
	effective, err := e.effectiveAmount(who, position.Amount)
	if err != nil {
		return err
	}
	if err := e.updateReward(SystemPoolID, &who, nil); err != nil {
		return err
	}
	oldLocked := lockedBalance{amount: copyBigInt(position.Amount), effective: copyBigInt(effective), end: position.End}
	newLocked := lockedBalance{amount: copyBigInt(position.Amount), effective: effective, end: newEnd}
	if err := e.checkpoint(id, true, oldLocked, newLocked); err != nil {
		return err
	}
	oldEnd := position.End
	position.End = newEnd
	if err := e.state.PositionPut(id, position); err != nil {
		return err
	}
	e.emit(events.LockupExtended{Who: who, ID: id, OldEnd: oldEnd, NewEnd: newEnd})
	return nil
}

// Withdraw pays out an expired position the caller owns.
func (e *Engine) Withdraw(who [20]byte, id uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok || position.Owner != who {
		return ErrLockNotExist
	}
	if position.End > e.currentBlock() {
		return ErrExpired
	}
	return e.terminate(who, id, position, big.NewInt(0), false)
}

// WithdrawInner settles a position without strict validation: a missing or
// foreign position is a no-op success. Intended for system hooks that sweep
// positions on behalf of users.
func (e *Engine) WithdrawInner(who [20]byte, id uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok || position.Owner != who {
		return nil
	}
	return e.terminate(who, id, position, big.NewInt(0), false)
}

// RedeemUnlock exits a live position before expiry, forfeiting a penalty to
// the treasury.
func (e *Engine) RedeemUnlock(who [20]byte, id uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	position, ok, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !ok || position.Owner != who {
		return ErrLockNotExist
	}
	now := e.currentBlock()
	if position.End <= now {
		return ErrExpired
	}
	penalty := e.penalty(position.End-now, e.params.MaxLockBlocks, position.Amount)
	if penalty == nil {
		penalty = big.NewInt(0)
	}
	if penalty.Cmp(position.Amount) > 0 {
		penalty = copyBigInt(position.Amount)
	}
	return e.terminate(who, id, position, penalty, true)
}

// terminate zeroes a position, writes its terminal point and settles the
// principal, splitting off any penalty to the treasury.
func (e *Engine) terminate(who [20]byte, id uint64, position *Position, penalty *big.Int, redeemed bool) error {
	if err := e.checkpointGap(e.currentBlock()); err != nil {
		return err
	}
	amount := copyBigInt(position.Amount)
	effective, err := e.effectiveAmount(who, amount)
	if err != nil {
		return err
	}
	oldLocked := lockedBalance{amount: amount, effective: effective, end: position.End}
	supply, err := e.state.Supply()
	if err != nil {
		return err
	}
	newSupply, err := fixedpoint.CheckedSub(supply, amount)
	if err != nil {
		return mapMathErr(err)
	}
	if err := e.updateReward(SystemPoolID, &who, nil); err != nil {
		return err
	}
	if err := e.state.SetSupply(newSupply); err != nil {
		return err
	}
	if err := e.checkpoint(id, true, oldLocked, emptyLocked()); err != nil {
		return err
	}
	if err := e.state.PositionDelete(id); err != nil {
		return err
	}
	ids, err := e.state.UserPositions(who)
	if err != nil {
		return err
	}
	remaining := make([]uint64, 0, len(ids))
	for _, other := range ids {
		if other != id {
			remaining = append(remaining, other)
		}
	}
	if err := e.state.SetUserPositions(who, remaining); err != nil {
		return err
	}
	payout := new(big.Int).Sub(amount, penalty)
	if payout.Sign() > 0 {
		if err := e.ledger.Transfer(e.params.LockAsset, e.params.VaultAddress, who, payout); err != nil {
			return err
		}
	}
	if penalty.Sign() > 0 {
		if err := e.ledger.Transfer(e.params.LockAsset, e.params.VaultAddress, e.params.TreasuryAddress, penalty); err != nil {
			return err
		}
	}
	if redeemed {
		e.emit(events.LockupRedeemed{Who: who, ID: id, Amount: payout, Penalty: copyBigInt(penalty)})
	} else {
		e.emit(events.LockupWithdrawn{Who: who, ID: id, Amount: payout})
	}
	return nil
}
