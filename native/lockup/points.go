package lockup

import "math/big"

func (e *Engine) slopeFor(effective *big.Int) *big.Int {
	if effective == nil || effective.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(effective, new(big.Int).SetUint64(e.params.MaxLockBlocks))
}

// projectPoint derives the decay point for a locked balance as seen at `now`.
// An expired or empty balance projects to zero.
func (e *Engine) projectPoint(lb lockedBalance, now uint64) Point {
	point := Point{Bias: big.NewInt(0), Slope: big.NewInt(0), Block: now, Amount: copyBigInt(lb.amount)}
	if lb.end > now && lb.effective != nil && lb.effective.Sign() > 0 {
		point.Slope = e.slopeFor(lb.effective)
		point.Bias = new(big.Int).Mul(point.Slope, new(big.Int).SetUint64(lb.end-now))
	}
	return point
}

// checkpointGap reports whether a checkpoint at `now` would exceed the weekly
// replay bound, without touching state. Mutating operations call this before
// their first write so a horizon rejection leaves nothing behind.
func (e *Engine) checkpointGap(now uint64) error {
	epoch, err := e.state.Epoch()
	if err != nil {
		return err
	}
	if epoch == 0 {
		return nil
	}
	point, err := e.state.GlobalPoint(epoch)
	if err != nil {
		return err
	}
	week := e.params.BlocksPerWeek
	if now > point.Block && now/week-point.Block/week > maxCheckpointWeeks {
		return ErrCheckpointHorizon
	}
	return nil
}

// checkpoint advances the global point history to the current block and, when
// hasPosition is set, folds the old->new transition of one position into the
// global state, the slope-change schedule and the position's own history.
func (e *Engine) checkpoint(id uint64, hasPosition bool, oldLocked, newLocked lockedBalance) error {
	if err := e.requireState(); err != nil {
		return err
	}
	now := e.currentBlock()
	week := e.params.BlocksPerWeek

	var uOld, uNew Point
	oldDslope := big.NewInt(0)
	newDslope := big.NewInt(0)
	if hasPosition {
		uOld = e.projectPoint(oldLocked, now)
		uNew = e.projectPoint(newLocked, now)
		var err error
		if oldDslope, err = e.state.SlopeChange(oldLocked.end); err != nil {
			return err
		}
		if newLocked.end != 0 {
			if newLocked.end == oldLocked.end {
				newDslope = copyBigInt(oldDslope)
			} else if newDslope, err = e.state.SlopeChange(newLocked.end); err != nil {
				return err
			}
		}
	}

	epoch, err := e.state.Epoch()
	if err != nil {
		return err
	}
	lastPoint := Point{Bias: big.NewInt(0), Slope: big.NewInt(0), Block: now, Amount: big.NewInt(0)}
	if epoch > 0 {
		stored, err := e.state.GlobalPoint(epoch)
		if err != nil {
			return err
		}
		lastPoint = stored.Clone().normalize()
	}
	lastCheckpoint := lastPoint.Block
	if now > lastCheckpoint && now/week-lastCheckpoint/week > maxCheckpointWeeks {
		return ErrCheckpointHorizon
	}

	// Replay week boundaries between the last checkpoint and now, applying
	// the scheduled slope expiries as they are crossed.
	ti := lastCheckpoint / week * week
	for i := 0; i < maxCheckpointWeeks; i++ {
		ti += week
		dSlope := big.NewInt(0)
		if ti > now {
			ti = now
		} else if dSlope, err = e.state.SlopeChange(ti); err != nil {
			return err
		}
		elapsed := new(big.Int).SetUint64(ti - lastCheckpoint)
		lastPoint.Bias.Sub(lastPoint.Bias, new(big.Int).Mul(lastPoint.Slope, elapsed))
		if lastPoint.Bias.Sign() < 0 {
			lastPoint.Bias.SetInt64(0)
		}
		lastPoint.Slope.Add(lastPoint.Slope, dSlope)
		if lastPoint.Slope.Sign() < 0 {
			lastPoint.Slope.SetInt64(0)
		}
		lastCheckpoint = ti
		lastPoint.Block = ti
		epoch++
		if ti == now {
			break
		}
		if err := e.state.SetGlobalPoint(epoch, lastPoint.Clone()); err != nil {
			return err
		}
	}

	if hasPosition {
		lastPoint.Slope.Add(lastPoint.Slope, new(big.Int).Sub(uNew.Slope, uOld.Slope))
		if lastPoint.Slope.Sign() < 0 {
			lastPoint.Slope.SetInt64(0)
		}
		lastPoint.Bias.Add(lastPoint.Bias, new(big.Int).Sub(uNew.Bias, uOld.Bias))
		if lastPoint.Bias.Sign() < 0 {
			lastPoint.Bias.SetInt64(0)
		}
	}
	supply, err := e.state.Supply()
	if err != nil {
		return err
	}
	lastPoint.Amount = copyBigInt(supply)
	if err := e.state.SetEpoch(epoch); err != nil {
		return err
	}
	if err := e.state.SetGlobalPoint(epoch, lastPoint); err != nil {
		return err
	}

	if hasPosition {
		if oldLocked.end > now {
			// The schedule at the old expiry still carries -uOld.Slope;
			// cancel it, and re-subtract the new slope when the expiry
			// is unchanged.
			delta := new(big.Int).Add(oldDslope, uOld.Slope)
			if newLocked.end == oldLocked.end {
				delta.Sub(delta, uNew.Slope)
			}
			if err := e.state.SetSlopeChange(oldLocked.end, delta); err != nil {
				return err
			}
		}
		if newLocked.end > now && newLocked.end > oldLocked.end {
			delta := new(big.Int).Sub(newDslope, uNew.Slope)
			if err := e.state.SetSlopeChange(newLocked.end, delta); err != nil {
				return err
			}
		}
		userEpoch, err := e.state.PositionEpoch(id)
		if err != nil {
			return err
		}
		userEpoch++
		if err := e.state.SetPositionEpoch(id, userEpoch); err != nil {
			return err
		}
		uNew.Block = now
		uNew.Amount = copyBigInt(newLocked.amount)
		if err := e.state.SetPositionPoint(id, userEpoch, uNew); err != nil {
			return err
		}
	}
	e.metrics.CheckpointWritten()
	return nil
}

// supplyAt projects a global point forward to `block`, applying scheduled
// slope expiries at each crossed week boundary.
func (e *Engine) supplyAt(point Point, block uint64) (*big.Int, error) {
	point = point.Clone().normalize()
	if block < point.Block {
		return big.NewInt(0), nil
	}
	week := e.params.BlocksPerWeek
	if block/week-point.Block/week > maxCheckpointWeeks {
		return nil, ErrCheckpointHorizon
	}
	ti := point.Block / week * week
	for i := 0; i < maxCheckpointWeeks; i++ {
		ti += week
		dSlope := big.NewInt(0)
		if ti > block {
			ti = block
		} else {
			var err error
			if dSlope, err = e.state.SlopeChange(ti); err != nil {
				return nil, err
			}
		}
		elapsed := new(big.Int).SetUint64(ti - point.Block)
		point.Bias.Sub(point.Bias, new(big.Int).Mul(point.Slope, elapsed))
		if point.Bias.Sign() < 0 {
			point.Bias.SetInt64(0)
		}
		point.Slope.Add(point.Slope, dSlope)
		if point.Slope.Sign() < 0 {
			point.Slope.SetInt64(0)
		}
		point.Block = ti
		if ti == block {
			break
		}
	}
	return point.Bias, nil
}

// FindBlockEpoch returns the highest global epoch whose point is at or before
// `block`, or zero when the history starts later.
func (e *Engine) FindBlockEpoch(block uint64) (uint64, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	maxEpoch, err := e.state.Epoch()
	if err != nil {
		return 0, err
	}
	return e.searchEpoch(block, maxEpoch, func(epoch uint64) (uint64, error) {
		point, err := e.state.GlobalPoint(epoch)
		if err != nil {
			return 0, err
		}
		return point.Block, nil
	})
}

func (e *Engine) findUserBlockEpoch(id uint64, block uint64) (uint64, error) {
	maxEpoch, err := e.state.PositionEpoch(id)
	if err != nil {
		return 0, err
	}
	return e.searchEpoch(block, maxEpoch, func(epoch uint64) (uint64, error) {
		point, err := e.state.PositionPoint(id, epoch)
		if err != nil {
			return 0, err
		}
		return point.Block, nil
	})
}

func (e *Engine) searchEpoch(block, maxEpoch uint64, blockAt func(uint64) (uint64, error)) (uint64, error) {
	low, high := uint64(0), maxEpoch
	for i := 0; i < 128 && low < high; i++ {
		mid := (low + high + 1) / 2
		at, err := blockAt(mid)
		if err != nil {
			return 0, err
		}
		if at <= block {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low, nil
}

// TotalSupply returns the decayed voting balance of all positions at the
// current block.
func (e *Engine) TotalSupply() (*big.Int, error) {
	return e.TotalSupplyAt(e.currentBlock())
}

// TotalSupplyAt returns the decayed voting balance of all positions at
// `block`, which may lie before or after the last checkpoint.
func (e *Engine) TotalSupplyAt(block uint64) (*big.Int, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	epoch, err := e.state.Epoch()
	if err != nil {
		return nil, err
	}
	if epoch == 0 {
		return big.NewInt(0), nil
	}
	target, err := e.FindBlockEpoch(block)
	if err != nil {
		return nil, err
	}
	if target == 0 {
		return big.NewInt(0), nil
	}
	point, err := e.state.GlobalPoint(target)
	if err != nil {
		return nil, err
	}
	return e.supplyAt(point, block)
}

// BalanceOf returns the decayed voting balance of an account at the current
// block.
func (e *Engine) BalanceOf(who [20]byte) (*big.Int, error) {
	return e.BalanceOfAt(who, e.currentBlock())
}

// BalanceOfAt sums the account's position balances at `block`.
func (e *Engine) BalanceOfAt(who [20]byte, block uint64) (*big.Int, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	ids, err := e.state.UserPositions(who)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, id := range ids {
		balance, err := e.BalanceOfPositionAt(id, block)
		if err != nil {
			return nil, err
		}
		total.Add(total, balance)
	}
	return total, nil
}

// BalanceOfPosition returns one position's decayed balance at the current
// block.
func (e *Engine) BalanceOfPosition(id uint64) (*big.Int, error) {
	return e.BalanceOfPositionAt(id, e.currentBlock())
}

// BalanceOfPositionAt projects one position's latest point at or before
// `block`. Blocks before the position's first point give zero.
func (e *Engine) BalanceOfPositionAt(id uint64, block uint64) (*big.Int, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	userEpoch, err := e.findUserBlockEpoch(id, block)
	if err != nil {
		return nil, err
	}
	if userEpoch == 0 {
		return big.NewInt(0), nil
	}
	point, err := e.state.PositionPoint(id, userEpoch)
	if err != nil {
		return nil, err
	}
	point = point.normalize()
	if point.Block > block {
		return big.NewInt(0), nil
	}
	elapsed := new(big.Int).SetUint64(block - point.Block)
	balance := new(big.Int).Sub(point.Bias, new(big.Int).Mul(point.Slope, elapsed))
	if balance.Sign() < 0 {
		balance.SetInt64(0)
	}
	return balance, nil
}
