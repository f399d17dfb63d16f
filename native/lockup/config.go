package lockup

import (
	"math/big"

	"bbchain/core/events"
)

// SetConfig updates the admin-adjustable lock parameters. Nil arguments keep
// the stored value.
func (e *Engine) SetConfig(caller [20]byte, minMint *big.Int, minLockBlocks *uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	stored, err := e.state.LockConfig()
	if err != nil {
		return err
	}
	cfg := stored.Clone()
	if minMint != nil {
		if minMint.Sign() < 0 {
			return ErrArguments
		}
		cfg.MinMint = copyBigInt(minMint)
	}
	if minLockBlocks != nil {
		cfg.MinLockBlocks = *minLockBlocks
	}
	if err := e.state.SetLockConfig(&cfg); err != nil {
		return err
	}
	e.emit(events.LockupConfigUpdated{MinMint: copyBigInt(cfg.MinMint), MinLockBlocks: cfg.MinLockBlocks})
	return nil
}
