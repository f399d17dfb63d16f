// Package lockup implements the voting-escrow lock engine: time-decaying
// balances derived from locked principal, a boost layer fed by frozen
// collateral, and streaming reward distribution over the decayed supply.
//
// Balances follow the checkpoint model: every position carries an append-only
// point history (bias, slope, block) and the package maintains a global point
// history plus a schedule of slope changes at future expiry blocks. A balance
// at any block is reconstructed by binary search over the relevant history and
// linear projection, never by iterating positions.
package lockup

import "math/big"

const (
	// BlocksPerWeek is the expiry rounding granularity at a 12s block time.
	BlocksPerWeek uint64 = 7 * 86400 / 12
	// MaxLockBlocks is the longest lock duration, four years of blocks.
	MaxLockBlocks uint64 = 4 * 365 * 86400 / 12
	// MaxPositions bounds the number of live positions per account.
	MaxPositions = 10
	// SystemPoolID identifies the built-in reward pool fed by lock balances.
	SystemPoolID uint64 = 0
	// maxCheckpointWeeks bounds the weekly replay performed by a single
	// checkpoint. A gap larger than this fails instead of spinning.
	maxCheckpointWeeks = 255
)

// RewardPrecision scales the reward-per-token accumulator.
var RewardPrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Params carries the deployment-fixed engine parameters. Admin-adjustable
// values (minimum mint, minimum lock) live in LockConfig instead.
type Params struct {
	BlocksPerWeek   uint64
	MaxLockBlocks   uint64
	MaxPositions    int
	LockAsset       string
	VaultAddress    [20]byte
	TreasuryAddress [20]byte
}

// DefaultParams returns the production defaults minus the addresses, which a
// deployment must set explicitly.
func DefaultParams() Params {
	return Params{
		BlocksPerWeek: BlocksPerWeek,
		MaxLockBlocks: MaxLockBlocks,
		MaxPositions:  MaxPositions,
	}
}

// roundToWeek normalises a requested unlock block to the start of the week
// after the one containing it. The result strictly exceeds the input.
func (p Params) roundToWeek(block uint64) uint64 {
	return (block/p.BlocksPerWeek + 1) * p.BlocksPerWeek
}

// maxUnlockAt returns the highest admissible expiry as seen from `now`.
func (p Params) maxUnlockAt(now uint64) uint64 {
	return p.roundToWeek(p.MaxLockBlocks + now)
}
