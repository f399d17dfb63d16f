package lockup

import (
	"math/big"

	"bbchain/fixedpoint"
)

// Position is a single lock: principal held until the expiry block.
type Position struct {
	Owner  [20]byte
	Amount *big.Int
	End    uint64
}

// Clone produces a deep copy to protect internal references.
func (p *Position) Clone() Position {
	if p == nil {
		return Position{}
	}
	return Position{Owner: p.Owner, Amount: copyBigInt(p.Amount), End: p.End}
}

// Active reports whether the position holds principal.
func (p *Position) Active() bool {
	return p != nil && p.Amount != nil && p.Amount.Sign() > 0
}

// Point is one entry of a decay history. Bias is the balance at Block, Slope
// the per-block decay, and Amount the raw principal behind the point.
type Point struct {
	Bias   *big.Int
	Slope  *big.Int
	Block  uint64
	Amount *big.Int
}

// Clone produces a deep copy to protect internal references.
func (p Point) Clone() Point {
	return Point{
		Bias:   copyBigInt(p.Bias),
		Slope:  copyBigInt(p.Slope),
		Block:  p.Block,
		Amount: copyBigInt(p.Amount),
	}
}

// normalize replaces nil fields with zeros.
func (p Point) normalize() Point {
	if p.Bias == nil {
		p.Bias = big.NewInt(0)
	}
	if p.Slope == nil {
		p.Slope = big.NewInt(0)
	}
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	return p
}

// LockConfig carries the admin-adjustable lock parameters.
type LockConfig struct {
	MinMint       *big.Int
	MinLockBlocks uint64
}

// Clone produces a deep copy to protect internal references.
func (c *LockConfig) Clone() LockConfig {
	if c == nil {
		return LockConfig{MinMint: big.NewInt(0)}
	}
	return LockConfig{MinMint: copyBigInt(c.MinMint), MinLockBlocks: c.MinLockBlocks}
}

// MarkupConfig holds the per-asset boost coefficients.
type MarkupConfig struct {
	Hardcap              fixedpoint.Ratio
	Coefficient          fixedpoint.Ratio
	LockShareCoefficient fixedpoint.Ratio
	UpdateBlock          uint64
}

// LockedToken records one holder's frozen collateral for one boost asset and
// the contribution it earned at the last evaluation.
type LockedToken struct {
	Amount            *big.Int
	MarkupCoefficient fixedpoint.Ratio
	RefreshBlock      uint64
}

// Clone produces a deep copy to protect internal references.
func (l *LockedToken) Clone() LockedToken {
	if l == nil {
		return LockedToken{Amount: big.NewInt(0)}
	}
	return LockedToken{
		Amount:            copyBigInt(l.Amount),
		MarkupCoefficient: l.MarkupCoefficient,
		RefreshBlock:      l.RefreshBlock,
	}
}

// UserMarkupInfo is the aggregate multiplier applied to a user's locks. The
// previous value is retained so a re-checkpoint can subtract the contribution
// that was in effect when the points were last written.
type UserMarkupInfo struct {
	OldMarkupCoefficient fixedpoint.Ratio
	MarkupCoefficient    fixedpoint.Ratio
}

// AssetAmount pairs an asset code with a balance.
type AssetAmount struct {
	Asset  string
	Amount *big.Int
}

// IncentiveConfig is the streaming reward state for one pool.
type IncentiveConfig struct {
	RewardRate           map[string]*big.Int
	RewardPerTokenStored map[string]*big.Int
	RewardsDuration      uint64
	PeriodFinish         uint64
	LastUpdateBlock      uint64
	Controller           [20]byte
	LastReward           []AssetAmount
}

// Clone produces a deep copy to protect internal references.
func (c *IncentiveConfig) Clone() IncentiveConfig {
	if c == nil {
		return IncentiveConfig{
			RewardRate:           make(map[string]*big.Int),
			RewardPerTokenStored: make(map[string]*big.Int),
		}
	}
	clone := IncentiveConfig{
		RewardRate:           copyAmountMap(c.RewardRate),
		RewardPerTokenStored: copyAmountMap(c.RewardPerTokenStored),
		RewardsDuration:      c.RewardsDuration,
		PeriodFinish:         c.PeriodFinish,
		LastUpdateBlock:      c.LastUpdateBlock,
		Controller:           c.Controller,
	}
	clone.LastReward = make([]AssetAmount, 0, len(c.LastReward))
	for _, entry := range c.LastReward {
		clone.LastReward = append(clone.LastReward, AssetAmount{Asset: entry.Asset, Amount: copyBigInt(entry.Amount)})
	}
	return clone
}

// ShareInfo overrides the share and total used by a reward update, letting
// external pools account balances the engine does not track.
type ShareInfo struct {
	Share *big.Int
	Total *big.Int
}

// lockedBalance is the checkpoint view of a position: raw principal, the
// markup-adjusted amount driving the slope, and the expiry block.
type lockedBalance struct {
	amount    *big.Int
	effective *big.Int
	end       uint64
}

func emptyLocked() lockedBalance {
	return lockedBalance{amount: big.NewInt(0), effective: big.NewInt(0)}
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func copyAmountMap(m map[string]*big.Int) map[string]*big.Int {
	out := make(map[string]*big.Int, len(m))
	for asset, v := range m {
		out[asset] = copyBigInt(v)
	}
	return out
}
