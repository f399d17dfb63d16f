package lockup

import "math/big"

// PositionState persists positions, the per-owner index and each position's
// point history.
type PositionState interface {
	NextPositionID() (uint64, error)
	PositionGet(id uint64) (*Position, bool, error)
	PositionPut(id uint64, position *Position) error
	PositionDelete(id uint64) error
	UserPositions(owner [20]byte) ([]uint64, error)
	SetUserPositions(owner [20]byte, ids []uint64) error
	PositionEpoch(id uint64) (uint64, error)
	SetPositionEpoch(id uint64, epoch uint64) error
	PositionPoint(id uint64, epoch uint64) (Point, error)
	SetPositionPoint(id uint64, epoch uint64, point Point) error
}

// PointState persists the global decay history, the slope-change schedule and
// the total locked principal.
type PointState interface {
	Epoch() (uint64, error)
	SetEpoch(epoch uint64) error
	GlobalPoint(epoch uint64) (Point, error)
	SetGlobalPoint(epoch uint64, point Point) error
	SlopeChange(block uint64) (*big.Int, error)
	SetSlopeChange(block uint64, delta *big.Int) error
	Supply() (*big.Int, error)
	SetSupply(supply *big.Int) error
}

// MarkupState persists the boost layer: per-asset coefficients, per-holder
// frozen collateral with the holder indexes needed by refresh, and each user's
// aggregate multiplier.
type MarkupState interface {
	MarkupConfig(asset string) (*MarkupConfig, bool, error)
	SetMarkupConfig(asset string, cfg *MarkupConfig) error
	TotalLock(asset string) (*big.Int, error)
	SetTotalLock(asset string, total *big.Int) error
	LockedToken(asset string, who [20]byte) (*LockedToken, bool, error)
	SetLockedToken(asset string, who [20]byte, locked *LockedToken) error
	DeleteLockedToken(asset string, who [20]byte) error
	LockedTokenHolders(asset string) ([][20]byte, error)
	UserMarkupAssets(who [20]byte) ([]string, error)
	UserMarkup(who [20]byte) (*UserMarkupInfo, bool, error)
	SetUserMarkup(who [20]byte, info *UserMarkupInfo) error
}

// RewardState persists the per-pool incentive configuration and the per-user
// reward bookkeeping.
type RewardState interface {
	Incentive(pool uint64) (*IncentiveConfig, bool, error)
	SetIncentive(pool uint64, cfg *IncentiveConfig) error
	UserRewardPerTokenPaid(pool uint64, who [20]byte) (map[string]*big.Int, error)
	SetUserRewardPerTokenPaid(pool uint64, who [20]byte, paid map[string]*big.Int) error
	UserRewards(pool uint64, who [20]byte) (map[string]*big.Int, error)
	SetUserRewards(pool uint64, who [20]byte, rewards map[string]*big.Int) error
}

// ConfigState persists the admin-adjustable lock parameters.
type ConfigState interface {
	LockConfig() (*LockConfig, error)
	SetLockConfig(cfg *LockConfig) error
}

// State is the full persistence surface required by the engine.
type State interface {
	PositionState
	PointState
	MarkupState
	RewardState
	ConfigState
}
