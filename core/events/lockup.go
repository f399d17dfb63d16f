package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

const (
	// TypeLockupCreated is emitted when a new lock position is created.
	TypeLockupCreated = "lockup.created"
	// TypeLockupDeposited captures principal added to an existing position.
	TypeLockupDeposited = "lockup.deposited"
	// TypeLockupExtended captures an unlock-time extension.
	TypeLockupExtended = "lockup.unlockTimeExtended"
	// TypeLockupWithdrawn is emitted when an expired position is withdrawn.
	TypeLockupWithdrawn = "lockup.withdrawn"
	// TypeLockupRedeemed is emitted when a position exits early against a penalty.
	TypeLockupRedeemed = "lockup.redeemed"
	// TypeMarkupDeposited captures boost collateral being frozen.
	TypeMarkupDeposited = "lockup.markupDeposited"
	// TypeMarkupWithdrawn captures boost collateral being released.
	TypeMarkupWithdrawn = "lockup.markupWithdrawn"
	// TypeMarkupRefreshed captures a holder re-evaluated against the current coefficients.
	TypeMarkupRefreshed = "lockup.markupRefreshed"
	// TypeRewardsNotified is emitted when a reward period is funded and (re)armed.
	TypeRewardsNotified = "lockup.rewardsNotified"
	// TypeRewardPaid is emitted per asset when accrued rewards are settled.
	TypeRewardPaid = "lockup.rewardPaid"
	// TypeLockupConfigUpdated captures an admin parameter change.
	TypeLockupConfigUpdated = "lockup.configUpdated"
)

func hexAddr(addr [20]byte) string { return "0x" + hex.EncodeToString(addr[:]) }

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// LockupCreated captures a freshly created lock position.
type LockupCreated struct {
	Who    [20]byte
	ID     uint64
	Amount *big.Int
	End    uint64
}

// EventType satisfies the Event interface.
func (LockupCreated) EventType() string { return TypeLockupCreated }

// Record converts the structured payload into a broadcastable record.
func (e LockupCreated) Record() *Record {
	return &Record{Type: TypeLockupCreated, Attributes: map[string]string{
		"addr":   hexAddr(e.Who),
		"id":     strconv.FormatUint(e.ID, 10),
		"amount": amount(e.Amount),
		"end":    strconv.FormatUint(e.End, 10),
	}}
}

// LockupDeposited captures principal added to an existing position.
type LockupDeposited struct {
	Who    [20]byte
	ID     uint64
	Amount *big.Int
	Total  *big.Int
}

// EventType satisfies the Event interface.
func (LockupDeposited) EventType() string { return TypeLockupDeposited }

// Record converts the structured payload into a broadcastable record.
func (e LockupDeposited) Record() *Record {
	return &Record{Type: TypeLockupDeposited, Attributes: map[string]string{
		"addr":   hexAddr(e.Who),
		"id":     strconv.FormatUint(e.ID, 10),
		"amount": amount(e.Amount),
		"total":  amount(e.Total),
	}}
}

// LockupExtended captures an unlock-time extension on a live position.
type LockupExtended struct {
	Who    [20]byte
	ID     uint64
	OldEnd uint64
	NewEnd uint64
}

// EventType satisfies the Event interface.
func (LockupExtended) EventType() string { return TypeLockupExtended }

// Record converts the structured payload into a broadcastable record.
func (e LockupExtended) Record() *Record {
	return &Record{Type: TypeLockupExtended, Attributes: map[string]string{
		"addr":   hexAddr(e.Who),
		"id":     strconv.FormatUint(e.ID, 10),
		"oldEnd": strconv.FormatUint(e.OldEnd, 10),
		"newEnd": strconv.FormatUint(e.NewEnd, 10),
	}}
}

// LockupWithdrawn captures the terminal payout of an expired position.
type LockupWithdrawn struct {
	Who    [20]byte
	ID     uint64
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (LockupWithdrawn) EventType() string { return TypeLockupWithdrawn }

// Record converts the structured payload into a broadcastable record.
func (e LockupWithdrawn) Record() *Record {
	return &Record{Type: TypeLockupWithdrawn, Attributes: map[string]string{
		"addr":   hexAddr(e.Who),
		"id":     strconv.FormatUint(e.ID, 10),
		"amount": amount(e.Amount),
	}}
}

// LockupRedeemed captures an early exit with the penalty retained.
type LockupRedeemed struct {
	Who     [20]byte
	ID      uint64
	Amount  *big.Int
	Penalty *big.Int
}

// EventType satisfies the Event interface.
func (LockupRedeemed) EventType() string { return TypeLockupRedeemed }

// Record converts the structured payload into a broadcastable record.
func (e LockupRedeemed) Record() *Record {
	return &Record{Type: TypeLockupRedeemed, Attributes: map[string]string{
		"addr":    hexAddr(e.Who),
		"id":      strconv.FormatUint(e.ID, 10),
		"amount":  amount(e.Amount),
		"penalty": amount(e.Penalty),
	}}
}

// MarkupDeposited captures boost collateral frozen against an asset.
type MarkupDeposited struct {
	Who    [20]byte
	Asset  string
	Amount *big.Int
	Coeff  *big.Int
}

// EventType satisfies the Event interface.
func (MarkupDeposited) EventType() string { return TypeMarkupDeposited }

// Record converts the structured payload into a broadcastable record.
func (e MarkupDeposited) Record() *Record {
	return &Record{Type: TypeMarkupDeposited, Attributes: map[string]string{
		"addr":   hexAddr(e.Who),
		"asset":  e.Asset,
		"amount": amount(e.Amount),
		"coeff":  amount(e.Coeff),
	}}
}

// MarkupWithdrawn captures boost collateral released back to the holder.
type MarkupWithdrawn struct {
	Who    [20]byte
	Asset  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (MarkupWithdrawn) EventType() string { return TypeMarkupWithdrawn }

// Record converts the structured payload into a broadcastable record.
func (e MarkupWithdrawn) Record() *Record {
	return &Record{Type: TypeMarkupWithdrawn, Attributes: map[string]string{
		"addr":   hexAddr(e.Who),
		"asset":  e.Asset,
		"amount": amount(e.Amount),
	}}
}

// MarkupRefreshed captures a holder re-evaluated against the live coefficients.
type MarkupRefreshed struct {
	Who   [20]byte
	Asset string
	Coeff *big.Int
}

// EventType satisfies the Event interface.
func (MarkupRefreshed) EventType() string { return TypeMarkupRefreshed }

// Record converts the structured payload into a broadcastable record.
func (e MarkupRefreshed) Record() *Record {
	return &Record{Type: TypeMarkupRefreshed, Attributes: map[string]string{
		"addr":  hexAddr(e.Who),
		"asset": e.Asset,
		"coeff": amount(e.Coeff),
	}}
}

// RewardsNotified captures a funded reward period for a pool.
type RewardsNotified struct {
	Pool         uint64
	Asset        string
	Amount       *big.Int
	PeriodFinish uint64
}

// EventType satisfies the Event interface.
func (RewardsNotified) EventType() string { return TypeRewardsNotified }

// Record converts the structured payload into a broadcastable record.
func (e RewardsNotified) Record() *Record {
	return &Record{Type: TypeRewardsNotified, Attributes: map[string]string{
		"pool":         strconv.FormatUint(e.Pool, 10),
		"asset":        e.Asset,
		"amount":       amount(e.Amount),
		"periodFinish": strconv.FormatUint(e.PeriodFinish, 10),
	}}
}

// RewardPaid captures a settled reward claim for one asset.
type RewardPaid struct {
	Pool   uint64
	Who    [20]byte
	Asset  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (RewardPaid) EventType() string { return TypeRewardPaid }

// Record converts the structured payload into a broadcastable record.
func (e RewardPaid) Record() *Record {
	return &Record{Type: TypeRewardPaid, Attributes: map[string]string{
		"pool":   strconv.FormatUint(e.Pool, 10),
		"addr":   hexAddr(e.Who),
		"asset":  e.Asset,
		"amount": amount(e.Amount),
	}}
}

// LockupConfigUpdated captures an admin parameter change.
type LockupConfigUpdated struct {
	MinMint       *big.Int
	MinLockBlocks uint64
}

// EventType satisfies the Event interface.
func (LockupConfigUpdated) EventType() string { return TypeLockupConfigUpdated }

// Record converts the structured payload into a broadcastable record.
func (e LockupConfigUpdated) Record() *Record {
	attrs := make(map[string]string)
	if e.MinMint != nil {
		attrs["minMint"] = e.MinMint.String()
	}
	if e.MinLockBlocks > 0 {
		attrs["minLockBlocks"] = strconv.FormatUint(e.MinLockBlocks, 10)
	}
	return &Record{Type: TypeLockupConfigUpdated, Attributes: attrs}
}
