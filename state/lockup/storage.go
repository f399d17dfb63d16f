// Package lockup persists the lockup engine state as RLP records in a
// key-value database. Every record type is a flat struct of unsigned values;
// the one signed quantity, the slope-change schedule, is stored as a
// sign-and-magnitude pair because RLP has no signed integer form.
package lockup

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"bbchain/fixedpoint"
	"bbchain/native/lockup"
	"bbchain/storage"
)

const (
	keyPositionSeq   = "lockup/position-seq"
	keyEpoch         = "lockup/epoch"
	keySupply        = "lockup/supply"
	keyLockConfig    = "lockup/lock-config"
	prefixPosition   = "lockup/position/"
	prefixUserPos    = "lockup/user-positions/"
	prefixPosEpoch   = "lockup/position-epoch/"
	prefixPosPoint   = "lockup/position-point/"
	prefixGlobal     = "lockup/global-point/"
	prefixSlope      = "lockup/slope-change/"
	prefixMarkupCfg  = "lockup/markup-config/"
	prefixTotalLock  = "lockup/total-lock/"
	prefixLocked     = "lockup/locked-token/"
	prefixHolders    = "lockup/locked-holders/"
	prefixUserAssets = "lockup/user-markup-assets/"
	prefixUserMarkup = "lockup/user-markup/"
	prefixIncentive  = "lockup/incentive/"
	prefixPaid       = "lockup/reward-paid/"
	prefixRewards    = "lockup/rewards/"
)

type positionRecord struct {
	Owner  [20]byte
	Amount *big.Int
	End    uint64
}

type pointRecord struct {
	Bias   *big.Int
	Slope  *big.Int
	Block  uint64
	Amount *big.Int
}

type signedRecord struct {
	Neg bool
	Abs *big.Int
}

type lockConfigRecord struct {
	MinMint       *big.Int
	MinLockBlocks uint64
}

type markupConfigRecord struct {
	Hardcap              *big.Int
	Coefficient          *big.Int
	LockShareCoefficient *big.Int
	UpdateBlock          uint64
}

type lockedTokenRecord struct {
	Amount            *big.Int
	MarkupCoefficient *big.Int
	RefreshBlock      uint64
}

type userMarkupRecord struct {
	OldMarkupCoefficient *big.Int
	MarkupCoefficient    *big.Int
}

type assetAmountRecord struct {
	Asset  string
	Amount *big.Int
}

type incentiveRecord struct {
	Rates           []assetAmountRecord
	Indices         []assetAmountRecord
	RewardsDuration uint64
	PeriodFinish    uint64
	LastUpdateBlock uint64
	Controller      [20]byte
	LastReward      []assetAmountRecord
}

// Store implements lockup.State over a storage.Database.
type Store struct {
	db storage.Database
}

// NewStore wraps a database in a lockup state store.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

var _ lockup.State = (*Store)(nil)

func (s *Store) load(key string, out interface{}) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state/lockup: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) store(key string, v interface{}) error {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("state/lockup: encode %s: %w", key, err)
	}
	return s.db.Put([]byte(key), raw)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func addrKey(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func positionKey(id uint64) string { return fmt.Sprintf("%s%d", prefixPosition, id) }

func userPositionsKey(a [20]byte) string { return prefixUserPos + addrKey(a) }

func positionEpochKey(id uint64) string { return fmt.Sprintf("%s%d", prefixPosEpoch, id) }

func positionPointKey(id, epoch uint64) string {
	return fmt.Sprintf("%s%d/%d", prefixPosPoint, id, epoch)
}

func globalPointKey(epoch uint64) string { return fmt.Sprintf("%s%d", prefixGlobal, epoch) }

func slopeKey(block uint64) string { return fmt.Sprintf("%s%d", prefixSlope, block) }

func lockedTokenKey(asset string, who [20]byte) string {
	return prefixLocked + asset + "/" + addrKey(who)
}

func poolUserKey(prefix string, pool uint64, who [20]byte) string {
	return fmt.Sprintf("%s%d/%s", prefix, pool, addrKey(who))
}

func mapFromRecords(recs []assetAmountRecord) map[string]*big.Int {
	out := make(map[string]*big.Int, len(recs))
	for _, rec := range recs {
		out[rec.Asset] = nonNil(rec.Amount)
	}
	return out
}

func recordsFromMap(m map[string]*big.Int) []assetAmountRecord {
	assets := make([]string, 0, len(m))
	for asset := range m {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	out := make([]assetAmountRecord, 0, len(assets))
	for _, asset := range assets {
		out = append(out, assetAmountRecord{Asset: asset, Amount: nonNil(m[asset])})
	}
	return out
}

// --- PositionState ---

func (s *Store) NextPositionID() (uint64, error) {
	var seq uint64
	if _, err := s.load(keyPositionSeq, &seq); err != nil {
		return 0, err
	}
	if err := s.store(keyPositionSeq, seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) PositionGet(id uint64) (*lockup.Position, bool, error) {
	var rec positionRecord
	ok, err := s.load(positionKey(id), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &lockup.Position{Owner: rec.Owner, Amount: nonNil(rec.Amount), End: rec.End}, true, nil
}

func (s *Store) PositionPut(id uint64, position *lockup.Position) error {
	if position == nil {
		return fmt.Errorf("state/lockup: nil position")
	}
	return s.store(positionKey(id), &positionRecord{
		Owner:  position.Owner,
		Amount: nonNil(position.Amount),
		End:    position.End,
	})
}

func (s *Store) PositionDelete(id uint64) error {
	return s.db.Delete([]byte(positionKey(id)))
}

func (s *Store) UserPositions(owner [20]byte) ([]uint64, error) {
	var ids []uint64
	if _, err := s.load(userPositionsKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) SetUserPositions(owner [20]byte, ids []uint64) error {
	if len(ids) == 0 {
		return s.db.Delete([]byte(userPositionsKey(owner)))
	}
	return s.store(userPositionsKey(owner), ids)
}

func (s *Store) PositionEpoch(id uint64) (uint64, error) {
	var epoch uint64
	if _, err := s.load(positionEpochKey(id), &epoch); err != nil {
		return 0, err
	}
	return epoch, nil
}

func (s *Store) SetPositionEpoch(id uint64, epoch uint64) error {
	return s.store(positionEpochKey(id), epoch)
}

func (s *Store) PositionPoint(id uint64, epoch uint64) (lockup.Point, error) {
	var rec pointRecord
	if _, err := s.load(positionPointKey(id, epoch), &rec); err != nil {
		return lockup.Point{}, err
	}
	return pointFromRecord(rec), nil
}

func (s *Store) SetPositionPoint(id uint64, epoch uint64, point lockup.Point) error {
	return s.store(positionPointKey(id, epoch), recordFromPoint(point))
}

func pointFromRecord(rec pointRecord) lockup.Point {
	return lockup.Point{
		Bias:   nonNil(rec.Bias),
		Slope:  nonNil(rec.Slope),
		Block:  rec.Block,
		Amount: nonNil(rec.Amount),
	}
}

func recordFromPoint(point lockup.Point) *pointRecord {
	return &pointRecord{
		Bias:   nonNil(point.Bias),
		Slope:  nonNil(point.Slope),
		Block:  point.Block,
		Amount: nonNil(point.Amount),
	}
}

// --- PointState ---

func (s *Store) Epoch() (uint64, error) {
	var epoch uint64
	if _, err := s.load(keyEpoch, &epoch); err != nil {
		return 0, err
	}
	return epoch, nil
}

func (s *Store) SetEpoch(epoch uint64) error {
	return s.store(keyEpoch, epoch)
}

func (s *Store) GlobalPoint(epoch uint64) (lockup.Point, error) {
	var rec pointRecord
	if _, err := s.load(globalPointKey(epoch), &rec); err != nil {
		return lockup.Point{}, err
	}
	return pointFromRecord(rec), nil
}

func (s *Store) SetGlobalPoint(epoch uint64, point lockup.Point) error {
	return s.store(globalPointKey(epoch), recordFromPoint(point))
}

func (s *Store) SlopeChange(block uint64) (*big.Int, error) {
	var rec signedRecord
	ok, err := s.load(slopeKey(block), &rec)
	if err != nil || !ok {
		return big.NewInt(0), err
	}
	delta := nonNil(rec.Abs)
	if rec.Neg {
		delta = new(big.Int).Neg(delta)
	}
	return delta, nil
}

func (s *Store) SetSlopeChange(block uint64, delta *big.Int) error {
	rec := signedRecord{Abs: big.NewInt(0)}
	if delta != nil {
		rec.Neg = delta.Sign() < 0
		rec.Abs = new(big.Int).Abs(delta)
	}
	return s.store(slopeKey(block), &rec)
}

func (s *Store) Supply() (*big.Int, error) {
	supply := new(big.Int)
	if _, err := s.load(keySupply, supply); err != nil {
		return nil, err
	}
	return supply, nil
}

func (s *Store) SetSupply(supply *big.Int) error {
	return s.store(keySupply, nonNil(supply))
}

// --- MarkupState ---

func (s *Store) MarkupConfig(asset string) (*lockup.MarkupConfig, bool, error) {
	var rec markupConfigRecord
	ok, err := s.load(prefixMarkupCfg+asset, &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	hardcap, err := fixedpoint.FromInner(rec.Hardcap)
	if err != nil {
		return nil, false, err
	}
	coefficient, err := fixedpoint.FromInner(rec.Coefficient)
	if err != nil {
		return nil, false, err
	}
	lockShare, err := fixedpoint.FromInner(rec.LockShareCoefficient)
	if err != nil {
		return nil, false, err
	}
	return &lockup.MarkupConfig{
		Hardcap:              hardcap,
		Coefficient:          coefficient,
		LockShareCoefficient: lockShare,
		UpdateBlock:          rec.UpdateBlock,
	}, true, nil
}

func (s *Store) SetMarkupConfig(asset string, cfg *lockup.MarkupConfig) error {
	if cfg == nil {
		return fmt.Errorf("state/lockup: nil markup config")
	}
	return s.store(prefixMarkupCfg+asset, &markupConfigRecord{
		Hardcap:              cfg.Hardcap.Inner(),
		Coefficient:          cfg.Coefficient.Inner(),
		LockShareCoefficient: cfg.LockShareCoefficient.Inner(),
		UpdateBlock:          cfg.UpdateBlock,
	})
}

func (s *Store) TotalLock(asset string) (*big.Int, error) {
	total := new(big.Int)
	if _, err := s.load(prefixTotalLock+asset, total); err != nil {
		return nil, err
	}
	return total, nil
}

func (s *Store) SetTotalLock(asset string, total *big.Int) error {
	return s.store(prefixTotalLock+asset, nonNil(total))
}

func (s *Store) LockedToken(asset string, who [20]byte) (*lockup.LockedToken, bool, error) {
	var rec lockedTokenRecord
	ok, err := s.load(lockedTokenKey(asset, who), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	coeff, err := fixedpoint.FromInner(rec.MarkupCoefficient)
	if err != nil {
		return nil, false, err
	}
	return &lockup.LockedToken{
		Amount:            nonNil(rec.Amount),
		MarkupCoefficient: coeff,
		RefreshBlock:      rec.RefreshBlock,
	}, true, nil
}

func (s *Store) SetLockedToken(asset string, who [20]byte, locked *lockup.LockedToken) error {
	if locked == nil {
		return fmt.Errorf("state/lockup: nil locked token")
	}
	if err := s.store(lockedTokenKey(asset, who), &lockedTokenRecord{
		Amount:            nonNil(locked.Amount),
		MarkupCoefficient: locked.MarkupCoefficient.Inner(),
		RefreshBlock:      locked.RefreshBlock,
	}); err != nil {
		return err
	}
	if err := s.indexHolder(asset, who); err != nil {
		return err
	}
	return s.indexUserAsset(who, asset)
}

func (s *Store) DeleteLockedToken(asset string, who [20]byte) error {
	if err := s.db.Delete([]byte(lockedTokenKey(asset, who))); err != nil {
		return err
	}
	holders, err := s.LockedTokenHolders(asset)
	if err != nil {
		return err
	}
	kept := holders[:0]
	for _, holder := range holders {
		if holder != who {
			kept = append(kept, holder)
		}
	}
	if err := s.setHolders(asset, kept); err != nil {
		return err
	}
	assets, err := s.UserMarkupAssets(who)
	if err != nil {
		return err
	}
	keptAssets := assets[:0]
	for _, a := range assets {
		if a != asset {
			keptAssets = append(keptAssets, a)
		}
	}
	return s.setUserAssets(who, keptAssets)
}

func (s *Store) LockedTokenHolders(asset string) ([][20]byte, error) {
	var holders [][20]byte
	if _, err := s.load(prefixHolders+asset, &holders); err != nil {
		return nil, err
	}
	return holders, nil
}

func (s *Store) setHolders(asset string, holders [][20]byte) error {
	if len(holders) == 0 {
		return s.db.Delete([]byte(prefixHolders + asset))
	}
	return s.store(prefixHolders+asset, holders)
}

func (s *Store) indexHolder(asset string, who [20]byte) error {
	holders, err := s.LockedTokenHolders(asset)
	if err != nil {
		return err
	}
	for _, holder := range holders {
		if holder == who {
			return nil
		}
	}
	return s.setHolders(asset, append(holders, who))
}

func (s *Store) UserMarkupAssets(who [20]byte) ([]string, error) {
	var assets []string
	if _, err := s.load(prefixUserAssets+addrKey(who), &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (s *Store) setUserAssets(who [20]byte, assets []string) error {
	if len(assets) == 0 {
		return s.db.Delete([]byte(prefixUserAssets + addrKey(who)))
	}
	return s.store(prefixUserAssets+addrKey(who), assets)
}

func (s *Store) indexUserAsset(who [20]byte, asset string) error {
	assets, err := s.UserMarkupAssets(who)
	if err != nil {
		return err
	}
	for _, a := range assets {
		if a == asset {
			return nil
		}
	}
	return s.setUserAssets(who, append(assets, asset))
}

func (s *Store) UserMarkup(who [20]byte) (*lockup.UserMarkupInfo, bool, error) {
	var rec userMarkupRecord
	ok, err := s.load(prefixUserMarkup+addrKey(who), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	old, err := fixedpoint.FromInner(rec.OldMarkupCoefficient)
	if err != nil {
		return nil, false, err
	}
	current, err := fixedpoint.FromInner(rec.MarkupCoefficient)
	if err != nil {
		return nil, false, err
	}
	return &lockup.UserMarkupInfo{OldMarkupCoefficient: old, MarkupCoefficient: current}, true, nil
}

func (s *Store) SetUserMarkup(who [20]byte, info *lockup.UserMarkupInfo) error {
	if info == nil {
		return fmt.Errorf("state/lockup: nil markup info")
	}
	return s.store(prefixUserMarkup+addrKey(who), &userMarkupRecord{
		OldMarkupCoefficient: info.OldMarkupCoefficient.Inner(),
		MarkupCoefficient:    info.MarkupCoefficient.Inner(),
	})
}

// --- RewardState ---

func (s *Store) Incentive(pool uint64) (*lockup.IncentiveConfig, bool, error) {
	var rec incentiveRecord
	ok, err := s.load(fmt.Sprintf("%s%d", prefixIncentive, pool), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	conf := &lockup.IncentiveConfig{
		RewardRate:           mapFromRecords(rec.Rates),
		RewardPerTokenStored: mapFromRecords(rec.Indices),
		RewardsDuration:      rec.RewardsDuration,
		PeriodFinish:         rec.PeriodFinish,
		LastUpdateBlock:      rec.LastUpdateBlock,
		Controller:           rec.Controller,
	}
	for _, entry := range rec.LastReward {
		conf.LastReward = append(conf.LastReward, lockup.AssetAmount{Asset: entry.Asset, Amount: nonNil(entry.Amount)})
	}
	return conf, true, nil
}

func (s *Store) SetIncentive(pool uint64, conf *lockup.IncentiveConfig) error {
	if conf == nil {
		return fmt.Errorf("state/lockup: nil incentive config")
	}
	rec := incentiveRecord{
		Rates:           recordsFromMap(conf.RewardRate),
		Indices:         recordsFromMap(conf.RewardPerTokenStored),
		RewardsDuration: conf.RewardsDuration,
		PeriodFinish:    conf.PeriodFinish,
		LastUpdateBlock: conf.LastUpdateBlock,
		Controller:      conf.Controller,
	}
	for _, entry := range conf.LastReward {
		rec.LastReward = append(rec.LastReward, assetAmountRecord{Asset: entry.Asset, Amount: nonNil(entry.Amount)})
	}
	return s.store(fmt.Sprintf("%s%d", prefixIncentive, pool), &rec)
}

func (s *Store) UserRewardPerTokenPaid(pool uint64, who [20]byte) (map[string]*big.Int, error) {
	var recs []assetAmountRecord
	if _, err := s.load(poolUserKey(prefixPaid, pool, who), &recs); err != nil {
		return nil, err
	}
	return mapFromRecords(recs), nil
}

func (s *Store) SetUserRewardPerTokenPaid(pool uint64, who [20]byte, paid map[string]*big.Int) error {
	return s.store(poolUserKey(prefixPaid, pool, who), recordsFromMap(paid))
}

func (s *Store) UserRewards(pool uint64, who [20]byte) (map[string]*big.Int, error) {
	var recs []assetAmountRecord
	if _, err := s.load(poolUserKey(prefixRewards, pool, who), &recs); err != nil {
		return nil, err
	}
	return mapFromRecords(recs), nil
}

func (s *Store) SetUserRewards(pool uint64, who [20]byte, rewards map[string]*big.Int) error {
	return s.store(poolUserKey(prefixRewards, pool, who), recordsFromMap(rewards))
}

// --- ConfigState ---

func (s *Store) LockConfig() (*lockup.LockConfig, error) {
	var rec lockConfigRecord
	ok, err := s.load(keyLockConfig, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &lockup.LockConfig{MinMint: big.NewInt(0)}, nil
	}
	return &lockup.LockConfig{MinMint: nonNil(rec.MinMint), MinLockBlocks: rec.MinLockBlocks}, nil
}

func (s *Store) SetLockConfig(cfg *lockup.LockConfig) error {
	if cfg == nil {
		return fmt.Errorf("state/lockup: nil lock config")
	}
	return s.store(keyLockConfig, &lockConfigRecord{
		MinMint:       nonNil(cfg.MinMint),
		MinLockBlocks: cfg.MinLockBlocks,
	})
}
