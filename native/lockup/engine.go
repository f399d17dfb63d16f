package lockup

import (
	"errors"
	"math/big"

	"bbchain/core/events"
	"bbchain/fixedpoint"
)

// Ledger abstracts the token ledger the engine settles against. Transfers move
// free balance; LockAndFreeze sets the absolute frozen amount for a holder so
// markup collateral stays in the holder's account while being unspendable.
type Ledger interface {
	Transfer(asset string, from, to [20]byte, amount *big.Int) error
	LockAndFreeze(asset string, who [20]byte, amount *big.Int) error
	FreeBalance(asset string, who [20]byte) (*big.Int, error)
	EnsureCanWithdraw(asset string, who [20]byte, amount *big.Int) error
}

// AssetInfo exposes the asset registry queries the boost layer needs.
type AssetInfo interface {
	Exists(asset string) bool
	TotalIssuance(asset string) (*big.Int, error)
}

// Authorizer gates the admin operations.
type Authorizer interface {
	IsAdmin(addr [20]byte) bool
}

// PenaltyPolicy computes the early-exit penalty from the blocks remaining
// until expiry and the principal being redeemed.
type PenaltyPolicy func(remaining, maxLockBlocks uint64, amount *big.Int) *big.Int

// LinearPenalty charges amount*remaining/maxLockBlocks: nothing at expiry,
// the full principal for a freshly created maximum lock.
func LinearPenalty(remaining, maxLockBlocks uint64, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || maxLockBlocks == 0 {
		return big.NewInt(0)
	}
	if remaining > maxLockBlocks {
		remaining = maxLockBlocks
	}
	penalty := new(big.Int).Mul(amount, new(big.Int).SetUint64(remaining))
	return penalty.Div(penalty, new(big.Int).SetUint64(maxLockBlocks))
}

// Metrics receives engine-side counters. All methods must be cheap and safe
// for concurrent use.
type Metrics interface {
	CheckpointWritten()
	RewardPaid(asset string)
	MarkupRefreshScanned(holders int)
}

// NoopMetrics discards all engine counters.
type NoopMetrics struct{}

func (NoopMetrics) CheckpointWritten()       {}
func (NoopMetrics) RewardPaid(string)        {}
func (NoopMetrics) MarkupRefreshScanned(int) {}

// Engine wires the lockup business logic with external state, the token
// ledger and event emitters.
type Engine struct {
	state   State
	ledger  Ledger
	assets  AssetInfo
	auth    Authorizer
	emitter events.Emitter
	metrics Metrics
	params  Params
	penalty PenaltyPolicy
	blockFn func() uint64
}

// NewEngine creates a lockup engine with a no-op emitter and the linear
// penalty policy. Callers must wire state, ledger and a block source before
// use.
func NewEngine(params Params) *Engine {
	if params.BlocksPerWeek == 0 {
		params.BlocksPerWeek = BlocksPerWeek
	}
	if params.MaxLockBlocks == 0 {
		params.MaxLockBlocks = MaxLockBlocks
	}
	if params.MaxPositions == 0 {
		params.MaxPositions = MaxPositions
	}
	return &Engine{
		emitter: events.NoopEmitter{},
		metrics: NoopMetrics{},
		params:  params,
		penalty: LinearPenalty,
		blockFn: func() uint64 { return 0 },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetLedger configures the token ledger used for transfers and freezes.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetAssetInfo configures the asset registry consulted by the boost layer.
func (e *Engine) SetAssetInfo(assets AssetInfo) { e.assets = assets }

// SetAuthorizer configures the admin gate. A nil authorizer rejects everyone.
func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

// SetBlockFunc overrides the block-height source. Primarily intended for
// tests to provide deterministic heights.
func (e *Engine) SetBlockFunc(blockFn func() uint64) {
	if blockFn == nil {
		e.blockFn = func() uint64 { return 0 }
		return
	}
	e.blockFn = blockFn
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMetrics configures the metrics sink. Passing nil resets to no-op.
func (e *Engine) SetMetrics(metrics Metrics) {
	if metrics == nil {
		e.metrics = NoopMetrics{}
		return
	}
	e.metrics = metrics
}

// SetPenaltyPolicy overrides the early-exit penalty curve. Passing nil resets
// to the linear policy.
func (e *Engine) SetPenaltyPolicy(policy PenaltyPolicy) {
	if policy == nil {
		e.penalty = LinearPenalty
		return
	}
	e.penalty = policy
}

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) currentBlock() uint64 {
	if e == nil || e.blockFn == nil {
		return 0
	}
	return e.blockFn()
}

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) requireLedger() error {
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) isAdmin(addr [20]byte) bool {
	return e.auth != nil && e.auth.IsAdmin(addr)
}

// mapMathErr rewrites fixed-point bound violations into the engine taxonomy.
func mapMathErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fixedpoint.ErrOverflow):
		return ErrOverflow
	case errors.Is(err, fixedpoint.ErrUnderflow):
		return ErrUnderflow
	default:
		return err
	}
}
