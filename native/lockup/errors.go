package lockup

import "errors"

var (
	ErrArguments           = errors.New("lockup: invalid arguments")
	ErrBelowMinimumMint    = errors.New("lockup: below minimum mint")
	ErrExceedsMaxPositions = errors.New("lockup: exceeds max positions")
	ErrLockNotExist        = errors.New("lockup: lock does not exist")
	ErrExpired             = errors.New("lockup: expiry constraint violated")
	ErrNotEnoughBalance    = errors.New("lockup: not enough balance")
	ErrOverflow            = errors.New("lockup: overflow")
	ErrUnderflow           = errors.New("lockup: underflow")
	ErrUnauthorized        = errors.New("lockup: unauthorized")
	ErrNoRewardPool        = errors.New("lockup: reward pool not configured")
	ErrCheckpointHorizon   = errors.New("lockup: checkpoint horizon exceeded")

	errNilState  = errors.New("lockup engine: state not configured")
	errNilLedger = errors.New("lockup engine: ledger not configured")
	errNilAssets = errors.New("lockup engine: asset registry not configured")
)
