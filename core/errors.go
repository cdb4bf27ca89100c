package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Authorization errors.
var (
	ErrUnauthorized       = errors.New("caller is not the owner")
	ErrUnauthorizedCaller = errors.New("caller does not own identity handle")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
)

// State errors.
var (
	ErrGameDoesNotExist     = errors.New("game does not exist")
	ErrGameAlreadyEnded     = errors.New("game already ended")
	ErrGameDurationExceeded = errors.New("game duration exceeded")
	ErrGameNotExpired       = errors.New("game duration not yet elapsed")
	ErrGameNotEnded         = errors.New("game has not ended")
	ErrPlayerLimitReached   = errors.New("player limit reached")
	ErrAlreadyParticipated  = errors.New("player already joined")
	ErrNotInGame            = errors.New("player eliminated or not in game")
	ErrPlayerNotInGame      = errors.New("player not in game")
	ErrInvalidStage         = errors.New("invalid stage")
	ErrStageMismatch        = errors.New("stage mismatch")
	ErrAlreadySubmitted     = errors.New("answers already submitted for stage")
	ErrFinalStage           = errors.New("game at final stage")
)

// Economic errors.
var (
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInsufficientAllowance   = errors.New("insufficient allowance")
	ErrInvalidAmount           = errors.New("amount must be greater than 0")
	ErrNoStakeFound            = errors.New("no stake found")
	ErrInvalidRefundPercentage = errors.New("invalid stage for refund")
	ErrNoForfeitedStakes       = errors.New("no forfeited stakes")
	ErrNothingToSweep          = errors.New("nothing to sweep")
	ErrStakingPaused           = errors.New("staking is paused")
	ErrMintingPaused           = errors.New("minting is paused")
	ErrExceedsMaxSupply        = errors.New("exceeds max supply")
	ErrExceedsMaxMintPerWallet = errors.New("exceeds max mint per wallet")
	ErrBalanceTooHigh          = errors.New("balance must be below mint threshold")
)

// Input validation errors.
var (
	ErrInvalidQuestionHash   = errors.New("invalid question hash")
	ErrDuplicateQuestionHash = errors.New("duplicate question hash")
	ErrInvalidGameDuration   = errors.New("invalid game duration")
	ErrInvalidAnswerCount    = errors.New("invalid answer count")
	ErrInvalidScore          = errors.New("invalid score")
	ErrInvalidStringLength   = errors.New("invalid string length")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrInvalidWinnerCount    = errors.New("must have 3 winners")
	ErrInvalidRank           = errors.New("invalid rank")
	ErrInvalidTokenURI       = errors.New("invalid token URI")
)
