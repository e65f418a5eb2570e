package domain

import "errors"

var (
	ErrMathOverflow          = errors.New("math overflow occurred")
	ErrInsufficientStake     = errors.New("insufficient staked amount")
	ErrNoRewards             = errors.New("no rewards available to claim")
	ErrWithdrawalTooFrequent = errors.New("withdrawal attempts are too frequent")
	ErrInvalidPoolType       = errors.New("invalid pool type selected")
	ErrStakePeriodTooShort   = errors.New("stake period is too short for claiming rewards")
	ErrClaimTooSoon          = errors.New("claim attempted too soon after a fee deposit")
	ErrInvalidProof          = errors.New("anti-manipulation proof rejected")

	ErrUnauthorized         = errors.New("caller is not authorized")
	ErrInvalidProduct       = errors.New("invalid product")
	ErrPositionNotFound     = errors.New("position not found")
	ErrProposalNotFound     = errors.New("proposal not found")
	ErrProposalExecuted     = errors.New("proposal already executed")
	ErrLedgerNotInitialized = errors.New("ledger not initialized")
	ErrAlreadyInitialized   = errors.New("ledger already initialized")
	ErrTransferFailed       = errors.New("transfer failed")
	ErrStaleLedger          = errors.New("stale ledger version")
)
