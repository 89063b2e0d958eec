package apperr

// Sentinels. Wrap them with fmt.Errorf("...: %w", ErrX) to add context; errors.Is matches on code.
var (
	ErrSeriesActive    = New(CodeSeriesActive, "a series is already active")
	ErrNoActiveSeries  = New(CodeNoActiveSeries, "no active series")
	ErrRollPending     = New(CodeRollPending, "a roll is already pending")
	ErrInvalidBetType  = New(CodeInvalidBetType, "unknown bet type")
	ErrBetNotAllowed   = New(CodeBetNotAllowed, "bet type not allowed right now")
	ErrDuplicateBet    = New(CodeDuplicateBet, "player already has this bet")
	ErrBetNotFound     = New(CodeBetNotFound, "bet not found")
	ErrBetNotRemovable = New(CodeBetNotRemovable, "bet cannot be removed now")
	ErrInvalidTarget   = New(CodeInvalidTarget, "invalid target number")
	ErrMissingBaseBet  = New(CodeMissingBaseBet, "odds require an active base bet")

	ErrAmountOutOfRange      = New(CodeAmountOutOfRange, "amount outside table limits")
	ErrInsufficientLiquidity = New(CodeInsufficientLiquidity, "vault cannot lock this amount")
	ErrInsufficientBalance   = New(CodeInsufficientBalance, "insufficient balance")
	ErrExceedsUnlocked       = New(CodeExceedsUnlocked, "amount exceeds unlocked assets")
	ErrInsufficientShares    = New(CodeInsufficientShares, "insufficient shares")
	ErrZeroAmount            = New(CodeZeroAmount, "amount must be positive")

	ErrUnauthorized = New(CodeUnauthorized, "caller lacks the required role")

	ErrUnknownRequest  = New(CodeUnknownRequest, "unknown or stale roll request")
	ErrSeriesComplete  = New(CodeSeriesComplete, "series already complete")
	ErrInvalidRoll     = New(CodeInvalidRoll, "die value out of range")
	ErrLockNotFound    = New(CodeLockNotFound, "lock not found")
	ErrLockSettled     = New(CodeLockSettled, "lock already settled")
	ErrVaultInsolvent  = New(CodeVaultInsolvent, "operation would leave the vault insolvent")
	ErrSettlementStall = New(CodeSettlementStall, "a fulfilled roll is waiting for settlement")
)
