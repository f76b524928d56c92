package ledger

import "errors"

// 输入校验错误
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDeadline     = errors.New("invalid deadline")
	ErrInvalidPrice        = errors.New("invalid token price")
	ErrWrongAsset          = errors.New("wrong asset")
	ErrZeroAmount          = errors.New("zero amount")
	ErrInvalidFeeRate      = errors.New("invalid fee rate")
	ErrInvalidFeeRecipient = errors.New("invalid fee recipient")
	ErrInvalidOwner        = errors.New("invalid owner")
	ErrRewardUnavailable   = errors.New("reward registry not configured")
)

// 生命周期状态错误
var (
	ErrCampaignCancelled   = errors.New("campaign cancelled")
	ErrCampaignEnded       = errors.New("campaign ended")
	ErrCampaignNotApproved = errors.New("campaign not approved")
	ErrAlreadyCancelled    = errors.New("campaign already cancelled")
	ErrAlreadyWithdrawn    = errors.New("campaign already withdrawn")
	ErrCampaignHasFunds    = errors.New("campaign has funds")
	ErrGoalNotReached      = errors.New("goal not reached")
	ErrGoalReached         = errors.New("goal reached")
	ErrDeadlineNotReached  = errors.New("deadline not reached")
	ErrBelowMinimum        = errors.New("below minimum contribution")
)

// 权限错误
var (
	ErrNotOwner       = errors.New("caller is not the owner")
	ErrNotCreator     = errors.New("caller is not the campaign creator")
	ErrNotApprover    = errors.New("caller is not the approver")
	ErrNotWhitelisted = errors.New("contributor not whitelisted")
)

// 账务与查询错误
var (
	ErrInvalidCampaign       = errors.New("invalid campaign")
	ErrNotIcoCampaign        = errors.New("not an ico campaign")
	ErrInsufficientIcoTokens = errors.New("insufficient ico tokens")
	ErrNoTokensAvailable     = errors.New("no tokens available")
	ErrNoContribution        = errors.New("no contribution")
)

// 外部调用错误
var (
	ErrTransferFailed = errors.New("transfer failed")
	ErrReentrantCall  = errors.New("reentrant call")
)
