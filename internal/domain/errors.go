package domain

// ErrorKind groups the failure taxonomy so transport layers can map whole
// families of errors onto status codes without enumerating every code.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAuthorization
	KindState
	KindSettlement
	KindSafety
)

// Error is a labeled precondition failure. Every operation reports failures
// as one of these sentinels, optionally wrapped with call-site context via
// fmt.Errorf("...: %w", err); errors.Is resolves the sentinel through wraps.
type Error struct {
	Code string
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(code string, kind ErrorKind, msg string) *Error {
	return &Error{Code: code, Kind: kind, msg: msg}
}

// Input validation.
var (
	ErrInvalidPrice    = newError("INVALID_PRICE", KindValidation, "price must be a positive integer")
	ErrWrongAmount     = newError("WRONG_AMOUNT", KindValidation, "supplied value does not equal the listing price")
	ErrWrongCurrency   = newError("WRONG_CURRENCY", KindValidation, "payment currency does not match the listing")
	ErrInvalidCurrency = newError("INVALID_CURRENCY", KindValidation, "currency cannot be the native sentinel")
	ErrInvalidAddress  = newError("INVALID_ADDRESS", KindValidation, "malformed address")
	ErrInvalidTokenID  = newError("INVALID_TOKEN_ID", KindValidation, "token id must be a non-negative integer")
)

// Authorization.
var (
	ErrNotOwner           = newError("NOT_OWNER", KindAuthorization, "caller is not the current owner of the asset")
	ErrNotSeller          = newError("NOT_SELLER", KindAuthorization, "caller is not the seller of the listing")
	ErrNotAdministrator   = newError("NOT_ADMINISTRATOR", KindAuthorization, "caller is not the administrator")
	ErrNotApproved        = newError("NOT_APPROVED", KindAuthorization, "marketplace is not approved to transfer the asset")
	ErrApprovalRevoked    = newError("APPROVAL_REVOKED", KindAuthorization, "marketplace approval was revoked since listing")
	ErrCurrencyNotAllowed = newError("CURRENCY_NOT_ALLOWED", KindAuthorization, "payment currency is not allow-listed")
)

// State consistency.
var (
	ErrNotFound            = newError("NOT_FOUND", KindState, "no active listing for this asset")
	ErrAlreadyListed       = newError("ALREADY_LISTED", KindState, "an active listing already exists for this asset")
	ErrSellerNoLongerOwner = newError("SELLER_NO_LONGER_OWNER", KindState, "seller no longer owns the asset")
)

// Settlement.
var (
	ErrPaymentTransferFailed = newError("PAYMENT_TRANSFER_FAILED", KindSettlement, "payment transfer failed")
	ErrInsufficientBalance   = newError("INSUFFICIENT_BALANCE", KindSettlement, "buyer balance below listing price")
	ErrInsufficientAllowance = newError("INSUFFICIENT_ALLOWANCE", KindSettlement, "marketplace allowance below listing price")
	ErrWithdrawalFailed      = newError("WITHDRAWAL_FAILED", KindSettlement, "fee withdrawal transfer failed")
	ErrNoFeesToWithdraw      = newError("NO_FEES_TO_WITHDRAW", KindState, "no accrued fees for this currency")
	ErrAssetTransferFailed   = newError("ASSET_TRANSFER_FAILED", KindSettlement, "asset transfer failed")
)

// Safety.
var (
	ErrReentrancyBlocked = newError("REENTRANCY_BLOCKED", KindSafety, "reentrant call not allowed")
	ErrFeeTooHigh        = newError("FEE_TOO_HIGH", KindSafety, "fee rate exceeds the maximum")
)
