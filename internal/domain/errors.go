package domain

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the façade translates to HTTP
// status classes (see §7 of the spec this package implements).
type Kind int

const (
	KindValidation Kind = iota
	KindUnauthorized
	KindNotFound
	KindBusinessLogic
	KindStorage
	KindExternal
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindBusinessLogic:
		return "business_logic"
	case KindStorage:
		return "storage"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

// Error is the one variant-per-kind sum type the whole service uses instead
// of string-matching. Cause is wrapped so errors.Is/errors.As still reaches
// the underlying sentinel.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, cause error) *Error {
	return &Error{Kind: k, Msg: cause.Error(), Cause: cause}
}

func NewValidation(cause error) *Error    { return newErr(KindValidation, cause) }
func NewUnauthorized(cause error) *Error  { return newErr(KindUnauthorized, cause) }
func NewNotFound(cause error) *Error      { return newErr(KindNotFound, cause) }
func NewBusinessLogic(cause error) *Error { return newErr(KindBusinessLogic, cause) }
func NewStorage(cause error) *Error       { return newErr(KindStorage, cause) }
func NewExternal(cause error) *Error      { return newErr(KindExternal, cause) }
func NewInternal(cause error) *Error      { return newErr(KindInternal, cause) }

// KindOf extracts the Kind of err, defaulting to KindInternal for anything
// not wrapped in an *Error (an unclassifiable failure, per §7).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel causes, grouped by subsystem. Wrapped by the New* constructors
// above at the point of origin; callers continue to switch on these with
// errors.Is, exactly as the teacher's IsNotFound/IsConflict/IsAuthError did.
// ──────────────────────────────────────────────────────────────────────────────

var (
	// Group / membership
	ErrGroupNotFound    = errors.New("group not found")
	ErrNotMember        = errors.New("caller is not a member of this group")
	ErrNotAdmin         = errors.New("caller is not the group admin")
	ErrGroupNameTooLong = errors.New("group name exceeds 50 characters")

	// Event
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotActive    = errors.New("event is not active")
	ErrTooFewOutcomes    = errors.New("event must have at least 2 outcomes")
	ErrTooManyOutcomes   = errors.New("event must have at most 10 outcomes")
	ErrOutcomeTooLong    = errors.New("outcome label exceeds 50 characters")
	ErrUnknownOutcome    = errors.New("outcome is not defined for this event")
	ErrUnknownSettleType = errors.New("unknown settlement_type")

	// Bet / ledger
	ErrInsufficientFunds = errors.New("insufficient available balance")
	ErrFundsLocked       = errors.New("withdrawal blocked: locked balance is non-zero")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidShares     = errors.New("shares must be positive")
	ErrInvalidPrice      = errors.New("price must be within [0.01, 0.99]")
	ErrBalanceNotFound   = errors.New("balance row not found")

	// Settlement
	ErrAlreadySettled  = errors.New("event already settled")
	ErrNoSettlement    = errors.New("no settlement recorded for event")
	ErrAlreadyClaimed  = errors.New("payout already claimed")
	ErrDuplicateVote   = errors.New("member has already voted on this event")
	ErrVoterNotMember  = errors.New("voter is not a member of this group")
	ErrSettlerNotAdmin = errors.New("settler must be the group admin")

	// Auth
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrSignatureInvalid  = errors.New("signature verification failed")
	ErrTimestampStale    = errors.New("request timestamp outside the replay window")
	ErrInvalidWalletForm = errors.New("wallet address has invalid shape")

	// Storage translation targets
	ErrDuplicate           = errors.New("duplicate row")
	ErrConstraintViolation = errors.New("constraint violation")

	// External
	ErrChainUnavailable = errors.New("on-chain interface unavailable")
)
