package catalog

import (
	"errors"
	"fmt"
)

// Kind groups market errors by what the caller did wrong.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindLifecycle
	KindAuthorization
	KindSettlement
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindLifecycle:
		return "lifecycle"
	case KindAuthorization:
		return "authorization"
	case KindSettlement:
		return "settlement"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidDeck       = errors.New("invalid deck")
	ErrInvalidGeneration = errors.New("invalid generation")
	ErrInvalidCard       = errors.New("invalid card")
	ErrInvalidStartTime  = errors.New("invalid start time")
	ErrRarityNotSet      = errors.New("rarity not set")
	ErrInvalidRarity     = errors.New("invalid rarity tier")
	ErrInvalidDuration   = errors.New("invalid listing duration")
	ErrInvalidWindow     = errors.New("invalid chain purchase window")
	ErrInvalidDiscount   = errors.New("invalid chain purchase discount")
	ErrInvalidPricing    = errors.New("invalid pricing parameters")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidToken      = errors.New("invalid token id")

	ErrListingAlreadyExists = errors.New("listing already exists")
	ErrListingDoesNotExist  = errors.New("listing does not exist")
	ErrCardNotListed        = errors.New("card not listed")
	ErrCardSaleHasEnded     = errors.New("card sale has ended")
	ErrUnknownToken         = errors.New("unknown token")
	ErrTokenAlreadyIssued   = errors.New("token already issued")

	ErrUnauthorized = errors.New("unauthorized")

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEthTransferFailed = errors.New("eth transfer failed")
	ErrNoEtherBalance    = errors.New("no ether balance")
	ErrReentrantCall     = errors.New("reentrant call")
	ErrCommitFailed      = errors.New("commit failed")
)

type errorClass struct {
	err  error
	kind Kind
	code string
}

// classes is ordered; the first sentinel an error wraps decides its kind and code.
var classes = []errorClass{
	{ErrEthTransferFailed, KindSettlement, "EthTransferFailed"},
	{ErrCommitFailed, KindSettlement, "CommitFailed"},
	{ErrReentrantCall, KindSettlement, "ReentrantCall"},
	{ErrInsufficientFunds, KindSettlement, "InsufficientFunds"},
	{ErrNoEtherBalance, KindSettlement, "NoEtherBalance"},

	{ErrUnauthorized, KindAuthorization, "Unauthorized"},

	{ErrListingAlreadyExists, KindLifecycle, "ListingAlreadyExists"},
	{ErrListingDoesNotExist, KindLifecycle, "ListingDoesNotExist"},
	{ErrCardNotListed, KindLifecycle, "CardNotListed"},
	{ErrCardSaleHasEnded, KindLifecycle, "CardSaleHasEnded"},
	{ErrUnknownToken, KindLifecycle, "UnknownToken"},
	{ErrTokenAlreadyIssued, KindLifecycle, "TokenAlreadyIssued"},

	{ErrInvalidDeck, KindValidation, "InvalidDeck"},
	{ErrInvalidGeneration, KindValidation, "InvalidGeneration"},
	{ErrInvalidCard, KindValidation, "InvalidCard"},
	{ErrInvalidStartTime, KindValidation, "InvalidStartTime"},
	{ErrRarityNotSet, KindValidation, "RarityNotSet"},
	{ErrInvalidRarity, KindValidation, "InvalidRarity"},
	{ErrInvalidDuration, KindValidation, "InvalidDuration"},
	{ErrInvalidWindow, KindValidation, "InvalidWindow"},
	{ErrInvalidDiscount, KindValidation, "InvalidDiscount"},
	{ErrInvalidPricing, KindValidation, "InvalidPricing"},
	{ErrInvalidAccount, KindValidation, "InvalidAccount"},
	{ErrInvalidAmount, KindValidation, "InvalidAmount"},
	{ErrInvalidToken, KindValidation, "InvalidToken"},
}

// KindOf classifies err by the market sentinel it wraps.
func KindOf(err error) Kind {
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.kind
		}
	}
	return KindUnknown
}

// Code returns a stable, transport friendly name for err, or "Internal".
func Code(err error) string {
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

// SlotError carries the slot an operation failed on.
type SlotError struct {
	Op         string
	Deck       int
	Generation int
	Err        error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("%s deck %d generation %d: %v", e.Op, e.Deck, e.Generation, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

func slotError(op string, deck, generation int, err error) error {
	return &SlotError{Op: op, Deck: deck, Generation: generation, Err: err}
}

// TokenError carries the token id an operation failed on.
type TokenError struct {
	Op      string
	TokenID uint64
	Err     error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s token %d: %v", e.Op, e.TokenID, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}
