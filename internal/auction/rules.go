package auction

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Reason identifies why a bid was rejected
type Reason string

const (
	ReasonClosed          Reason = "closed"
	ReasonTooLowVsCurrent Reason = "too_low_vs_current"
	ReasonBelowMinimum    Reason = "below_minimum"
)

// ValidationError is returned when a bid breaks an auction rule.
// Limit carries the price the bid was compared against.
type ValidationError struct {
	Reason Reason
	Limit  int64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonClosed:
		return "auction is closed"
	case ReasonTooLowVsCurrent:
		return fmt.Sprintf("bid must be greater than current price %s", FormatAmount(e.Limit))
	case ReasonBelowMinimum:
		return fmt.Sprintf("bid must be at least the minimum price %s", FormatAmount(e.Limit))
	default:
		return "invalid bid"
	}
}

// Is matches any ValidationError with the same reason, so errors.Is works
// against the sentinels regardless of Limit.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

// Message is the text shown to the bidder.
func (e *ValidationError) Message() string {
	switch e.Reason {
	case ReasonClosed:
		return "The auction is closed."
	case ReasonTooLowVsCurrent:
		return fmt.Sprintf("The bid must be greater than the actual price of $%s.", FormatAmount(e.Limit))
	case ReasonBelowMinimum:
		return fmt.Sprintf("The minimum allowed bid is $%s.", FormatAmount(e.Limit))
	default:
		return "Invalid bid."
	}
}

// Bid validation errors
var (
	ErrAuctionClosed = &ValidationError{Reason: ReasonClosed}
	ErrBidTooLow     = &ValidationError{Reason: ReasonTooLowVsCurrent}
	ErrBelowMinimum  = &ValidationError{Reason: ReasonBelowMinimum}
)

// Auction validation errors
var (
	ErrNameRequired        = fmt.Errorf("name is required")
	ErrNameTooLong         = fmt.Errorf("name must be at most %d characters", MaxNameLength)
	ErrDescriptionRequired = fmt.Errorf("description is required")
	ErrDescriptionTooLong  = fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	ErrInvalidImageURL     = fmt.Errorf("image url must be an absolute http(s) url of at most %d characters", MaxImageURLLength)
	ErrNegativeMinPrice    = fmt.Errorf("minimum price must not be negative")
	ErrMinPriceTooHigh     = fmt.Errorf("minimum price must be at most %s", FormatAmount(MaxAmount))
	ErrCommentRequired     = fmt.Errorf("comment must not be empty")
)

// CurrentPrice returns the highest price among bids. ok is false when there are no bids.
func CurrentPrice(bids []*Bid) (price int64, ok bool) {
	for _, b := range bids {
		if !ok || b.Price > price {
			price = b.Price
			ok = true
		}
	}
	return price, ok
}

// Winner returns the bid holding the current price. When several bids share
// the maximum, the earliest one wins; ids break exact timestamp ties.
func Winner(bids []*Bid) (*Bid, bool) {
	var winner *Bid
	for _, b := range bids {
		if winner == nil || b.Price > winner.Price {
			winner = b
			continue
		}
		if b.Price == winner.Price && outbids(b, winner) {
			winner = b
		}
	}
	return winner, winner != nil
}

func outbids(b, current *Bid) bool {
	if !b.CreatedAt.Equal(current.CreatedAt) {
		return b.CreatedAt.Before(current.CreatedAt)
	}
	return b.ID.String() < current.ID.String()
}

// ValidateBid applies the bidding rules in order: the auction must be open,
// the price must beat the current price, and it must meet the minimum price.
func ValidateBid(a *Auction, current int64, hasCurrent bool, price int64) error {
	if !a.IsActive {
		return &ValidationError{Reason: ReasonClosed}
	}
	if hasCurrent && price <= current {
		return &ValidationError{Reason: ReasonTooLowVsCurrent, Limit: current}
	}
	if price < a.MinPrice {
		return &ValidationError{Reason: ReasonBelowMinimum, Limit: a.MinPrice}
	}
	return nil
}

// validateNewAuction checks the fields of a new listing
func validateNewAuction(cmd CreateAuctionCommand) error {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}

	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		return ErrDescriptionRequired
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}

	if cmd.ImageURL != "" && !validImageURL(cmd.ImageURL) {
		return ErrInvalidImageURL
	}

	if cmd.MinPrice < 0 {
		return ErrNegativeMinPrice
	}
	if cmd.MinPrice > MaxAmount {
		return ErrMinPriceTooHigh
	}
	return nil
}

func validImageURL(raw string) bool {
	if len(raw) > MaxImageURLLength {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
