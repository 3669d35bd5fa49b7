package auction

import (
	"time"

	"github.com/google/uuid"
)

// Field limits shared by validation and the schema
const (
	MaxNameLength        = 64
	MaxDescriptionLength = 500
	MaxImageURLLength    = 200
)

// Auction represents a listing that accepts bids until its creator closes it
type Auction struct {
	ID           uuid.UUID  `db:"id"`
	Name         string     `db:"name"`
	Description  string     `db:"description"`
	CreatorID    uuid.UUID  `db:"creator_id"`
	CreatorName  string     `db:"creator_name"`
	ImageURL     string     `db:"image_url"`
	MinPrice     int64      `db:"min_price"` // in cents
	IsActive     bool       `db:"is_active"`
	CategoryID   *uuid.UUID `db:"category_id"`
	CategoryName string     `db:"category_name"`
	CreatedAt    time.Time  `db:"created_at"`
}

// IsOwnedBy reports whether userID created the auction
func (a *Auction) IsOwnedBy(userID uuid.UUID) bool {
	return a.CreatorID == userID
}

// Bid represents a user's offer on an auction
type Bid struct {
	ID         uuid.UUID `db:"id"`
	AuctionID  uuid.UUID `db:"auction_id"`
	BidderID   uuid.UUID `db:"bidder_id"`
	BidderName string    `db:"bidder_name"`
	Price      int64     `db:"price"` // in cents
	CreatedAt  time.Time `db:"created_at"`
}

// Comment is free text left by a user on an auction
type Comment struct {
	ID         uuid.UUID `db:"id"`
	AuctionID  uuid.UUID `db:"auction_id"`
	AuthorID   uuid.UUID `db:"author_id"`
	AuthorName string    `db:"author_name"`
	Body       string    `db:"body"`
	CreatedAt  time.Time `db:"created_at"`
}

// Category groups auctions under a label
type Category struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

// CategorySummary is a category with the number of its active auctions
type CategorySummary struct {
	Category
	ActiveAuctions int64 `db:"active_auctions"`
}

// AuctionSummary is an auction as shown in list pages.
// CurrentPrice is nil while the auction has no bids.
type AuctionSummary struct {
	Auction
	CurrentPrice *int64 `db:"current_price"`
}

// Listing is everything shown on a single auction page
type Listing struct {
	Auction      *Auction
	Bids         []*Bid     // newest first
	Comments     []*Comment // oldest first
	CurrentPrice int64
	HasBids      bool
	Winner       *Bid // set once the auction is closed and had bids
	IsWatching   bool
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Price     int64
}

// CreateAuctionCommand represents the command to list a new auction
type CreateAuctionCommand struct {
	Name        string
	Description string
	ImageURL    string
	MinPrice    int64
	CategoryID  *uuid.UUID
	CreatorID   uuid.UUID
}

// CloseAuctionCommand represents the command to close an auction
type CloseAuctionCommand struct {
	AuctionID   uuid.UUID
	RequesterID uuid.UUID
}

// WatchlistCommand toggles an auction on a user's watchlist
type WatchlistCommand struct {
	UserID    uuid.UUID
	AuctionID uuid.UUID
}

// AddCommentCommand represents the command to comment on an auction
type AddCommentCommand struct {
	AuctionID uuid.UUID
	AuthorID  uuid.UUID
	Body      string
}
