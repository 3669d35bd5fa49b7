package auction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/commerce/pkg/events"
)

// AuctionRepository defines the interface for auction persistence
type AuctionRepository interface {
	// CreateAuction inserts a new auction within a transaction
	CreateAuction(ctx context.Context, tx pgx.Tx, auction *Auction) error

	// GetAuctionByID returns ErrAuctionNotFound when no auction has the id
	GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error)

	// GetAuctionByIDForUpdate locks the auction row until the transaction ends.
	// Concurrent bids and closes on the same auction are serialized by it.
	GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Auction, error)

	// CloseAuction deactivates the auction only if creatorID owns it and it is
	// still active. It reports whether a row changed.
	CloseAuction(ctx context.Context, tx pgx.Tx, auctionID, creatorID uuid.UUID) (bool, error)

	ListActiveAuctions(ctx context.Context) ([]*AuctionSummary, error)
	ListAuctionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]*AuctionSummary, error)
	ListWatchedAuctions(ctx context.Context, userID uuid.UUID) ([]*AuctionSummary, error)
}

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// SaveBid saves a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetHighestBid returns the winning bid as seen by tx, or nil when there are none
	GetHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Bid, error)

	// GetBidsByAuctionID retrieves all bids for an auction, newest first
	GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
}

// CommentRepository defines the interface for comment persistence
type CommentRepository interface {
	SaveComment(ctx context.Context, comment *Comment) error

	// GetCommentsByAuctionID retrieves comments oldest first
	GetCommentsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Comment, error)
}

// WatchlistRepository defines the interface for watchlist persistence
type WatchlistRepository interface {
	IsWatching(ctx context.Context, userID, auctionID uuid.UUID) (bool, error)

	// AddToWatchlist is idempotent
	AddToWatchlist(ctx context.Context, tx pgx.Tx, userID, auctionID uuid.UUID) error

	// RemoveFromWatchlist reports whether an entry was removed
	RemoveFromWatchlist(ctx context.Context, tx pgx.Tx, userID, auctionID uuid.UUID) (bool, error)
}

// CategoryRepository defines the interface for category lookups
type CategoryRepository interface {
	// GetCategoryByID returns ErrCategoryNotFound when missing
	GetCategoryByID(ctx context.Context, categoryID uuid.UUID) (*Category, error)

	// GetCategoryByName returns ErrCategoryNotFound when missing
	GetCategoryByName(ctx context.Context, name string) (*Category, error)

	ListCategories(ctx context.Context) ([]*Category, error)

	// ListCategorySummaries counts active auctions per category
	ListCategorySummaries(ctx context.Context) ([]*CategorySummary, error)
}

// OutboxRepository stores domain events in the same transaction as the change
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// TransactionManager starts the transactions write operations run in
type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}
