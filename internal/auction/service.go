package auction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/commerce/pkg/events"
)

// Lookup errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// AuctionService implements the marketplace business logic
type AuctionService struct {
	txManager     TransactionManager
	auctionRepo   AuctionRepository
	bidRepo       BidRepository
	commentRepo   CommentRepository
	watchlistRepo WatchlistRepository
	categoryRepo  CategoryRepository
	outboxRepo    OutboxRepository
}

// NewAuctionService creates a new auction service
func NewAuctionService(
	txManager TransactionManager,
	auctionRepo AuctionRepository,
	bidRepo BidRepository,
	commentRepo CommentRepository,
	watchlistRepo WatchlistRepository,
	categoryRepo CategoryRepository,
	outboxRepo OutboxRepository,
) *AuctionService {
	return &AuctionService{
		txManager:     txManager,
		auctionRepo:   auctionRepo,
		bidRepo:       bidRepo,
		commentRepo:   commentRepo,
		watchlistRepo: watchlistRepo,
		categoryRepo:  categoryRepo,
		outboxRepo:    outboxRepo,
	}
}

// CreateAuction lists a new active auction and records an auction.created event
func (s *AuctionService) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if err := validateNewAuction(cmd); err != nil {
		return nil, err
	}

	var categoryName string
	if cmd.CategoryID != nil {
		category, err := s.categoryRepo.GetCategoryByID(ctx, *cmd.CategoryID)
		if err != nil {
			return nil, err
		}
		categoryName = category.Name
	}

	a := &Auction{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(cmd.Name),
		Description:  strings.TrimSpace(cmd.Description),
		CreatorID:    cmd.CreatorID,
		ImageURL:     cmd.ImageURL,
		MinPrice:     cmd.MinPrice,
		IsActive:     true,
		CategoryID:   cmd.CategoryID,
		CategoryName: categoryName,
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.auctionRepo.CreateAuction(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to save auction: %w", err)
	}

	fields := map[string]any{
		"auction_id": a.ID.String(),
		"creator_id": a.CreatorID.String(),
		"name":       a.Name,
		"min_price":  a.MinPrice,
		"created_at": a.CreatedAt.Format(time.RFC3339Nano),
	}
	if a.CategoryID != nil {
		fields["category_id"] = a.CategoryID.String()
	}
	event, err := events.NewOutboxEvent(events.EventTypeAuctionCreated, fields, a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return a, nil
}

// PlaceBid validates and records a bid.
// The auction row is locked for the whole transaction, so the highest bid read
// here cannot change before the new bid is inserted.
func (s *AuctionService) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.Price < 0 || cmd.Price > MaxAmount {
		return nil, ErrInvalidAmount
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.auctionRepo.GetAuctionByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	highest, err := s.bidRepo.GetHighestBid(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	var current int64
	if highest != nil {
		current = highest.Price
	}
	if err := ValidateBid(a, current, highest != nil, cmd.Price); err != nil {
		return nil, err
	}

	bid := &Bid{
		ID:        uuid.New(),
		AuctionID: cmd.AuctionID,
		BidderID:  cmd.BidderID,
		Price:     cmd.Price,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.bidRepo.SaveBid(ctx, tx, bid); err != nil {
		return nil, fmt.Errorf("failed to save bid: %w", err)
	}

	event, err := events.NewOutboxEvent(events.EventTypeBidPlaced, map[string]any{
		"bid_id":     bid.ID.String(),
		"auction_id": bid.AuctionID.String(),
		"bidder_id":  bid.BidderID.String(),
		"price":      bid.Price,
		"created_at": bid.CreatedAt.Format(time.RFC3339Nano),
	}, bid.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return bid, nil
}

// CloseAuction deactivates an auction on behalf of its creator.
// Requests from anyone else, or for an already closed auction, change nothing
// and report closed=false without an error.
func (s *AuctionService) CloseAuction(ctx context.Context, cmd CloseAuctionCommand) (bool, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.auctionRepo.GetAuctionByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return false, err
	}
	if !a.IsActive || !a.IsOwnedBy(cmd.RequesterID) {
		return false, nil
	}

	closed, err := s.auctionRepo.CloseAuction(ctx, tx, cmd.AuctionID, cmd.RequesterID)
	if err != nil {
		return false, fmt.Errorf("failed to close auction: %w", err)
	}
	if !closed {
		return false, nil
	}

	winner, err := s.bidRepo.GetHighestBid(ctx, tx, cmd.AuctionID)
	if err != nil {
		return false, fmt.Errorf("failed to get highest bid: %w", err)
	}

	now := time.Now().UTC()
	fields := map[string]any{
		"auction_id": cmd.AuctionID.String(),
		"closed_at":  now.Format(time.RFC3339Nano),
	}
	if winner != nil {
		fields["winner_id"] = winner.BidderID.String()
		fields["winning_bid_id"] = winner.ID.String()
		fields["price"] = winner.Price
	}
	event, err := events.NewOutboxEvent(events.EventTypeAuctionClosed, fields, now)
	if err != nil {
		return false, err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return false, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// ToggleWatchlist adds the auction to the user's watchlist, or removes it if
// already present. It returns whether the user is watching afterwards.
func (s *AuctionService) ToggleWatchlist(ctx context.Context, cmd WatchlistCommand) (bool, error) {
	if _, err := s.auctionRepo.GetAuctionByID(ctx, cmd.AuctionID); err != nil {
		return false, err
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	removed, err := s.watchlistRepo.RemoveFromWatchlist(ctx, tx, cmd.UserID, cmd.AuctionID)
	if err != nil {
		return false, fmt.Errorf("failed to update watchlist: %w", err)
	}

	watching := false
	if !removed {
		if err := s.watchlistRepo.AddToWatchlist(ctx, tx, cmd.UserID, cmd.AuctionID); err != nil {
			return false, fmt.Errorf("failed to update watchlist: %w", err)
		}
		watching = true
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return watching, nil
}

// IsWatching reports whether the auction is on the user's watchlist
func (s *AuctionService) IsWatching(ctx context.Context, userID, auctionID uuid.UUID) (bool, error) {
	return s.watchlistRepo.IsWatching(ctx, userID, auctionID)
}

// ListWatchlist returns the auctions a user watches, open or closed
func (s *AuctionService) ListWatchlist(ctx context.Context, userID uuid.UUID) ([]*AuctionSummary, error) {
	return s.auctionRepo.ListWatchedAuctions(ctx, userID)
}

// AddComment stores a comment. Bodies that are empty after trimming are rejected
// with ErrCommentRequired.
func (s *AuctionService) AddComment(ctx context.Context, cmd AddCommentCommand) (*Comment, error) {
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		return nil, ErrCommentRequired
	}

	if _, err := s.auctionRepo.GetAuctionByID(ctx, cmd.AuctionID); err != nil {
		return nil, err
	}

	c := &Comment{
		ID:        uuid.New(),
		AuctionID: cmd.AuctionID,
		AuthorID:  cmd.AuthorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.commentRepo.SaveComment(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save comment: %w", err)
	}
	return c, nil
}

// ListCategories returns every category with its count of active auctions
func (s *AuctionService) ListCategories(ctx context.Context) ([]*CategorySummary, error) {
	return s.categoryRepo.ListCategorySummaries(ctx)
}

// Categories returns the plain category list used by the create form
func (s *AuctionService) Categories(ctx context.Context) ([]*Category, error) {
	return s.categoryRepo.ListCategories(ctx)
}

// ListActiveAuctions returns the auctions that still accept bids
func (s *AuctionService) ListActiveAuctions(ctx context.Context) ([]*AuctionSummary, error) {
	return s.auctionRepo.ListActiveAuctions(ctx)
}

// ListCategoryAuctions returns all auctions in the named category, open or closed
func (s *AuctionService) ListCategoryAuctions(ctx context.Context, name string) (*Category, []*AuctionSummary, error) {
	category, err := s.categoryRepo.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	auctions, err := s.auctionRepo.ListAuctionsByCategory(ctx, category.ID)
	if err != nil {
		return nil, nil, err
	}
	return category, auctions, nil
}

// GetListing assembles the auction page. viewerID is nil for anonymous visitors.
func (s *AuctionService) GetListing(ctx context.Context, auctionID uuid.UUID, viewerID *uuid.UUID) (*Listing, error) {
	a, err := s.auctionRepo.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	bids, err := s.bidRepo.GetBidsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}

	comments, err := s.commentRepo.GetCommentsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}

	listing := &Listing{
		Auction:  a,
		Bids:     bids,
		Comments: comments,
	}
	listing.CurrentPrice, listing.HasBids = CurrentPrice(bids)

	if !a.IsActive {
		if w, ok := Winner(bids); ok {
			listing.Winner = w
		}
	}

	if viewerID != nil {
		listing.IsWatching, err = s.watchlistRepo.IsWatching(ctx, *viewerID, auctionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get watchlist state: %w", err)
		}
	}

	return listing, nil
}

// GetWinner returns the winning bid of a closed auction.
// ok is false while the auction is open or when it closed without bids.
func (s *AuctionService) GetWinner(ctx context.Context, auctionID uuid.UUID) (*Bid, bool, error) {
	a, err := s.auctionRepo.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, false, err
	}
	if a.IsActive {
		return nil, false, nil
	}

	bids, err := s.bidRepo.GetBidsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get bids: %w", err)
	}

	w, ok := Winner(bids)
	return w, ok, nil
}
