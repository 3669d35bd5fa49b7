package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/commerce/internal/auction"
)

// PostgresBidRepository implements auction.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *auction.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, price, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		bid.Price,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetHighestBid returns the winning bid: highest price, then earliest, then lowest id
func (r *PostgresBidRepository) GetHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auction.Bid, error) {
	query := `
		SELECT b.id, b.auction_id, b.bidder_id, u.username, b.price, b.created_at
		FROM bids b
		JOIN users u ON u.id = b.bidder_id
		WHERE b.auction_id = $1
		ORDER BY b.price DESC, b.created_at ASC, b.id ASC
		LIMIT 1
	`
	var bid auction.Bid
	err := tx.QueryRow(ctx, query, auctionID).Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.BidderName,
		&bid.Price,
		&bid.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return &bid, nil
}

// GetBidsByAuctionID retrieves all bids for an auction, newest first
func (r *PostgresBidRepository) GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*auction.Bid, error) {
	query := `
		SELECT b.id, b.auction_id, b.bidder_id, u.username, b.price, b.created_at
		FROM bids b
		JOIN users u ON u.id = b.bidder_id
		WHERE b.auction_id = $1
		ORDER BY b.created_at DESC, b.id DESC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	result := []*auction.Bid{}
	for rows.Next() {
		var bid auction.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.BidderID,
			&bid.BidderName,
			&bid.Price,
			&bid.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}
