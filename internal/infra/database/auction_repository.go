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

const auctionColumns = `
	a.id, a.name, a.description, a.creator_id, u.username, COALESCE(a.image_url, ''),
	a.min_price, a.is_active, a.category_id, COALESCE(c.name, ''), a.created_at`

const auctionFrom = `
	FROM auctions a
	JOIN users u ON u.id = a.creator_id
	LEFT JOIN categories c ON c.id = a.category_id`

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresAuctionRepository implements auction.AuctionRepository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// CreateAuction inserts an auction within a transaction
func (r *PostgresAuctionRepository) CreateAuction(ctx context.Context, tx pgx.Tx, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (id, name, description, creator_id, image_url, min_price, is_active, category_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`
	_, err := tx.Exec(ctx, query,
		a.ID,
		a.Name,
		a.Description,
		a.CreatorID,
		a.ImageURL,
		a.MinPrice,
		a.IsActive,
		a.CategoryID,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetAuctionByID retrieves an auction by its ID (non-transactional read)
func (r *PostgresAuctionRepository) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return r.getAuctionByID(ctx, r.pool, auctionID, false)
}

// GetAuctionByIDForUpdate retrieves an auction and locks its row until tx ends
func (r *PostgresAuctionRepository) GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auction.Auction, error) {
	return r.getAuctionByID(ctx, tx, auctionID, true)
}

func (r *PostgresAuctionRepository) getAuctionByID(ctx context.Context, db DBTX, auctionID uuid.UUID, forUpdate bool) (*auction.Auction, error) {
	query := `SELECT` + auctionColumns + auctionFrom + `
		WHERE a.id = $1`
	if forUpdate {
		// Only the auction row; categories sit on the nullable side of the join.
		query += " FOR UPDATE OF a"
	}

	a, err := scanAuction(db.QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// CloseAuction flips is_active only for the creator of a still active auction
func (r *PostgresAuctionRepository) CloseAuction(ctx context.Context, tx pgx.Tx, auctionID, creatorID uuid.UUID) (bool, error) {
	query := `
		UPDATE auctions
		SET is_active = FALSE
		WHERE id = $1 AND creator_id = $2 AND is_active
	`
	result, err := tx.Exec(ctx, query, auctionID, creatorID)
	if err != nil {
		return false, fmt.Errorf("failed to close auction: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListActiveAuctions returns open auctions, newest first
func (r *PostgresAuctionRepository) ListActiveAuctions(ctx context.Context) ([]*auction.AuctionSummary, error) {
	query := summarySelect + `
		WHERE a.is_active
		ORDER BY a.created_at DESC, a.id`
	return r.listSummaries(ctx, query)
}

// ListAuctionsByCategory returns every auction in a category, newest first
func (r *PostgresAuctionRepository) ListAuctionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]*auction.AuctionSummary, error) {
	query := summarySelect + `
		WHERE a.category_id = $1
		ORDER BY a.created_at DESC, a.id`
	return r.listSummaries(ctx, query, categoryID)
}

// ListWatchedAuctions returns the user's watchlist, most recently added first
func (r *PostgresAuctionRepository) ListWatchedAuctions(ctx context.Context, userID uuid.UUID) ([]*auction.AuctionSummary, error) {
	query := summarySelect + `
		JOIN watchlist w ON w.auction_id = a.id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC, a.id`
	return r.listSummaries(ctx, query, userID)
}

const summarySelect = `SELECT` + auctionColumns + `,
	(SELECT MAX(b.price) FROM bids b WHERE b.auction_id = a.id) AS current_price` + auctionFrom

func (r *PostgresAuctionRepository) listSummaries(ctx context.Context, query string, args ...any) ([]*auction.AuctionSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	result := []*auction.AuctionSummary{}
	for rows.Next() {
		var s auction.AuctionSummary
		if err := rows.Scan(append(auctionDest(&s.Auction), &s.CurrentPrice)...); err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		result = append(result, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return result, nil
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	if err := row.Scan(auctionDest(&a)...); err != nil {
		return nil, err
	}
	return &a, nil
}

// auctionDest lists scan targets in auctionColumns order
func auctionDest(a *auction.Auction) []any {
	return []any{
		&a.ID,
		&a.Name,
		&a.Description,
		&a.CreatorID,
		&a.CreatorName,
		&a.ImageURL,
		&a.MinPrice,
		&a.IsActive,
		&a.CategoryID,
		&a.CategoryName,
		&a.CreatedAt,
	}
}
