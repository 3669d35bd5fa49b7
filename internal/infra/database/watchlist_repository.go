package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresWatchlistRepository implements auction.WatchlistRepository using pgx
type PostgresWatchlistRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresWatchlistRepository(pool *pgxpool.Pool) *PostgresWatchlistRepository {
	return &PostgresWatchlistRepository{pool: pool}
}

func (r *PostgresWatchlistRepository) IsWatching(ctx context.Context, userID, auctionID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM watchlist WHERE user_id = $1 AND auction_id = $2)`

	var watching bool
	if err := r.pool.QueryRow(ctx, query, userID, auctionID).Scan(&watching); err != nil {
		return false, fmt.Errorf("failed to check watchlist: %w", err)
	}
	return watching, nil
}

// AddToWatchlist ignores an existing entry so concurrent toggles cannot fail on the primary key
func (r *PostgresWatchlistRepository) AddToWatchlist(ctx context.Context, tx pgx.Tx, userID, auctionID uuid.UUID) error {
	query := `
		INSERT INTO watchlist (user_id, auction_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, auction_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, query, userID, auctionID); err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}
	return nil
}

func (r *PostgresWatchlistRepository) RemoveFromWatchlist(ctx context.Context, tx pgx.Tx, userID, auctionID uuid.UUID) (bool, error) {
	query := `DELETE FROM watchlist WHERE user_id = $1 AND auction_id = $2`

	result, err := tx.Exec(ctx, query, userID, auctionID)
	if err != nil {
		return false, fmt.Errorf("failed to remove from watchlist: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
