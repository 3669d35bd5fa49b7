package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/commerce/internal/auction"
)

// PostgresCommentRepository implements auction.CommentRepository using pgx
type PostgresCommentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCommentRepository(pool *pgxpool.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

func (r *PostgresCommentRepository) SaveComment(ctx context.Context, c *auction.Comment) error {
	query := `
		INSERT INTO comments (id, auction_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, c.ID, c.AuctionID, c.AuthorID, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// GetCommentsByAuctionID retrieves comments oldest first
func (r *PostgresCommentRepository) GetCommentsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*auction.Comment, error) {
	query := `
		SELECT cm.id, cm.auction_id, cm.author_id, u.username, cm.body, cm.created_at
		FROM comments cm
		JOIN users u ON u.id = cm.author_id
		WHERE cm.auction_id = $1
		ORDER BY cm.created_at ASC, cm.id ASC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	result := []*auction.Comment{}
	for rows.Next() {
		var c auction.Comment
		if err := rows.Scan(&c.ID, &c.AuctionID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		result = append(result, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return result, nil
}
