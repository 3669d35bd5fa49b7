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

// PostgresCategoryRepository implements auction.CategoryRepository using pgx
type PostgresCategoryRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCategoryRepository(pool *pgxpool.Pool) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{pool: pool}
}

func (r *PostgresCategoryRepository) GetCategoryByID(ctx context.Context, categoryID uuid.UUID) (*auction.Category, error) {
	return r.getCategory(ctx, `SELECT id, name FROM categories WHERE id = $1`, categoryID)
}

func (r *PostgresCategoryRepository) GetCategoryByName(ctx context.Context, name string) (*auction.Category, error) {
	return r.getCategory(ctx, `SELECT id, name FROM categories WHERE name = $1`, name)
}

func (r *PostgresCategoryRepository) getCategory(ctx context.Context, query string, arg any) (*auction.Category, error) {
	var c auction.Category
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (r *PostgresCategoryRepository) ListCategories(ctx context.Context) ([]*auction.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	result := []*auction.Category{}
	for rows.Next() {
		var c auction.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// ListCategorySummaries counts active auctions per category; empty categories report zero
func (r *PostgresCategoryRepository) ListCategorySummaries(ctx context.Context) ([]*auction.CategorySummary, error) {
	query := `
		SELECT c.id, c.name, COUNT(a.id) FILTER (WHERE a.is_active) AS active_auctions
		FROM categories c
		LEFT JOIN auctions a ON a.category_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query category counts: %w", err)
	}
	defer rows.Close()

	result := []*auction.CategorySummary{}
	for rows.Next() {
		var s auction.CategorySummary
		if err := rows.Scan(&s.ID, &s.Name, &s.ActiveAuctions); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		result = append(result, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return result, nil
}
