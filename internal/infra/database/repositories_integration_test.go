//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/commerce/internal/auction"
	"github.com/floroz/commerce/internal/infra/database"
	"github.com/floroz/commerce/internal/users"
	"github.com/floroz/commerce/pkg/events"
	"github.com/floroz/commerce/pkg/testhelpers"
)

type repos struct {
	pool       *pgxpool.Pool
	tx         *database.PostgresTransactionManager
	users      *database.PostgresUserRepository
	auctions   *database.PostgresAuctionRepository
	bids       *database.PostgresBidRepository
	comments   *database.PostgresCommentRepository
	watchlist  *database.PostgresWatchlistRepository
	categories *database.PostgresCategoryRepository
	outbox     *database.PostgresOutboxRepository
}

func setupRepos(t *testing.T) *repos {
	t.Helper()
	testDB := testhelpers.NewTestDatabase(t)
	t.Cleanup(testDB.Close)

	pool := testDB.Pool
	return &repos{
		pool:       pool,
		tx:         database.NewPostgresTransactionManager(pool, time.Second),
		users:      database.NewPostgresUserRepository(pool),
		auctions:   database.NewPostgresAuctionRepository(pool),
		bids:       database.NewPostgresBidRepository(pool),
		comments:   database.NewPostgresCommentRepository(pool),
		watchlist:  database.NewPostgresWatchlistRepository(pool),
		categories: database.NewPostgresCategoryRepository(pool),
		outbox:     database.NewPostgresOutboxRepository(pool),
	}
}

func (r *repos) createUser(t *testing.T, username string) *users.User {
	t.Helper()
	u := &users.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	ctx := context.Background()
	tx, err := r.tx.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, r.users.CreateUser(ctx, tx, u))
	require.NoError(t, tx.Commit(ctx))
	return u
}

func (r *repos) createAuction(t *testing.T, creator uuid.UUID, name string, category *uuid.UUID) *auction.Auction {
	t.Helper()
	a := &auction.Auction{
		ID:          uuid.New(),
		Name:        name,
		Description: "description",
		CreatorID:   creator,
		MinPrice:    500,
		IsActive:    true,
		CategoryID:  category,
		CreatedAt:   time.Now().UTC(),
	}
	ctx := context.Background()
	tx, err := r.tx.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, r.auctions.CreateAuction(ctx, tx, a))
	require.NoError(t, tx.Commit(ctx))
	return a
}

func (r *repos) saveBid(t *testing.T, auctionID, bidder uuid.UUID, price int64, at time.Time) *auction.Bid {
	t.Helper()
	b := &auction.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: bidder, Price: price, CreatedAt: at}
	ctx := context.Background()
	tx, err := r.tx.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, r.bids.SaveBid(ctx, tx, b))
	require.NoError(t, tx.Commit(ctx))
	return b
}

func TestUserRepository(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")

	t.Run("get by id and username", func(t *testing.T) {
		byID, err := r.users.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "alice", byID.Username)
		assert.Equal(t, "alice@example.com", byID.Email)

		byName, err := r.users.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, alice.ID, byName.ID)
	})

	t.Run("unknown user is nil without error", func(t *testing.T) {
		u, err := r.users.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("duplicate username", func(t *testing.T) {
		tx, err := r.tx.BeginTx(ctx)
		require.NoError(t, err)
		defer func() {
			_ = tx.Rollback(ctx)
		}()

		err = r.users.CreateUser(ctx, tx, &users.User{
			ID:           uuid.New(),
			Username:     "alice",
			PasswordHash: "hash",
			CreatedAt:    time.Now().UTC(),
		})
		assert.ErrorIs(t, err, users.ErrUsernameTaken)
	})
}

func TestAuctionRepository(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	seller := r.createUser(t, "seller")
	bidder := r.createUser(t, "bidder")
	books, err := r.categories.GetCategoryByName(ctx, "books")
	require.NoError(t, err)

	withCategory := r.createAuction(t, seller.ID, "Atlas", &books.ID)
	plain := r.createAuction(t, seller.ID, "Globe", nil)

	t.Run("get joins creator and category", func(t *testing.T) {
		got, err := r.auctions.GetAuctionByID(ctx, withCategory.ID)
		require.NoError(t, err)
		assert.Equal(t, "seller", got.CreatorName)
		assert.Equal(t, "books", got.CategoryName)
		require.NotNil(t, got.CategoryID)
		assert.Equal(t, books.ID, *got.CategoryID)
		assert.Empty(t, got.ImageURL)

		got, err = r.auctions.GetAuctionByID(ctx, plain.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CategoryID)
		assert.Empty(t, got.CategoryName)
	})

	t.Run("unknown auction", func(t *testing.T) {
		_, err := r.auctions.GetAuctionByID(ctx, uuid.New())
		assert.ErrorIs(t, err, auction.ErrAuctionNotFound)
	})

	t.Run("summaries carry the highest bid", func(t *testing.T) {
		now := time.Now().UTC()
		r.saveBid(t, plain.ID, bidder.ID, 700, now)
		r.saveBid(t, plain.ID, bidder.ID, 900, now.Add(time.Second))

		list, err := r.auctions.ListActiveAuctions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)

		prices := map[uuid.UUID]*int64{}
		for _, s := range list {
			prices[s.ID] = s.CurrentPrice
		}
		require.NotNil(t, prices[plain.ID])
		assert.Equal(t, int64(900), *prices[plain.ID])
		assert.Nil(t, prices[withCategory.ID])
	})

	t.Run("close only by creator and only once", func(t *testing.T) {
		tx, err := r.tx.BeginTx(ctx)
		require.NoError(t, err)
		closed, err := r.auctions.CloseAuction(ctx, tx, withCategory.ID, bidder.ID)
		require.NoError(t, err)
		assert.False(t, closed)

		closed, err = r.auctions.CloseAuction(ctx, tx, withCategory.ID, seller.ID)
		require.NoError(t, err)
		assert.True(t, closed)

		closed, err = r.auctions.CloseAuction(ctx, tx, withCategory.ID, seller.ID)
		require.NoError(t, err)
		assert.False(t, closed)
		require.NoError(t, tx.Commit(ctx))

		active, err := r.auctions.ListActiveAuctions(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, plain.ID, active[0].ID)

		inCategory, err := r.auctions.ListAuctionsByCategory(ctx, books.ID)
		require.NoError(t, err)
		require.Len(t, inCategory, 1)
		assert.False(t, inCategory[0].IsActive)
	})
}

func TestBidRepository_HighestBidTieBreak(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	seller := r.createUser(t, "seller")
	first := r.createUser(t, "first")
	second := r.createUser(t, "second")
	a := r.createAuction(t, seller.ID, "Vase", nil)

	now := time.Now().UTC()
	r.saveBid(t, a.ID, first.ID, 1000, now)
	r.saveBid(t, a.ID, second.ID, 1000, now.Add(time.Second))

	tx, err := r.tx.BeginTx(ctx)
	require.NoError(t, err)
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	highest, err := r.bids.GetHighestBid(ctx, tx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, first.ID, highest.BidderID, "earliest of equal bids holds the price")

	none, err := r.bids.GetHighestBid(ctx, tx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := r.bids.GetBidsByAuctionID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].BidderName, "newest first")
}

func TestWatchlistAndComments(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	seller := r.createUser(t, "seller")
	viewer := r.createUser(t, "viewer")
	a := r.createAuction(t, seller.ID, "Lamp", nil)

	t.Run("watchlist add is idempotent", func(t *testing.T) {
		tx, err := r.tx.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, r.watchlist.AddToWatchlist(ctx, tx, viewer.ID, a.ID))
		require.NoError(t, r.watchlist.AddToWatchlist(ctx, tx, viewer.ID, a.ID))
		require.NoError(t, tx.Commit(ctx))

		watching, err := r.watchlist.IsWatching(ctx, viewer.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, watching)

		list, err := r.auctions.ListWatchedAuctions(ctx, viewer.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		tx, err = r.tx.BeginTx(ctx)
		require.NoError(t, err)
		removed, err := r.watchlist.RemoveFromWatchlist(ctx, tx, viewer.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = r.watchlist.RemoveFromWatchlist(ctx, tx, viewer.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, removed)
		require.NoError(t, tx.Commit(ctx))
	})

	t.Run("comments oldest first", func(t *testing.T) {
		now := time.Now().UTC()
		for i, body := range []string{"one", "two"} {
			require.NoError(t, r.comments.SaveComment(ctx, &auction.Comment{
				ID:        uuid.New(),
				AuctionID: a.ID,
				AuthorID:  viewer.ID,
				Body:      body,
				CreatedAt: now.Add(time.Duration(i) * time.Second),
			}))
		}

		got, err := r.comments.GetCommentsByAuctionID(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "one", got[0].Body)
		assert.Equal(t, "viewer", got[0].AuthorName)
	})
}

func TestCategoryRepository(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	all, err := r.categories.ListCategories(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"art", "books", "electronics", "fashion", "home", "toys"}, names)

	_, err = r.categories.GetCategoryByName(ctx, "garden")
	assert.ErrorIs(t, err, auction.ErrCategoryNotFound)

	seller := r.createUser(t, "seller")
	toys, err := r.categories.GetCategoryByID(ctx, all[5].ID)
	require.NoError(t, err)
	r.createAuction(t, seller.ID, "Kite", &toys.ID)

	summaries, err := r.categories.ListCategorySummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 6)
	for _, s := range summaries {
		want := int64(0)
		if s.Name == "toys" {
			want = 1
		}
		assert.Equal(t, want, s.ActiveAuctions, s.Name)
	}
}

func TestOutboxRepository(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		e, err := events.NewOutboxEvent(events.EventTypeBidPlaced, map[string]any{"n": int64(i)}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		tx, err := r.tx.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, r.outbox.SaveEvent(ctx, tx, e))
		require.NoError(t, tx.Commit(ctx))
	}

	tx, err := r.tx.BeginTx(ctx)
	require.NoError(t, err)
	pending, err := r.outbox.GetPendingEvents(ctx, tx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	fields, err := events.DecodePayload(pending[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, float64(0), fields["n"], "oldest first")

	require.NoError(t, r.outbox.UpdateEventStatus(ctx, tx, pending[0].ID, events.OutboxStatusPublished))
	require.NoError(t, tx.Commit(ctx))

	published, err := r.outbox.CountByStatus(ctx, events.OutboxStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, int64(1), published)

	stillPending, err := r.outbox.CountByStatus(ctx, events.OutboxStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stillPending)
}
