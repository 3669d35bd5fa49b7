package rpc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/commerce/internal/auction"
	"github.com/floroz/commerce/pkg/auth"
)

type MockAuctionService struct {
	mock.Mock
}

func (m *MockAuctionService) GetListing(ctx context.Context, auctionID uuid.UUID, viewerID *uuid.UUID) (*auction.Listing, error) {
	args := m.Called(ctx, auctionID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Listing), args.Error(1)
}

func (m *MockAuctionService) GetWinner(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, bool, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*auction.Bid), args.Bool(1), args.Error(2)
}

func (m *MockAuctionService) ListCategories(ctx context.Context) ([]*auction.CategorySummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auction.CategorySummary), args.Error(1)
}

func (m *MockAuctionService) PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Bid, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

type fakeSessions map[string]uuid.UUID

func (f fakeSessions) Get(_ context.Context, sessionID string) (uuid.UUID, error) {
	id, ok := f[sessionID]
	if !ok {
		return uuid.Nil, errors.New("session not found")
	}
	return id, nil
}

type testEnv struct {
	server  *httptest.Server
	service *MockAuctionService
	token   string
	userID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	privPEM, pubPEM, err := auth.GenerateKeyPEM(2048)
	require.NoError(t, err)
	signer, err := auth.NewSigner(privPEM, pubPEM, "commerce", time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	token, _, err := signer.IssueToken(userID, "alice", "sess-1")
	require.NoError(t, err)
	authn := auth.NewAuthenticator(signer, fakeSessions{"sess-1": userID})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	service := &MockAuctionService{}
	handler := NewAuctionServiceHandler(service, logger)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	Mount(r, handler.Routes(authn), []string{"http://localhost:3000"})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{server: server, service: service, token: token, userID: userID}
}

func (e *testEnv) client(procedure string) *connect.Client[structpb.Struct, structpb.Struct] {
	return connect.NewClient[structpb.Struct, structpb.Struct](e.server.Client(), e.server.URL+PathPrefix+procedure)
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestGetAuction(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the listing", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New()
		bid := &auction.Bid{ID: uuid.New(), AuctionID: id, BidderID: uuid.New(), BidderName: "bob", Price: 1500}
		env.service.On("GetListing", mock.Anything, id, (*uuid.UUID)(nil)).Return(&auction.Listing{
			Auction:      &auction.Auction{ID: id, Name: "Lamp", MinPrice: 1000, IsActive: true},
			Bids:         []*auction.Bid{bid},
			CurrentPrice: 1500,
			HasBids:      true,
		}, nil)

		res, err := env.client(GetAuctionProcedure).CallUnary(ctx, connect.NewRequest(mustStruct(t, map[string]any{"id": id.String()})))

		require.NoError(t, err)
		fields := res.Msg.AsMap()
		assert.Equal(t, "Lamp", fields["name"])
		assert.Equal(t, float64(1500), fields["current_price"])
		assert.Len(t, fields["bids"], 1)
	})

	t.Run("unknown auction", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New()
		env.service.On("GetListing", mock.Anything, id, (*uuid.UUID)(nil)).Return(nil, auction.ErrAuctionNotFound)

		_, err := env.client(GetAuctionProcedure).CallUnary(ctx, connect.NewRequest(mustStruct(t, map[string]any{"id": id.String()})))

		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})

	t.Run("invalid id", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.client(GetAuctionProcedure).CallUnary(ctx, connect.NewRequest(mustStruct(t, map[string]any{"id": "nope"})))

		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestGetWinner(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("closed auction with bids", func(t *testing.T) {
		env := newTestEnv(t)
		bidderID := uuid.New()
		env.service.On("GetWinner", mock.Anything, id).Return(&auction.Bid{
			ID: uuid.New(), AuctionID: id, BidderID: bidderID, BidderName: "bob", Price: 2500,
		}, true, nil)

		res, err := env.client(GetWinnerProcedure).CallUnary(ctx, connect.NewRequest(mustStruct(t, map[string]any{"id": id.String()})))

		require.NoError(t, err)
		fields := res.Msg.AsMap()
		assert.Equal(t, true, fields["has_winner"])
		winner := fields["winner"].(map[string]any)
		assert.Equal(t, bidderID.String(), winner["bidder_id"])
		assert.Equal(t, float64(2500), winner["price"])
	})

	t.Run("no winner yet", func(t *testing.T) {
		env := newTestEnv(t)
		env.service.On("GetWinner", mock.Anything, id).Return(nil, false, nil)

		res, err := env.client(GetWinnerProcedure).CallUnary(ctx, connect.NewRequest(mustStruct(t, map[string]any{"id": id.String()})))

		require.NoError(t, err)
		fields := res.Msg.AsMap()
		assert.Equal(t, false, fields["has_winner"])
		assert.NotContains(t, fields, "winner")
	})

	t.Run("unknown auction", func(t *testing.T) {
		env := newTestEnv(t)
		env.service.On("GetWinner", mock.Anything, id).Return(nil, false, auction.ErrAuctionNotFound)

		_, err := env.client(GetWinnerProcedure).CallUnary(ctx, connect.NewRequest(mustStruct(t, map[string]any{"id": id.String()})))

		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}

func TestListCategories(t *testing.T) {
	env := newTestEnv(t)
	env.service.On("ListCategories", mock.Anything).Return([]*auction.CategorySummary{
		{Category: auction.Category{ID: uuid.New(), Name: "Art"}, ActiveAuctions: 2},
	}, nil)

	res, err := env.client(ListCategoriesProcedure).CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{}))

	require.NoError(t, err)
	categories := res.Msg.AsMap()["categories"].([]any)
	require.Len(t, categories, 1)
	first := categories[0].(map[string]any)
	assert.Equal(t, "Art", first["name"])
	assert.Equal(t, float64(2), first["active_auctions"])
}

func TestPlaceBid(t *testing.T) {
	ctx := context.Background()
	auctionID := uuid.New()

	t.Run("requires a bearer token", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.client(PlaceBidProcedure).CallUnary(ctx, connect.NewRequest(mustStruct(t, map[string]any{
			"auction_id": auctionID.String(), "price_cents": 1500,
		})))

		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		env.service.AssertNotCalled(t, "PlaceBid", mock.Anything, mock.Anything)
	})

	t.Run("places the bid as the token's user", func(t *testing.T) {
		env := newTestEnv(t)
		env.service.On("PlaceBid", mock.Anything, auction.PlaceBidCommand{AuctionID: auctionID, BidderID: env.userID, Price: 1500}).
			Return(&auction.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: env.userID, Price: 1500}, nil)

		req := connect.NewRequest(mustStruct(t, map[string]any{"auction_id": auctionID.String(), "price_cents": 1500}))
		req.Header().Set("Authorization", "Bearer "+env.token)
		res, err := env.client(PlaceBidProcedure).CallUnary(ctx, req)

		require.NoError(t, err)
		bid := res.Msg.AsMap()["bid"].(map[string]any)
		assert.Equal(t, float64(1500), bid["price"])
		env.service.AssertExpectations(t)
	})

	t.Run("rejected bid carries the reason", func(t *testing.T) {
		env := newTestEnv(t)
		env.service.On("PlaceBid", mock.Anything, mock.Anything).
			Return(nil, &auction.ValidationError{Reason: auction.ReasonBelowMinimum, Limit: 1000})

		req := connect.NewRequest(mustStruct(t, map[string]any{"auction_id": auctionID.String(), "price_cents": 500}))
		req.Header().Set("Authorization", "Bearer "+env.token)
		_, err := env.client(PlaceBidProcedure).CallUnary(ctx, req)

		var cerr *connect.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, connect.CodeFailedPrecondition, cerr.Code())
		assert.Equal(t, "The minimum allowed bid is $10.00.", cerr.Message())
		assert.Equal(t, string(auction.ReasonBelowMinimum), cerr.Meta().Get("x-bid-rejection-reason"))
	})

	t.Run("fractional cents are invalid", func(t *testing.T) {
		env := newTestEnv(t)

		req := connect.NewRequest(mustStruct(t, map[string]any{"auction_id": auctionID.String(), "price_cents": 10.5}))
		req.Header().Set("Authorization", "Bearer "+env.token)
		_, err := env.client(PlaceBidProcedure).CallUnary(ctx, req)

		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("price above the largest exact amount", func(t *testing.T) {
		env := newTestEnv(t)

		req := connect.NewRequest(mustStruct(t, map[string]any{"auction_id": auctionID.String(), "price_cents": float64(2 * auction.MaxAmount)}))
		req.Header().Set("Authorization", "Bearer "+env.token)
		_, err := env.client(PlaceBidProcedure).CallUnary(ctx, req)

		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		env.service.AssertNotCalled(t, "PlaceBid", mock.Anything, mock.Anything)
	})

	t.Run("negative price", func(t *testing.T) {
		env := newTestEnv(t)
		env.service.On("PlaceBid", mock.Anything, mock.Anything).Return(nil, auction.ErrInvalidAmount)

		req := connect.NewRequest(mustStruct(t, map[string]any{"auction_id": auctionID.String(), "price_cents": -1}))
		req.Header().Set("Authorization", "Bearer "+env.token)
		_, err := env.client(PlaceBidProcedure).CallUnary(ctx, req)

		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("unexpected errors are hidden", func(t *testing.T) {
		env := newTestEnv(t)
		env.service.On("PlaceBid", mock.Anything, mock.Anything).Return(nil, errors.New("pq: connection reset"))

		req := connect.NewRequest(mustStruct(t, map[string]any{"auction_id": auctionID.String(), "price_cents": 1500}))
		req.Header().Set("Authorization", "Bearer "+env.token)
		_, err := env.client(PlaceBidProcedure).CallUnary(ctx, req)

		var cerr *connect.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, connect.CodeInternal, cerr.Code())
		assert.NotContains(t, cerr.Message(), "connection reset")
	})
}

func TestMount_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+PathPrefix+PlaceBidProcedure, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type,authorization")

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
