package rpc

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/commerce/internal/auction"
	"github.com/floroz/commerce/pkg/auth"
)

const ServiceName = "commerce.auction.v1.AuctionService"

// Procedure paths
const (
	GetAuctionProcedure     = "/" + ServiceName + "/GetAuction"
	GetWinnerProcedure      = "/" + ServiceName + "/GetWinner"
	ListCategoriesProcedure = "/" + ServiceName + "/ListCategories"
	PlaceBidProcedure       = "/" + ServiceName + "/PlaceBid"
)

// AuctionService is the part of auction.AuctionService exposed over RPC
type AuctionService interface {
	GetListing(ctx context.Context, auctionID uuid.UUID, viewerID *uuid.UUID) (*auction.Listing, error)
	GetWinner(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, bool, error)
	ListCategories(ctx context.Context) ([]*auction.CategorySummary, error)
	PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Bid, error)
}

// AuctionServiceHandler serves the auction procedures with
// google.protobuf.Struct requests and responses.
type AuctionServiceHandler struct {
	auctionService AuctionService
	logger         logrus.FieldLogger
}

func NewAuctionServiceHandler(auctionService AuctionService, logger logrus.FieldLogger) *AuctionServiceHandler {
	return &AuctionServiceHandler{auctionService: auctionService, logger: logger}
}

// Routes returns a mux serving every procedure. PlaceBid requires a bearer token.
func (h *AuctionServiceHandler) Routes(authn *auth.Authenticator) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(GetAuctionProcedure, connect.NewUnaryHandler(GetAuctionProcedure, h.GetAuction))
	mux.Handle(GetWinnerProcedure, connect.NewUnaryHandler(GetWinnerProcedure, h.GetWinner))
	mux.Handle(ListCategoriesProcedure, connect.NewUnaryHandler(ListCategoriesProcedure, h.ListCategories))
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid,
		connect.WithInterceptors(auth.NewAuthInterceptor(authn)),
	))
	return mux
}

// GetAuction returns an auction with its bids and current price
func (h *AuctionServiceHandler) GetAuction(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := uuidArg(req.Msg, "id")
	if err != nil {
		return nil, err
	}

	listing, err := h.auctionService.GetListing(ctx, id, nil)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	res, err := structpb.NewStruct(listingToMap(listing))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// GetWinner returns the winning bid of a closed auction.
// has_winner is false while the auction is open or when it closed without bids.
func (h *AuctionServiceHandler) GetWinner(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := uuidArg(req.Msg, "id")
	if err != nil {
		return nil, err
	}

	winner, ok, err := h.auctionService.GetWinner(ctx, id)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	out := map[string]any{"has_winner": ok}
	if ok {
		out["winner"] = bidToMap(winner)
	}
	res, err := structpb.NewStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// ListCategories returns every category with its active auction count
func (h *AuctionServiceHandler) ListCategories(
	ctx context.Context,
	_ *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	summaries, err := h.auctionService.ListCategories(ctx)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	categories := make([]any, len(summaries))
	for i, s := range summaries {
		categories[i] = map[string]any{
			"id":              s.ID.String(),
			"name":            s.Name,
			"active_auctions": s.ActiveAuctions,
		}
	}

	res, err := structpb.NewStruct(map[string]any{"categories": categories})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// PlaceBid bids on behalf of the authenticated user
func (h *AuctionServiceHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	// guaranteed by the auth interceptor
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing user"))
	}

	auctionID, err := uuidArg(req.Msg, "auction_id")
	if err != nil {
		return nil, err
	}
	price, err := centsArg(req.Msg, "price_cents")
	if err != nil {
		return nil, err
	}

	bid, err := h.auctionService.PlaceBid(ctx, auction.PlaceBidCommand{
		AuctionID: auctionID,
		BidderID:  userID,
		Price:     price,
	})
	if err != nil {
		return nil, h.toConnectError(err)
	}

	res, err := structpb.NewStruct(map[string]any{"bid": bidToMap(bid)})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

func (h *AuctionServiceHandler) toConnectError(err error) error {
	var verr *auction.ValidationError
	switch {
	case errors.As(err, &verr):
		cerr := connect.NewError(connect.CodeFailedPrecondition, errors.New(verr.Message()))
		cerr.Meta().Set("x-bid-rejection-reason", string(verr.Reason))
		return cerr
	case errors.Is(err, auction.ErrInvalidAmount):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auction.ErrAuctionNotFound), errors.Is(err, auction.ErrCategoryNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		h.logger.WithError(err).Error("rpc request failed")
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

func uuidArg(msg *structpb.Struct, key string) (uuid.UUID, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, errors.New("missing "+key))
	}
	id, err := uuid.Parse(v.GetStringValue())
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid "+key))
	}
	return id, nil
}

// centsArg reads a whole number of cents. JSON numbers arrive as doubles.
func centsArg(msg *structpb.Struct, key string) (int64, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return 0, connect.NewError(connect.CodeInvalidArgument, errors.New("missing "+key))
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > float64(auction.MaxAmount) {
		return 0, connect.NewError(connect.CodeInvalidArgument, errors.New(key+" must be a whole number"))
	}
	return int64(n.NumberValue), nil
}

func listingToMap(l *auction.Listing) map[string]any {
	a := l.Auction
	out := map[string]any{
		"id":          a.ID.String(),
		"name":        a.Name,
		"description": a.Description,
		"creator_id":  a.CreatorID.String(),
		"creator":     a.CreatorName,
		"image_url":   a.ImageURL,
		"min_price":   a.MinPrice,
		"is_active":   a.IsActive,
		"category":    a.CategoryName,
		"created_at":  a.CreatedAt.Format(time.RFC3339),
		"has_bids":    l.HasBids,
	}
	if l.HasBids {
		out["current_price"] = l.CurrentPrice
	}
	if l.Winner != nil {
		out["winner"] = bidToMap(l.Winner)
	}

	bids := make([]any, len(l.Bids))
	for i, b := range l.Bids {
		bids[i] = bidToMap(b)
	}
	out["bids"] = bids
	return out
}

func bidToMap(b *auction.Bid) map[string]any {
	return map[string]any{
		"id":         b.ID.String(),
		"auction_id": b.AuctionID.String(),
		"bidder_id":  b.BidderID.String(),
		"bidder":     b.BidderName,
		"price":      b.Price,
		"created_at": b.CreatedAt.Format(time.RFC3339),
	}
}
