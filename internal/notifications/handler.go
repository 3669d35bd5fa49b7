package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/floroz/commerce/internal/auction"
	infraevents "github.com/floroz/commerce/internal/infra/events"
	"github.com/floroz/commerce/internal/users"
	"github.com/floroz/commerce/pkg/events"
)

// QueueName is the durable queue the worker consumes from
const QueueName = "notifications"

// RoutingKeys are the events the notifier is bound to
var RoutingKeys = []string{events.EventTypeAuctionClosed, events.EventTypeBidPlaced}

// UserLookup resolves the people named in events
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Notifier reports auction outcomes. Delivery is a log line for now.
type Notifier struct {
	users  UserLookup
	logger logrus.FieldLogger
}

func NewNotifier(users UserLookup, logger logrus.FieldLogger) *Notifier {
	return &Notifier{users: users, logger: logger}
}

// Handle dispatches on the routing key. It matches infraevents.Handler.
func (n *Notifier) Handle(ctx context.Context, routingKey string, fields map[string]any) error {
	switch routingKey {
	case events.EventTypeAuctionClosed:
		return n.auctionClosed(ctx, fields)
	case events.EventTypeBidPlaced:
		return n.bidPlaced(fields)
	default:
		n.logger.WithField("routing_key", routingKey).Debug("ignoring event")
		return nil
	}
}

func (n *Notifier) auctionClosed(ctx context.Context, fields map[string]any) error {
	auctionID, err := uuidField(fields, "auction_id")
	if err != nil {
		return err
	}
	log := n.logger.WithField("auction_id", auctionID)

	if _, ok := fields["winner_id"]; !ok {
		log.Info("auction closed without bids")
		return nil
	}

	winnerID, err := uuidField(fields, "winner_id")
	if err != nil {
		return err
	}
	price, err := priceField(fields)
	if err != nil {
		return err
	}

	winner, err := n.users.GetUser(ctx, winnerID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			// account deleted after winning; nothing left to notify
			log.WithField("winner_id", winnerID).Warn("winner no longer exists")
			return nil
		}
		return fmt.Errorf("failed to get winner: %w", err)
	}

	log.WithFields(logrus.Fields{
		"winner":    winner.Username,
		"winner_id": winner.ID,
		"price":     auction.FormatAmount(price),
	}).Info("auction won")
	return nil
}

func (n *Notifier) bidPlaced(fields map[string]any) error {
	auctionID, err := uuidField(fields, "auction_id")
	if err != nil {
		return err
	}
	price, err := priceField(fields)
	if err != nil {
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"auction_id": auctionID,
		"bidder_id":  fields["bidder_id"],
		"price":      auction.FormatAmount(price),
	}).Debug("bid placed")
	return nil
}

func uuidField(fields map[string]any, key string) (uuid.UUID, error) {
	raw, ok := fields[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing %s", infraevents.ErrPermanent, key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s %q", infraevents.ErrPermanent, key, raw)
	}
	return id, nil
}

// Struct payloads carry numbers as float64
func priceField(fields map[string]any) (int64, error) {
	v, ok := fields["price"].(float64)
	if !ok || v < 0 {
		return 0, fmt.Errorf("%w: missing or invalid price", infraevents.ErrPermanent)
	}
	return int64(v), nil
}
