package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/safar/retail-ledger/internal/authz"
	"github.com/safar/retail-ledger/internal/config"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/sales"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const EventOrderPlaced = "StorefrontOrderPlaced"

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type SaleCreator interface {
	CreateSale(ctx context.Context, actor authz.Actor, req sales.CreateRequest) (models.Sale, error)
}

type UserLookup interface {
	GetUser(actor authz.Actor, id string) (models.User, error)
}

// VerifySeller checks that the user storefront orders are booked against
// exists. Without it every order would be refused.
func VerifySeller(users UserLookup, sellerID string) error {
	if _, err := users.GetUser(authz.Actor{ID: sellerID, Role: models.RoleStaff}, sellerID); err != nil {
		return fmt.Errorf("storefront seller %s: %w", sellerID, err)
	}
	return nil
}

func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

type OrderPlacedEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customer_id"`
	PaymentMethod string             `json:"payment_method"`
	Discount      decimal.Decimal    `json:"discount"`
	TaxRate       decimal.Decimal    `json:"tax_rate"`
	Items         []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Quantity  int     `json:"quantity"`
}

// Listener turns storefront orders into client orders awaiting review.
type Listener struct {
	reader  MessageReader
	sales   SaleCreator
	actor   authz.Actor
	logger  *zap.Logger
	backoff time.Duration
}

func NewListener(reader MessageReader, creator SaleCreator, sellerID string, logger *zap.Logger) *Listener {
	return &Listener{
		reader:  reader,
		sales:   creator,
		actor:   authz.Actor{ID: sellerID, Role: models.RoleStaff},
		logger:  logger,
		backoff: time.Second,
	}
}

func (l *Listener) Start(ctx context.Context) {
	l.logger.Info("Starting storefront order listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping storefront order listener")
			return
		default:
			msg, err := l.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.backoff)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

// ToCreateRequest maps an order onto a storefront sale. The order id becomes
// the sale id and is remembered by the tenant, so a redelivered event cannot
// create a second sale even after the first was deleted.
func (e OrderPlacedEvent) ToCreateRequest(sellerID string) sales.CreateRequest {
	items := make([]sales.LineRequest, 0, len(e.Payload.Items))
	for _, item := range e.Payload.Items {
		line := sales.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity}
		if item.VariantID != nil {
			line.VariantID = *item.VariantID
		}
		items = append(items, line)
	}

	return sales.CreateRequest{
		ID:            e.Payload.ID,
		Items:         items,
		CustomerID:    e.Payload.CustomerID,
		SellerID:      sellerID,
		Discount:      e.Payload.Discount,
		TaxRate:       e.Payload.TaxRate,
		PaymentMethod: e.Payload.PaymentMethod,
		Channel:       models.ChannelStorefront,
	}
}

func (l *Listener) processMessage(ctx context.Context, value []byte) {
	var event OrderPlacedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != EventOrderPlaced {
		return
	}

	l.logger.Info("Processing storefront order", zap.String("order_id", event.Payload.ID))

	sale, err := l.sales.CreateSale(ctx, l.actor, event.ToCreateRequest(l.actor.ID))
	if err != nil {
		level := l.logger.Error
		if errors.Is(err, errs.ErrInvalidInput) || errors.Is(err, errs.ErrNotFound) {
			level = l.logger.Warn
		}
		level("Failed to record storefront order",
			zap.String("order_id", event.Payload.ID),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("Storefront order recorded",
		zap.String("order_id", event.Payload.ID),
		zap.String("sale_id", sale.ID),
		zap.String("status", string(sale.Status)),
	)
}
