// internal/services/webhook_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/metrics"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

// Webhook outcomes, also used as metric labels.
const (
	OutcomeProcessed        = "processed"
	OutcomeDuplicate        = "duplicate"
	OutcomeIgnored          = "ignored"
	OutcomeRejected         = "rejected"
	OutcomePermanentFailure = "permanent_failure"
	OutcomeError            = "error"
)

type WebhookService struct {
	store   repository.Store
	gateway PaymentGateway
	ledger  EventLedger
	secret  string
	options webhook.ConstructEventOptions
}

type WebhookResult struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	Outcome   string        `json:"outcome"`
	Order     *models.Order `json:"order,omitempty"`
}

func NewWebhookService(store repository.Store, gateway PaymentGateway, ledger EventLedger, cfg config.PaymentConfig) *WebhookService {
	if ledger == nil {
		ledger = NoopEventLedger{}
	}
	return &WebhookService{
		store:   store,
		gateway: gateway,
		ledger:  ledger,
		secret:  cfg.StripeWebhookSecret,
		options: webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: cfg.IgnoreAPIVersionMismatch,
		},
	}
}

// HandleEvent authenticates a raw provider delivery and, for completed
// checkout sessions, materializes the paid order.
//
// Errors wrapping ErrInvalidPayload or ErrInvalidSignature reject the
// delivery. ErrPermanentEvent means the event was signed but can never be
// applied and should be acknowledged. Any other error is transient.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, s.options)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", OutcomeRejected).Inc()
		return nil, classifyConstructError(err)
	}

	result := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}
	log := logrus.WithFields(logrus.Fields{"event_id": event.ID, "event_type": result.EventType})

	if result.EventType != EventCheckoutSessionCompleted {
		result.Outcome = OutcomeIgnored
		metrics.WebhookEvents.WithLabelValues(result.EventType, result.Outcome).Inc()
		log.Debug("Ignoring webhook event")
		return result, nil
	}

	claimed, err := s.ledger.Claim(ctx, event.ID)
	if err != nil {
		// The session id constraint still guards against duplicates.
		log.WithError(err).Warn("Event ledger unavailable")
		claimed = true
	}
	if !claimed {
		result.Outcome = OutcomeDuplicate
		metrics.WebhookEvents.WithLabelValues(result.EventType, result.Outcome).Inc()
		log.Info("Webhook event already handled")
		return result, nil
	}

	order, outcome, err := s.completeCheckout(ctx, event, log)
	result.Order, result.Outcome = order, outcome
	metrics.WebhookEvents.WithLabelValues(result.EventType, outcome).Inc()

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, ErrPermanentEvent):
		log.WithError(err).Error("Dropping webhook event that cannot be materialized")
		return result, err
	default:
		if relErr := s.ledger.Release(ctx, event.ID); relErr != nil {
			log.WithError(relErr).Warn("Failed to release webhook event")
		}
		log.WithError(err).Error("Webhook event failed, provider will retry")
		return result, err
	}
}

func classifyConstructError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
}

func (s *WebhookService) completeCheckout(ctx context.Context, event stripe.Event, log *logrus.Entry) (*models.Order, string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil || session.ID == "" {
		return nil, OutcomePermanentFailure, fmt.Errorf("%w: malformed checkout session", ErrPermanentEvent)
	}
	log = log.WithField("session_id", session.ID)

	existing, err := s.store.Orders().GetByCheckoutSession(ctx, session.ID)
	if err == nil {
		return existing, OutcomeDuplicate, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, OutcomeError, fmt.Errorf("failed to look up order: %w", err)
	}

	shipping, userID, err := parseSessionMetadata(session.Metadata)
	if err != nil {
		return nil, OutcomePermanentFailure, err
	}
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, OutcomePermanentFailure, fmt.Errorf("%w: unknown user %s", ErrPermanentEvent, userID)
		}
		return nil, OutcomeError, fmt.Errorf("failed to look up user: %w", err)
	}

	lineItems, err := s.gateway.ListLineItems(ctx, session.ID)
	if err != nil {
		return nil, OutcomeError, err
	}
	lines, err := parseLineItems(lineItems)
	if err != nil {
		return nil, OutcomePermanentFailure, err
	}

	sessionID := session.ID
	order := &models.Order{
		UserID:            userID,
		Street:            shipping.Street,
		City:              shipping.City,
		State:             shipping.State,
		ZipCode:           shipping.ZipCode,
		PhoneNo:           shipping.PhoneNo,
		Country:           shipping.Country,
		TotalAmount:       FromMinorUnits(session.AmountTotal),
		Status:            models.OrderStatusPending,
		PaymentStatus:     models.PaymentStatusPaid,
		PaymentMode:       models.PaymentModeCard,
		CheckoutSessionID: &sessionID,
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.productID)
		}
		products, err := lockProducts(ctx, tx, ids)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: %v", ErrPermanentEvent, err)
			}
			return err
		}

		order.Items = make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product := products[line.productID]

			// Payment is already captured, so stock may go negative.
			stock, err := tx.Products().AdjustStock(ctx, product.ID, -line.quantity)
			if err != nil {
				return fmt.Errorf("failed to update stock: %w", err)
			}
			if stock < 0 {
				metrics.NegativeStock.Inc()
				log.WithFields(logrus.Fields{"product_id": product.ID, "stock": stock}).Warn("Paid order left product with negative stock")
			}

			image := line.image
			if image == "" {
				image = product.FirstImage()
			}
			productID := product.ID
			order.Items = append(order.Items, models.OrderItem{
				ProductID: &productID,
				Name:      product.Name,
				Quantity:  line.quantity,
				Price:     FromMinorUnits(line.unitAmount),
				Image:     image,
			})
		}

		return tx.Orders().Create(ctx, order)
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicate):
		// A concurrent delivery of the same session won the race.
		return nil, OutcomeDuplicate, nil
	case errors.Is(err, ErrPermanentEvent):
		return nil, OutcomePermanentFailure, err
	default:
		return nil, OutcomeError, fmt.Errorf("failed to materialize order: %w", err)
	}

	metrics.OrdersCreated.WithLabelValues(string(models.PaymentModeCard)).Inc()
	log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount.StringFixed(2),
		"items":    len(order.Items),
	}).Info("Paid order created from checkout session")

	return order, OutcomeProcessed, nil
}

func parseSessionMetadata(meta map[string]string) (ShippingInfo, uuid.UUID, error) {
	userID, err := uuid.Parse(meta[MetaUser])
	if err != nil {
		return ShippingInfo{}, uuid.Nil, fmt.Errorf("%w: invalid user metadata %q", ErrPermanentEvent, meta[MetaUser])
	}
	return ShippingInfo{
		Street:  meta[MetaStreet],
		City:    meta[MetaCity],
		State:   meta[MetaState],
		ZipCode: meta[MetaZipCode],
		PhoneNo: meta[MetaPhoneNo],
		Country: meta[MetaCountry],
	}, userID, nil
}

type paidLine struct {
	productID  uuid.UUID
	quantity   int
	unitAmount int64
	image      string
}

// parseLineItems resolves each provider line back to an internal product
// through the product metadata set at checkout.
func parseLineItems(items []*stripe.LineItem) ([]paidLine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: session has no line items", ErrPermanentEvent)
	}

	lines := make([]paidLine, 0, len(items))
	for _, item := range items {
		if item == nil || item.Price == nil || item.Price.Product == nil {
			return nil, fmt.Errorf("%w: line item without product", ErrPermanentEvent)
		}
		product := item.Price.Product

		productID, err := uuid.Parse(product.Metadata[MetaProductID])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid product metadata %q", ErrPermanentEvent, product.Metadata[MetaProductID])
		}

		line := paidLine{
			productID:  productID,
			quantity:   int(item.Quantity),
			unitAmount: item.Price.UnitAmount,
		}
		if len(product.Images) > 0 {
			line.image = product.Images[0]
		}
		lines = append(lines, line)
	}
	return lines, nil
}
