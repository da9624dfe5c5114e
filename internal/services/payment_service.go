// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/metrics"
)

// PaymentGateway is the subset of the payment provider used by checkout and
// webhook reconciliation.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	// ListLineItems returns every line item of a session with the price's
	// product expanded.
	ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a client with its own backends so the timeout and
// retry policy do not depend on package globals.
func NewStripeGateway(cfg config.PaymentConfig) *StripeGateway {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	backendConfig := func() *stripe.BackendConfig {
		return &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     logrus.StandardLogger(),
		}
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	}

	return &StripeGateway{api: client.New(cfg.StripeSecretKey, backends)}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	session, err := g.api.CheckoutSessions.New(params)
	metrics.PaymentProviderCalls.WithLabelValues("create_checkout_session", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, providerError("create checkout session", err)
	}
	return session, nil
}

func (g *StripeGateway) ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand("data.price.product")

	var items []*stripe.LineItem
	iter := g.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		items = append(items, iter.LineItem())
	}
	err := iter.Err()
	metrics.PaymentProviderCalls.WithLabelValues("list_line_items", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, providerError("list line items", err)
	}
	return items, nil
}

func providerError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		logrus.WithFields(logrus.Fields{
			"operation":  op,
			"type":       stripeErr.Type,
			"code":       stripeErr.Code,
			"request_id": stripeErr.RequestID,
		}).Error("Payment provider request failed")
	} else {
		logrus.WithError(err).WithField("operation", op).Error("Payment provider unreachable")
	}
	return fmt.Errorf("%w: %s: %v", ErrPaymentProvider, op, err)
}
