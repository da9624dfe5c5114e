// internal/services/checkout_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
)

// Session metadata keys. They are the only link from a provider session back
// to the shipping address and the buyer.
const (
	MetaStreet    = "street"
	MetaState     = "state"
	MetaCity      = "city"
	MetaZipCode   = "zip_code"
	MetaCountry   = "country"
	MetaPhoneNo   = "phone_no"
	MetaUser      = "user"
	MetaProductID = "product_id"
)

type CheckoutService struct {
	store   repository.Store
	gateway PaymentGateway
	config  *config.Config
}

type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

func NewCheckoutService(store repository.Store, gateway PaymentGateway, config *config.Config) *CheckoutService {
	return &CheckoutService{
		store:   store,
		gateway: gateway,
		config:  config,
	}
}

// CreateSession asks the provider for a hosted checkout page. Nothing is
// written locally; the order is materialized by the webhook, so every line
// must name a product the webhook will be able to resolve.
func (s *CheckoutService) CreateSession(ctx context.Context, user *models.User, req *OrderRequest, host string) (*CheckoutSessionResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	for i, item := range req.OrderItems {
		product, err := s.store.Products().Get(ctx, item.Product)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s", ErrNotFound, item.Product)
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
		if item.Name == "" {
			req.OrderItems[i].Name = product.Name
		}
	}

	params := s.buildSessionParams(user, req, host)

	session, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"session_id": session.ID,
		"items":      len(req.OrderItems),
	}).Info("Checkout session created")

	return &CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func (s *CheckoutService) buildSessionParams(user *models.User, req *OrderRequest, host string) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(item.Name),
			Metadata: map[string]string{MetaProductID: item.Product.String()},
		}
		if item.Image != "" {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.config.Payment.Currency),
				UnitAmount:  stripe.Int64(ToMinorUnits(item.Price)),
				ProductData: productData,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:      stripe.String(user.Email),
		SuccessURL:         stripe.String(host),
		CancelURL:          stripe.String(host),
		LineItems:          lineItems,
	}

	params.Metadata = map[string]string{
		MetaStreet:  req.Street,
		MetaState:   req.State,
		MetaCity:    req.City,
		MetaZipCode: req.ZipCode,
		MetaCountry: req.Country,
		MetaPhoneNo: req.PhoneNo,
		MetaUser:    user.ID.String(),
	}

	return params
}

// ToMinorUnits converts a price to the provider's integer minor units. Cart
// prices are validated to whole cents, so rounding never changes a charge.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to a price.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
