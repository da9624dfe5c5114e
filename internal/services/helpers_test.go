package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
)

const testWebhookSecret = "whsec_test_secret"

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 24},
		Payment: config.PaymentConfig{
			StripeSecretKey:          "sk_test_123",
			StripeWebhookSecret:      testWebhookSecret,
			Currency:                 "gbp",
			Timeout:                  5 * time.Second,
			IgnoreAPIVersionMismatch: true,
		},
		Pagination: config.PaginationConfig{ResPerPage: 10},
	}
}

func seedUser(t *testing.T, store repository.Store, email string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Username:  email,
		Role:      role,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func seedProduct(t *testing.T, store repository.Store, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Price:       decimal.RequireFromString(price),
		Description: name + " description",
		Brand:       "Acme",
		Category:    models.CategoryElectronics,
		Stock:       stock,
	}
	require.NoError(t, store.Products().Create(context.Background(), product))
	return product
}

func shipping() ShippingInfo {
	return ShippingInfo{
		Street:  "1 High Street",
		City:    "London",
		State:   "Greater London",
		ZipCode: "N1 9GU",
		PhoneNo: "02079460000",
		Country: "United Kingdom",
	}
}

// fakeGateway records checkout requests and serves canned line items.
type fakeGateway struct {
	mu         sync.Mutex
	params     []*stripe.CheckoutSessionParams
	lineItems  map[string][]*stripe.LineItem
	createErr  error
	listErr    error
	listCalls  int
	nextSessID string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{lineItems: map[string][]*stripe.LineItem{}, nextSessID: "cs_test_1"}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.params = append(g.params, params)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &stripe.CheckoutSession{
		ID:  g.nextSessID,
		URL: "https://checkout.stripe.test/pay/" + g.nextSessID,
	}, nil
}

func (g *fakeGateway) ListLineItems(_ context.Context, sessionID string) ([]*stripe.LineItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.lineItems[sessionID], nil
}

func lineItem(productID string, quantity, unitAmount int64, image string) *stripe.LineItem {
	product := &stripe.Product{Metadata: map[string]string{MetaProductID: productID}}
	if image != "" {
		product.Images = []string{image}
	}
	return &stripe.LineItem{
		Quantity: quantity,
		Price: &stripe.Price{
			UnitAmount: unitAmount,
			Product:    product,
		},
	}
}

// signedEvent builds a provider event body and a valid signature header for it.
func signedEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","type":%q,"api_version":%q,"data":{"object":%s}}`,
		eventID, eventType, stripe.APIVersion, mustJSON(t, object),
	))
	return payload, sign(payload, testWebhookSecret, time.Now())
}

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func sessionObject(sessionID string, amountTotal int64, userID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"id":           sessionID,
		"object":       "checkout.session",
		"amount_total": amountTotal,
		"metadata": map[string]string{
			MetaStreet:  "1 High Street",
			MetaCity:    "London",
			MetaState:   "Greater London",
			MetaZipCode: "N1 9GU",
			MetaPhoneNo: "02079460000",
			MetaCountry: "United Kingdom",
			MetaUser:    userID.String(),
		},
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
