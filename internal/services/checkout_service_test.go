package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		price string
		want  int64
	}{
		{"10.00", 1000},
		{"2.50", 250},
		{"0.29", 29},
		{"19.99", 1999},
		{"99999.99", 9999999},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.price)))
			assert.Equal(t, tt.price, FromMinorUnits(tt.want).StringFixed(2))
		})
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	store := repository.NewMemoryStore()
	gateway := newFakeGateway()
	svc := NewCheckoutService(store, gateway, testConfig())

	user := seedUser(t, store, "buyer@example.com", models.UserRoleUser)
	phone := seedProduct(t, store, "Phone", "10.00", 5)

	resp, err := svc.CreateSession(context.Background(), user, &OrderRequest{
		ShippingInfo: shipping(),
		OrderItems: []CartItem{{
			Product:  phone.ID,
			Name:     "Phone",
			Price:    decimal.RequireFromString("19.99"),
			Quantity: 2,
			Image:    "https://img.test/phone.png",
		}},
	}, "https://shop.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.Contains(t, resp.URL, "cs_test_1")

	require.Len(t, gateway.params, 1)
	params := gateway.params[0]
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "buyer@example.com", *params.CustomerEmail)
	assert.Equal(t, "https://shop.example.com/", *params.SuccessURL)
	assert.Equal(t, []string{"card"}, []string{*params.PaymentMethodTypes[0]})

	assert.Equal(t, map[string]string{
		MetaStreet:  "1 High Street",
		MetaState:   "Greater London",
		MetaCity:    "London",
		MetaZipCode: "N1 9GU",
		MetaCountry: "United Kingdom",
		MetaPhoneNo: "02079460000",
		MetaUser:    user.ID.String(),
	}, params.Metadata)

	require.Len(t, params.LineItems, 1)
	line := params.LineItems[0]
	assert.Equal(t, int64(2), *line.Quantity)
	assert.Equal(t, "gbp", *line.PriceData.Currency)
	assert.Equal(t, int64(1999), *line.PriceData.UnitAmount)
	assert.Equal(t, "Phone", *line.PriceData.ProductData.Name)
	assert.Equal(t, phone.ID.String(), line.PriceData.ProductData.Metadata[MetaProductID])
	assert.Equal(t, "https://img.test/phone.png", *line.PriceData.ProductData.Images[0])

	// Nothing is written locally until the webhook arrives.
	_, total, err := store.Orders().List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateCheckoutSessionProviderFailure(t *testing.T) {
	gateway := newFakeGateway()
	gateway.createErr = fmt.Errorf("%w: timeout", ErrPaymentProvider)
	store := repository.NewMemoryStore()
	svc := NewCheckoutService(store, gateway, testConfig())
	user := seedUser(t, store, "buyer@example.com", models.UserRoleUser)
	phone := seedProduct(t, store, "Phone", "10.00", 5)

	_, err := svc.CreateSession(context.Background(), user, &OrderRequest{
		ShippingInfo: shipping(),
		OrderItems:   []CartItem{{Product: phone.ID, Name: "Phone", Price: decimal.NewFromInt(10), Quantity: 1}},
	}, "https://shop.example.com/")
	assert.ErrorIs(t, err, ErrPaymentProvider)
}

func TestCreateCheckoutSessionEmptyCart(t *testing.T) {
	gateway := newFakeGateway()
	svc := NewCheckoutService(repository.NewMemoryStore(), gateway, testConfig())

	_, err := svc.CreateSession(context.Background(), &models.User{Email: "a@b.c"}, &OrderRequest{ShippingInfo: shipping()}, "http://localhost/")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, gateway.params)
}

func TestCreateCheckoutSessionRejectsBadCart(t *testing.T) {
	store := repository.NewMemoryStore()
	gateway := newFakeGateway()
	svc := NewCheckoutService(store, gateway, testConfig())
	user := seedUser(t, store, "buyer@example.com", models.UserRoleUser)
	phone := seedProduct(t, store, "Phone", "10.00", 5)

	tests := []struct {
		name string
		item CartItem
		want error
	}{
		{"unknown product", CartItem{Product: uuid.New(), Name: "Ghost", Price: decimal.NewFromInt(10), Quantity: 1}, ErrNotFound},
		{"negative price", CartItem{Product: phone.ID, Name: "Phone", Price: decimal.NewFromInt(-1), Quantity: 1}, ErrValidation},
		{"sub-cent price", CartItem{Product: phone.ID, Name: "Phone", Price: decimal.RequireFromString("9.999"), Quantity: 1}, ErrValidation},
		{"zero quantity", CartItem{Product: phone.ID, Name: "Phone", Price: decimal.NewFromInt(10)}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(context.Background(), user, &OrderRequest{
				ShippingInfo: shipping(),
				OrderItems:   []CartItem{tt.item},
			}, "https://shop.example.com/")
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, gateway.params)
}

func TestCreateCheckoutSessionFillsMissingName(t *testing.T) {
	store := repository.NewMemoryStore()
	gateway := newFakeGateway()
	svc := NewCheckoutService(store, gateway, testConfig())
	user := seedUser(t, store, "buyer@example.com", models.UserRoleUser)
	phone := seedProduct(t, store, "Phone", "10.00", 5)

	_, err := svc.CreateSession(context.Background(), user, &OrderRequest{
		ShippingInfo: shipping(),
		OrderItems:   []CartItem{{Product: phone.ID, Price: decimal.RequireFromString("10.00"), Quantity: 1}},
	}, "https://shop.example.com/")
	require.NoError(t, err)
	require.Len(t, gateway.params, 1)
	assert.Equal(t, "Phone", *gateway.params[0].LineItems[0].PriceData.ProductData.Name)
}
