package router

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v74"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/i18n"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

const webhookSecret = "whsec_router_test"

type stubGateway struct {
	createErr error
	lineItems []*stripe.LineItem
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &stripe.CheckoutSession{ID: "cs_test_router", URL: "https://checkout.stripe.test/cs_test_router"}, nil
}

func (g *stubGateway) ListLineItems(context.Context, string) ([]*stripe.LineItem, error) {
	return g.lineItems, nil
}

type stubMailer struct {
	urls []string
}

func (m *stubMailer) SendPasswordResetEmail(_ context.Context, _ *models.User, resetURL string) error {
	m.urls = append(m.urls, resetURL)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type RouterTestSuite struct {
	suite.Suite
	store   *repository.MemoryStore
	gateway *stubGateway
	mailer  *stubMailer
	engine  *gin.Engine
	cancel  context.CancelFunc

	user       *models.User
	admin      *models.User
	userToken  string
	adminToken string
}

func (s *RouterTestSuite) SetupSuite() {
	s.Require().NoError(i18n.Initialize())
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{PublicURL: "https://shop.example.com"},
		JWT:         config.JWTConfig{SecretKey: "router-test-secret", AccessTokenTTL: 1},
		Payment: config.PaymentConfig{
			StripeWebhookSecret:      webhookSecret,
			Currency:                 "gbp",
			Timeout:                  time.Second,
			IgnoreAPIVersionMismatch: true,
		},
		Pagination: config.PaginationConfig{ResPerPage: 2},
	}

	s.store = repository.NewMemoryStore()
	s.gateway = &stubGateway{}
	s.mailer = &stubMailer{}

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.engine = Initialize(ctx, Dependencies{
		Store:   s.store,
		Gateway: s.gateway,
		Mailer:  s.mailer,
		Storage: services.NewStorageServiceWithStore(services.NewLocalObjectStore(s.T().TempDir(), "http://localhost/uploads")),
	}, cfg)

	s.user = s.seedUser("user@example.com", models.UserRoleUser)
	s.admin = s.seedUser("admin@example.com", models.UserRoleAdmin)
	s.userToken = s.token(s.user)
	s.adminToken = s.token(s.admin)
}

func (s *RouterTestSuite) TearDownTest() {
	s.cancel()
}

func (s *RouterTestSuite) seedUser(email string, role models.UserRole) *models.User {
	user := &models.User{FirstName: "Test", LastName: "User", Email: email, Username: email, Role: role}
	s.Require().NoError(user.SetPassword("password123"))
	s.Require().NoError(s.store.Users().Create(context.Background(), user))
	return user
}

func (s *RouterTestSuite) token(user *models.User) string {
	token, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), 1)
	s.Require().NoError(err)
	return token
}

func (s *RouterTestSuite) seedProduct(name string, stock int) *models.Product {
	owner := s.admin.ID
	product := &models.Product{
		Name:        name,
		Price:       decimal.RequireFromString("10.00"),
		Description: name,
		Brand:       "Acme",
		Category:    models.CategoryElectronics,
		Stock:       stock,
		UserID:      &owner,
	}
	s.Require().NoError(s.store.Products().Create(context.Background(), product))
	return product
}

func (s *RouterTestSuite) do(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func (s *RouterTestSuite) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func (s *RouterTestSuite) orderBody(productID uuid.UUID, quantity int) gin.H {
	return gin.H{
		"street":   "1 High Street",
		"city":     "London",
		"state":    "Greater London",
		"zip_code": "N1 9GU",
		"phone_no": "02079460000",
		"country":  "United Kingdom",
		"orderItems": []gin.H{{
			"product":  productID,
			"name":     "Phone",
			"price":    "10.00",
			"quantity": quantity,
		}},
	}
}

func (s *RouterTestSuite) TestHealthAndMetrics() {
	rec, _ := s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "healthy")

	rec, _ = s.do(http.MethodGet, "/api/products", nil, "")
	s.Equal(http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "eshop_http_requests_total")
}

func (s *RouterTestSuite) TestRegisterAndLogin() {
	body := gin.H{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com", "password": "password123"}

	rec, env := s.do(http.MethodPost, "/api/register", body, "")
	s.Equal(http.StatusCreated, rec.Code)
	s.True(env.Success)

	rec, env = s.do(http.MethodPost, "/api/register", body, "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("User already exists", env.Error.Message)

	rec, env = s.do(http.MethodPost, "/api/token", gin.H{"email": "ada@example.com", "password": "password123"}, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &login))
	s.NotEmpty(login.Token)

	rec, _ = s.do(http.MethodGet, "/api/current_user", nil, login.Token)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "ada@example.com")
	s.NotContains(rec.Body.String(), "password")

	rec, _ = s.do(http.MethodPost, "/api/token", gin.H{"email": "ada@example.com", "password": "nope-nope"}, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterTestSuite) TestAuthRequired() {
	rec, _ := s.do(http.MethodGet, "/api/current_user", nil, "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/current_user", nil, "not-a-jwt")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/products", gin.H{"name": "x"}, s.userToken)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *RouterTestSuite) TestPasswordReset() {
	rec, _ := s.do(http.MethodPost, "/api/forgot_password", gin.H{"email": "ghost@example.com"}, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Empty(s.mailer.urls)

	rec, _ = s.do(http.MethodPost, "/api/forgot_password", gin.H{"email": s.user.Email}, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().Len(s.mailer.urls, 1)
	resetURL := s.mailer.urls[0]
	s.True(strings.HasPrefix(resetURL, "https://shop.example.com/api/reset_password/"))
	token := resetURL[strings.LastIndex(resetURL, "/")+1:]

	rec, env := s.do(http.MethodPost, "/api/reset_password/"+token, gin.H{"password": "new-password", "confirm_password": "other"}, "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Passwords do not match", env.Error.Message)

	rec, _ = s.do(http.MethodPost, "/api/reset_password/"+token, gin.H{"password": "new-password", "confirm_password": "new-password"}, "")
	s.Equal(http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/reset_password/"+token, gin.H{"password": "new-password", "confirm_password": "new-password"}, "")
	s.Equal(http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/token", gin.H{"email": s.user.Email, "password": "new-password"}, "")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterTestSuite) TestPasswordResetLinkIgnoresRequestHost() {
	req := httptest.NewRequest(http.MethodPost, "/api/forgot_password", strings.NewReader(`{"email":"user@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Host = "attacker.example"

	rec, _ := s.serve(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().Len(s.mailer.urls, 1)
	s.True(strings.HasPrefix(s.mailer.urls[0], "https://shop.example.com/api/reset_password/"), s.mailer.urls[0])
	s.NotContains(s.mailer.urls[0], "attacker.example")
}

func (s *RouterTestSuite) TestProductLifecycle() {
	body := gin.H{
		"name":        "Laptop",
		"price":       "899.99",
		"description": "A laptop",
		"brand":       "Acme",
		"category":    "Laptops",
		"stock":       5,
	}
	rec, env := s.do(http.MethodPost, "/api/products", body, s.adminToken)
	s.Require().Equal(http.StatusCreated, rec.Code)
	var product models.Product
	s.Require().NoError(json.Unmarshal(env.Data, &product))
	s.Equal("899.99", product.Price.StringFixed(2))

	body["category"] = "Toys"
	rec, _ = s.do(http.MethodPost, "/api/products", body, s.adminToken)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/products/"+product.ID.String(), nil, "")
	s.Equal(http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/products/not-a-uuid", nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("Product not found", env.Error.Message)

	otherAdmin := s.seedUser("other-admin@example.com", models.UserRoleAdmin)
	body["category"] = "Laptops"
	rec, _ = s.do(http.MethodPut, "/api/products/"+product.ID.String(), body, s.token(otherAdmin))
	s.Equal(http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodDelete, "/api/products/"+product.ID.String(), nil, s.adminToken)
	s.Equal(http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/products/"+product.ID.String(), nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) TestProductListingPagination() {
	for i := 0; i < 3; i++ {
		s.seedProduct(fmt.Sprintf("Phone %d", i), 1)
	}

	rec, env := s.do(http.MethodGet, "/api/products?page=2", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var page struct {
		Count      int64            `json:"count"`
		ResPerPage int              `json:"resPerPage"`
		Products   []models.Product `json:"products"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &page))
	s.Equal(int64(3), page.Count)
	s.Equal(2, page.ResPerPage)
	s.Len(page.Products, 1)
	s.Equal("3", rec.Header().Get("X-Total-Count"))

	rec, _ = s.do(http.MethodGet, "/api/products?min_price=abc", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestUploadImages() {
	product := s.seedProduct("Phone", 1)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	s.Require().NoError(w.WriteField("product", product.ID.String()))
	part, err := w.CreateFormFile("images", "front.png")
	s.Require().NoError(err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0})
	s.Require().NoError(err)
	s.Require().NoError(w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/products/upload_images", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.adminToken)
	rec, env := s.serve(req)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var uploaded struct {
		Images []models.ProductImage `json:"images"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &uploaded))
	s.Require().Len(uploaded.Images, 1)

	path := fmt.Sprintf("/api/products/%s/images/%s", product.ID, uploaded.Images[0].ID)
	rec, _ = s.do(http.MethodDelete, path, nil, s.adminToken)
	s.Equal(http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodDelete, path, nil, s.adminToken)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) TestReviews() {
	product := s.seedProduct("Phone", 1)
	path := "/api/products/" + product.ID.String() + "/reviews"

	rec, env := s.do(http.MethodPost, path, gin.H{"rating": 6, "comment": "too good"}, s.userToken)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Please select rating between 1 - 5", env.Error.Message)

	rec, _ = s.do(http.MethodPost, path, gin.H{"rating": 5, "comment": "great"}, s.userToken)
	s.Equal(http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodPost, path, gin.H{"rating": 3, "comment": "fine"}, s.adminToken)
	s.Equal(http.StatusOK, rec.Code)

	got, err := s.store.Products().Get(context.Background(), product.ID)
	s.Require().NoError(err)
	s.Equal("4.00", got.Ratings.StringFixed(2))

	rec, _ = s.do(http.MethodDelete, path, nil, s.userToken)
	s.Equal(http.StatusOK, rec.Code)
	got, err = s.store.Products().Get(context.Background(), product.ID)
	s.Require().NoError(err)
	s.Equal("3.00", got.Ratings.StringFixed(2))
}

func (s *RouterTestSuite) TestOrders() {
	product := s.seedProduct("Phone", 3)

	rec, env := s.do(http.MethodPost, "/api/orders/new", s.orderBody(product.ID, 2), s.userToken)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var order models.Order
	s.Require().NoError(json.Unmarshal(env.Data, &order))
	s.Equal("20.00", order.TotalAmount.StringFixed(2))
	s.Equal(models.PaymentStatusUnpaid, order.PaymentStatus)

	rec, env = s.do(http.MethodPost, "/api/orders/new", s.orderBody(product.ID, 2), s.userToken)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Insufficient stock", env.Error.Message)

	empty := s.orderBody(product.ID, 1)
	empty["orderItems"] = []gin.H{}
	rec, env = s.do(http.MethodPost, "/api/orders/new", empty, s.userToken)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("No order received", env.Error.Message)

	orderPath := "/api/orders/" + order.ID.String()
	other := s.seedUser("other@example.com", models.UserRoleUser)
	rec, _ = s.do(http.MethodGet, orderPath, nil, s.token(other))
	s.Equal(http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodGet, orderPath, nil, s.userToken)
	s.Equal(http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPut, orderPath+"/process", gin.H{"status": "Shipped"}, s.userToken)
	s.Equal(http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodPut, orderPath+"/process", gin.H{"status": "Lost"}, s.adminToken)
	s.Equal(http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodPut, orderPath+"/process", gin.H{"status": "Shipped"}, s.adminToken)
	s.Equal(http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/orders?status=Shipped", nil, s.adminToken)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(string(env.Data), `"count":1`)

	rec, _ = s.do(http.MethodDelete, orderPath, nil, s.adminToken)
	s.Equal(http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, orderPath, nil, s.adminToken)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) TestCheckoutSession() {
	product := s.seedProduct("Phone", 3)

	rec, env := s.do(http.MethodPost, "/api/create_checkout_session", s.orderBody(product.ID, 1), s.userToken)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Contains(string(env.Data), "cs_test_router")

	s.gateway.createErr = fmt.Errorf("%w: timeout", services.ErrPaymentProvider)
	rec, _ = s.do(http.MethodPost, "/api/create_checkout_session", s.orderBody(product.ID, 1), s.userToken)
	s.Equal(http.StatusBadGateway, rec.Code)

	s.gateway.createErr = errors.New("unexpected")
	rec, _ = s.do(http.MethodPost, "/api/create_checkout_session", s.orderBody(product.ID, 1), s.userToken)
	s.Equal(http.StatusInternalServerError, rec.Code)

	s.gateway.createErr = nil
	rec, _ = s.do(http.MethodPost, "/api/create_checkout_session", s.orderBody(uuid.New(), 1), s.userToken)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) webhook(payload []byte, signature string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodPost, "/api/order/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	return s.serve(req)
}

func (s *RouterTestSuite) TestWebhook() {
	product := s.seedProduct("Phone", 3)
	s.gateway.lineItems = []*stripe.LineItem{{
		Quantity: 2,
		Price: &stripe.Price{
			UnitAmount: 1000,
			Product:    &stripe.Product{Metadata: map[string]string{services.MetaProductID: product.ID.String()}},
		},
	}}

	payload := eventPayload("evt_router_1", "cs_test_router", s.user.ID)

	rec, env := s.webhook(payload, sign(payload, "whsec_wrong"))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Invalid Signature", env.Error.Message)

	garbage := []byte(`{not json`)
	rec, env = s.webhook(garbage, sign(garbage, webhookSecret))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Invalid Payload", env.Error.Message)

	rec, _ = s.webhook(payload, sign(payload, webhookSecret))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Contains(rec.Body.String(), "Payment successful")

	rec, _ = s.webhook(payload, sign(payload, webhookSecret))
	s.Equal(http.StatusOK, rec.Code)

	_, total, err := s.store.Orders().List(context.Background(), repository.OrderFilter{})
	s.Require().NoError(err)
	s.Equal(int64(1), total)

	got, err := s.store.Products().Get(context.Background(), product.ID)
	s.Require().NoError(err)
	s.Equal(1, got.Stock)

	// Unknown products are acknowledged so the provider stops retrying.
	s.gateway.lineItems[0].Price.Product.Metadata[services.MetaProductID] = uuid.New().String()
	other := eventPayload("evt_router_2", "cs_test_other", s.user.ID)
	rec, _ = s.webhook(other, sign(other, webhookSecret))
	s.Equal(http.StatusOK, rec.Code)
	_, total, err = s.store.Orders().List(context.Background(), repository.OrderFilter{})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

func (s *RouterTestSuite) TestAdminDashboard() {
	s.seedProduct("Phone", 2)

	rec, _ := s.do(http.MethodGet, "/api/admin/dashboard/stats", nil, s.userToken)
	s.Equal(http.StatusForbidden, rec.Code)

	rec, env := s.do(http.MethodGet, "/api/admin/dashboard/stats", nil, s.adminToken)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Stats services.AdminDashboardStats `json:"stats"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &body))
	s.Equal(int64(2), body.Stats.TotalUsers)
	s.Equal(int64(1), body.Stats.Inventory.LowStock)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func eventPayload(eventID, sessionID string, userID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": "checkout.session.completed",
  "api_version": %q,
  "data": {"object": {
    "id": %q,
    "object": "checkout.session",
    "amount_total": 2000,
    "metadata": {
      "street": "1 High Street", "city": "London", "state": "Greater London",
      "zip_code": "N1 9GU", "country": "United Kingdom", "phone_no": "02079460000",
      "user": %q
    }
  }}
}`, eventID, stripe.APIVersion, sessionID, userID.String()))
}

func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
