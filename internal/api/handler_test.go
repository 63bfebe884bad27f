package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockDB = errors.New("pq: connection refused")

// mockAuth resolves tokens from a fixed table; other calls go through the func fields
type mockAuth struct {
	Authenticator
	sessions  map[string]*models.User
	loginFunc func(ctx context.Context, email, password string) (*service.Session, error)
	regFunc   func(ctx context.Context, req service.RegisterRequest) (string, error)
}

func (m *mockAuth) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if u, found := m.sessions[token]; found {
		return u, nil
	}
	return nil, apperr.Auth("Please login to access this resource")
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*service.Session, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuth) Register(ctx context.Context, req service.RegisterRequest) (string, error) {
	return m.regFunc(ctx, req)
}

type mockCatalog struct {
	Catalog
	createFunc func(ctx context.Context, admin *models.User, form service.ProductForm, files []io.Reader) (*models.Product, error)
	listFunc   func(ctx context.Context, q service.ListProductsQuery) (*service.ProductPage, error)
}

func (m *mockCatalog) CreateProduct(ctx context.Context, admin *models.User, form service.ProductForm, files []io.Reader) (*models.Product, error) {
	return m.createFunc(ctx, admin, form, files)
}

func (m *mockCatalog) ListProducts(ctx context.Context, q service.ListProductsQuery) (*service.ProductPage, error) {
	return m.listFunc(ctx, q)
}

type mockOrders struct {
	Orders
	placeFunc func(ctx context.Context, buyer *models.User, req service.PlaceOrderRequest) (*service.PlaceOrderResponse, error)
	allFunc   func(ctx context.Context) ([]models.OrderDetails, error)
}

func (m *mockOrders) PlaceOrder(ctx context.Context, buyer *models.User, req service.PlaceOrderRequest) (*service.PlaceOrderResponse, error) {
	return m.placeFunc(ctx, buyer, req)
}

func (m *mockOrders) ListAllOrders(ctx context.Context) ([]models.OrderDetails, error) {
	return m.allFunc(ctx)
}

type mockPayments struct {
	payload   []byte
	signature string
	err       error
}

func (m *mockPayments) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	m.payload = payload
	m.signature = signature
	return m.err
}

type mockLimiter struct {
	count int64
	err   error
	keys  []string
}

func (m *mockLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.keys = append(m.keys, key)
	return m.count, 42 * time.Second, m.err
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router   *gin.Engine
	auth     *mockAuth
	catalog  *mockCatalog
	orders   *mockOrders
	payments *mockPayments
	limiter  *mockLimiter
	buyer    *models.User
	admin    *models.User
}

func newTestServer(t *testing.T, deps map[string]Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		buyer:    &models.User{ID: uuid.New(), Name: "Buyer", Email: "buyer@example.com", Role: models.RoleUser},
		admin:    &models.User{ID: uuid.New(), Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin},
		catalog:  &mockCatalog{},
		orders:   &mockOrders{},
		payments: &mockPayments{},
		limiter:  &mockLimiter{count: 1},
	}
	s.auth = &mockAuth{sessions: map[string]*models.User{"buyer-token": s.buyer, "admin-token": s.admin}}

	h := NewHandler(Services{
		Auth:     s.auth,
		Catalog:  s.catalog,
		Orders:   s.orders,
		Payments: s.payments,
	}, Options{
		AllowedOrigins:     []string{"http://localhost:5173"},
		CookieTTL:          7 * 24 * time.Hour,
		RateLimitPerMinute: 5,
		Limiter:            s.limiter,
		Dependencies:       deps,
	})
	s.router = gin.New()
	h.SetupRoutes(s.router)
	return s
}

func (s *testServer) do(method, path string, body io.Reader, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, map[string]Pinger{
		"postgres": pingFunc(func(ctx context.Context) error { return nil }),
	})
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", nil).Code)

	s = newTestServer(t, map[string]Pinger{
		"redis": pingFunc(func(ctx context.Context) error { return errMockDB }),
	})
	w := s.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "redis", decode(t, w)["dependency"])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestRegisterReturnsServiceMessage(t *testing.T) {
	s := newTestServer(t, nil)
	s.auth.regFunc = func(ctx context.Context, req service.RegisterRequest) (string, error) {
		assert.Equal(t, "Jane", req.Name)
		return service.MsgOTPSent, nil
	}

	w := s.do(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"name":"Jane","email":"j@example.com","password":"secret1"}`))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, service.MsgOTPSent, body["message"])

	w = s.do(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"name":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t, nil)
	s.auth.loginFunc = func(ctx context.Context, email, password string) (*service.Session, error) {
		return &service.Session{User: s.buyer, Token: "jwt-value"}, nil
	}

	w := s.do(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"buyer@example.com","password":"secret1"}`))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "token", c.Name)
	assert.Equal(t, "jwt-value", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.Equal(t, 7*24*3600, c.MaxAge)

	body := decode(t, w)
	assert.Equal(t, "Login successful", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, s.buyer.ID.String(), user["id"])
	assert.Equal(t, models.RoleUser, user["role"])
	assert.NotContains(t, user, "password")
}

func TestLoginErrorUsesKindStatus(t *testing.T) {
	s := newTestServer(t, nil)
	s.auth.loginFunc = func(ctx context.Context, email, password string) (*service.Session, error) {
		return nil, apperr.Forbidden("Account is blocked")
	}

	w := s.do(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"x","password":"y"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Account is blocked", decode(t, w)["message"])
}

func TestAuthenticateAcceptsBearerAndCookie(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/auth/me", nil, bearer("bogus"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/auth/me", nil, bearer("buyer-token"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, s.buyer.Email, decode(t, w)["user"].(map[string]interface{})["email"])

	w = s.do(http.MethodGet, "/api/v1/auth/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "token", Value: "admin-token"})
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, s.admin.Email, decode(t, w)["user"].(map[string]interface{})["email"])
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/auth/logout", nil, bearer("buyer-token"))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestRoleGuard(t *testing.T) {
	s := newTestServer(t, nil)
	s.orders.allFunc = func(ctx context.Context) ([]models.OrderDetails, error) { return nil, nil }

	w := s.do(http.MethodGet, "/api/v1/order/admin/get-all", nil, bearer("buyer-token"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Role: User is not allowed to access this resource", decode(t, w)["message"])

	w = s.do(http.MethodGet, "/api/v1/order/admin/get-all", nil, bearer("admin-token"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["orders"])
}

func TestInternalErrorsAreHidden(t *testing.T) {
	s := newTestServer(t, nil)
	s.orders.allFunc = func(ctx context.Context) ([]models.OrderDetails, error) {
		return nil, errMockDB
	}

	w := s.do(http.MethodGet, "/api/v1/order/admin/get-all", nil, bearer("admin-token"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, internalMessage, decode(t, w)["message"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRateLimitOnAuthRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	s.auth.regFunc = func(ctx context.Context, req service.RegisterRequest) (string, error) {
		return service.MsgOTPSent, nil
	}

	s.limiter.count = 6
	w := s.do(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	require.Len(t, s.limiter.keys, 1)
	assert.True(t, strings.HasPrefix(s.limiter.keys[0], "auth:"))

	s.limiter.count = 5
	w = s.do(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	s.limiter.err = errMockDB
	w = s.do(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)

	// session routes are not throttled
	s.limiter.keys = nil
	s.do(http.MethodGet, "/api/v1/auth/me", nil, bearer("buyer-token"))
	assert.Empty(t, s.limiter.keys)
}

func TestPaymentWebhookPassesRawBody(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"id":"evt_1",  "type":"payment_intent.succeeded"}`

	w := s.do(http.MethodPost, "/api/v1/payment/webhook", strings.NewReader(payload), func(r *http.Request) {
		r.Header.Set("Stripe-Signature", "t=1,v1=abc")
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["received"])
	assert.Equal(t, payload, string(s.payments.payload))
	assert.Equal(t, "t=1,v1=abc", s.payments.signature)

	s.payments.err = apperr.Validation("Webhook Error: %s", "bad signature")
	w = s.do(http.MethodPost, "/api/v1/payment/webhook", strings.NewReader(payload))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Webhook Error: bad signature", decode(t, w)["message"])

	s.payments.err = apperr.Conflict("Event %s is already being processed", "evt_1")
	w = s.do(http.MethodPost, "/api/v1/payment/webhook", strings.NewReader(payload))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestPlaceOrderResponse(t *testing.T) {
	s := newTestServer(t, nil)
	s.orders.placeFunc = func(ctx context.Context, buyer *models.User, req service.PlaceOrderRequest) (*service.PlaceOrderResponse, error) {
		assert.Equal(t, s.buyer.ID, buyer.ID)
		assert.Equal(t, "Jane Doe", req.FullName)
		return &service.PlaceOrderResponse{
			OrderID:      uuid.New(),
			ClientSecret: "pi_1_secret",
			Total:        service.Totals{Total: decimal.RequireFromString("128")},
		}, nil
	}

	w := s.do(http.MethodPost, "/api/v1/order/new",
		strings.NewReader(`{"full_name":"Jane Doe","orderedItems":[]}`), bearer("buyer-token"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Order placed successfully", body["message"])
	assert.Equal(t, "pi_1_secret", body["paymentIntent"])
	assert.Equal(t, 128.0, body["total_price"])
}

func TestInvalidOrderID(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(http.MethodGet, "/api/v1/order/not-a-uuid", nil, bearer("buyer-token"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid order id", decode(t, w)["message"])
}

func TestListProductsQuery(t *testing.T) {
	s := newTestServer(t, nil)
	var got service.ListProductsQuery
	s.catalog.listFunc = func(ctx context.Context, q service.ListProductsQuery) (*service.ProductPage, error) {
		got = q
		return &service.ProductPage{TotalProducts: 3}, nil
	}

	w := s.do(http.MethodGet, "/api/v1/products?availability=in-stock&price=0-100&page=abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in-stock", got.Availability)
	assert.Equal(t, "0-100", got.Price)
	assert.Equal(t, 1, got.Page)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["totalProducts"])
}

func TestCreateProductMultipart(t *testing.T) {
	s := newTestServer(t, nil)
	var contents []string
	s.catalog.createFunc = func(ctx context.Context, admin *models.User, form service.ProductForm, files []io.Reader) (*models.Product, error) {
		for _, f := range files {
			b, err := io.ReadAll(f)
			require.NoError(t, err)
			contents = append(contents, string(b))
		}
		return &models.Product{ID: uuid.New(), Name: form.Name}, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Mug"))
	require.NoError(t, mw.WriteField("price", "930"))
	for _, content := range []string{"img-a", "img-b"} {
		part, err := mw.CreateFormFile("images", content+".png")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/admin/create", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"img-a", "img-b"}, contents)
	assert.Equal(t, "Mug", decode(t, w)["product"].(map[string]interface{})["name"])
}
