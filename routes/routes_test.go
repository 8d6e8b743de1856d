package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront-backend/cache"
	"storefront-backend/config"
	"storefront-backend/controllers"
	"storefront-backend/events"
	"storefront-backend/mailer"
	"storefront-backend/middlewares"
	"storefront-backend/models"
	"storefront-backend/refs"
	"storefront-backend/services"
	"storefront-backend/storage"
	"storefront-backend/testutil"
)

type server struct {
	app  *fiber.App
	db   *gorm.DB
	mail *mailer.Mock
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		AppEnv:         "test",
		JWTSecret:      "test-secret",
		SessionCookie:  "session",
		SessionHours:   1,
		AllowedOrigins: "*",
		BodyLimitMB:    4,
		Storage: config.StorageConfig{
			Driver:         "local",
			LocalDir:       t.TempDir(),
			LocalURLPrefix: "/uploads",
		},
	}
	db := testutil.NewDB(t)
	gen, err := refs.NewGenerator(1)
	require.NoError(t, err)

	mail := &mailer.Mock{}
	bus := events.NewBus()
	broadcaster := events.NewBroadcaster()
	products := cache.New[string, models.Product]()
	delivery := services.NewDeliveryService(cache.New[uint, models.DeliverySettings]())
	recalc := services.NewInvoiceRecalculator()
	recalc.Register(bus)

	ctl := &controllers.Controller{
		DB:          db,
		Auth:        middlewares.NewAuth(cfg),
		Storage:     storage.NewLocal(cfg.Storage.LocalDir, cfg.Storage.LocalURLPrefix),
		Broadcaster: broadcaster,
		Checkout:    services.NewCheckoutService(gen, delivery, recalc, mail),
		Orders:      services.NewOrderService(delivery, bus, broadcaster, recalc),
		Invoices:    services.NewInvoiceService(recalc),
		Reviews:     services.NewReviewService(products),
		Catalog:     services.NewCatalogService(products),
		Delivery:    delivery,
		Content:     services.NewContentService(),
		Users:       services.NewUserService(),
	}
	return &server{app: NewApp(cfg, ctl, db), db: db, mail: mail}
}

func (s *server) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func (s *server) do(t *testing.T, method, path, token string, payload any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return s.send(t, req)
}

func (s *server) login(t *testing.T, email string) string {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "password"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func checkoutBody(productID string) map[string]any {
	return map[string]any{
		"name":            "Ada Lovelace",
		"email":           "ada@example.com",
		"phone":           "0912345678",
		"shippingAddress": map[string]string{"en": "1 Main St", "zh-TW": "主街1號"},
		"cartItems":       []map[string]any{{"id": productID, "quantity": 1, "price": 100}},
		"deliveryMethod":  0,
		"paymentMethod":   "online",
	}
}

func TestCheckout_IdempotentOverHTTP(t *testing.T) {
	s := newServer(t)
	testutil.User(t, s.db, "ada@example.com")
	product := testutil.Product(t, s.db, "tea", 100)
	testutil.DeliverySettings(t, s.db, 500, 20)
	token := s.login(t, "ada@example.com")

	resp, body := s.do(t, http.MethodPost, "/api/checkout", token, checkoutBody(product.ID), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)

	replay, again := s.do(t, http.MethodPost, "/api/checkout", token, checkoutBody(product.ID), "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusCreated, replay.StatusCode)
	assert.Equal(t, "true", replay.Header.Get("Idempotent-Replay"))
	assert.Equal(t, orderID, again["orderId"])

	var orders int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)

	changed := checkoutBody(product.ID)
	changed["phone"] = "0900000000"
	resp, _ = s.do(t, http.MethodPost, "/api/checkout", token, changed, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, order := s.do(t, http.MethodGet, "/api/orders/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, float64(120), order["total"], "money is encoded as a JSON number")

	require.Eventually(t, func() bool { return s.mail.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestCheckout_Errors(t *testing.T) {
	s := newServer(t)
	testutil.User(t, s.db, "ada@example.com")
	testutil.DeliverySettings(t, s.db, 500, 20)

	resp, body := s.do(t, http.MethodPost, "/api/checkout", "", checkoutBody("x"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	token := s.login(t, "ada@example.com")
	resp, body = s.do(t, http.MethodPost, "/api/checkout", token, map[string]any{"name": "Ada"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	details, _ := body["details"].(map[string]any)
	assert.Contains(t, details["missingFields"], "email")
	assert.NotContains(t, details["missingFields"], "name")

	payload := checkoutBody("x")
	payload["deliveryMethod"] = 4
	resp, body = s.do(t, http.MethodPost, "/api/checkout", token, payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	details, _ = body["details"].(map[string]any)
	validation, _ := details["validation"].(map[string]any)
	assert.Equal(t, true, validation["isOutOfBounds"])
}

func TestRegister_ValidationUsesJSONNames(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	details, _ := body["details"].(map[string]any)
	assert.Equal(t, "email", details["email"])
	assert.Equal(t, "required", details["firstName"])
}

func TestAdminOnlyRoutes(t *testing.T) {
	s := newServer(t)
	testutil.User(t, s.db, "ada@example.com")
	testutil.User(t, s.db, "admin@example.com", func(u *models.User) { u.IsAdmin = true })
	settings := map[string]any{
		"deliveryMethods": []map[string]any{
			{"name": map[string]string{"en": "Courier", "zh-TW": "快遞"}, "cost": "60", "icon": "truck"},
		},
		"freeDeliveryThreshold": "300",
	}

	resp, _ := s.do(t, http.MethodPut, "/api/delivery-settings", s.login(t, "ada@example.com"), settings)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := s.do(t, http.MethodPut, "/api/delivery-settings", s.login(t, "admin@example.com"), settings)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = s.do(t, http.MethodGet, "/api/delivery-settings", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	methods, _ := body["deliveryMethods"].([]any)
	require.Len(t, methods, 1)
	icon := methods[0].(map[string]any)["icon"].(map[string]any)
	assert.Equal(t, "named", icon["kind"])
}

func TestReview_ForbiddenWithoutPurchase(t *testing.T) {
	s := newServer(t)
	testutil.User(t, s.db, "ada@example.com")
	product := testutil.Product(t, s.db, "tea", 100)
	token := s.login(t, "ada@example.com")

	resp, body := s.do(t, http.MethodPost, "/api/review", token, map[string]any{"productId": product.ID, "rating": 5})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, false, body["canReview"])

	resp, body = s.do(t, http.MethodGet, "/api/review?productId="+product.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["canReview"])
	assert.Empty(t, body["reviews"])
}

func TestUpload(t *testing.T) {
	s := newServer(t)
	testutil.User(t, s.db, "ada@example.com")
	token := s.login(t, "ada@example.com")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "proof.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body := s.send(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	url, _ := body["secure_url"].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)
}
