package router

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/storefront/api/handler"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/infrastructure/monitor"
	"github.com/fastygo/storefront/internal/middleware"
	"github.com/fastygo/storefront/internal/referral"
	"github.com/fastygo/storefront/internal/services"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/pkg/metrics"
	"github.com/fastygo/storefront/repository/memory"
	affiliateUC "github.com/fastygo/storefront/usecase/affiliate"
	attributionUC "github.com/fastygo/storefront/usecase/attribution"
	catalogUC "github.com/fastygo/storefront/usecase/catalog"
	ledgerUC "github.com/fastygo/storefront/usecase/ledger"
	orderUC "github.com/fastygo/storefront/usecase/order"
)

const jwtSecret = "jwt-secret"

type staticStatus monitor.Status

func (s staticStatus) GetStatus() monitor.Status { return monitor.Status(s) }

type app struct {
	db      *memory.DB
	handler fasthttp.RequestHandler
	product domain.Product
}

func newApp(t *testing.T) *app {
	t.Helper()
	db := memory.New()
	store := db.Store()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "storefront-test")
	codec := referral.NewCodec("referral-secret", "", 0)
	adapter := httpcontext.NewAdapter(time.Second)

	attribution := attributionUC.New(store.Affiliates(), db, codec, nil, m, nil)
	ledger := ledgerUC.New(store.Affiliates(), store.Sales(), db, m, nil)
	affiliates := affiliateUC.New(store.Affiliates(), store.Sales(), nil, affiliateUC.Config{}, nil)
	orders := orderUC.New(db.Products(), store.Orders(), db, attribution, ledger, nil, m, nil)

	product := db.SeedProduct(domain.Product{Slug: "widget", Name: "Widget", Price: decimal.RequireFromString("33.00"), InStock: true})

	r := New(Handlers{
		Products:   apiHandler.NewProductHandler(catalogUC.New(db.Products(), nil), attribution, codec, adapter, nil),
		Orders:     apiHandler.NewOrderHandler(orders, codec, adapter, nil),
		Affiliates: apiHandler.NewAffiliateHandler(affiliates, adapter, nil),
		Admin:      apiHandler.NewAdminHandler(affiliates, ledger, services.NewReconciler(ledger, time.Hour, nil), adapter, nil),
		Health:     apiHandler.NewHealthHandler(staticStatus{PostgreSQL: true}, adapter, nil),
		Metrics:    metrics.Handler(reg),
	}, Middlewares{
		Auth:         middleware.JWTAuth(jwtSecret, nil),
		OptionalAuth: middleware.OptionalJWTAuth(jwtSecret, nil),
		Admin:        middleware.RequireRole(middleware.RoleAdmin),
	})

	return &app{db: db, handler: r.Handler, product: product}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"user_id": userID, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

type request struct {
	method  string
	uri     string
	body    interface{}
	token   string
	cookies map[string]string
	headers map[string]string
}

func (a *app) do(t *testing.T, req request) (*fasthttp.RequestCtx, map[string]json.RawMessage) {
	t.Helper()
	var rc fasthttp.RequestCtx
	rc.Request.Header.SetMethod(req.method)
	rc.Request.SetRequestURI(req.uri)
	if req.body != nil {
		body, err := json.Marshal(req.body)
		require.NoError(t, err)
		rc.Request.SetBody(body)
		rc.Request.Header.SetContentType("application/json")
	}
	if req.token != "" {
		rc.Request.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.cookies {
		rc.Request.Header.SetCookie(k, v)
	}
	for k, v := range req.headers {
		rc.Request.Header.Set(k, v)
	}
	a.handler(&rc)

	var envelope map[string]json.RawMessage
	if ct := string(rc.Response.Header.ContentType()); ct == "application/json" {
		require.NoError(t, json.Unmarshal(rc.Response.Body(), &envelope))
	}
	return &rc, envelope
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst))
}

func orderBody(productID string, quantity int) map[string]interface{} {
	return map[string]interface{}{
		"email":            "shopper@example.com",
		"shipping_name":    "Sam Shopper",
		"shipping_address": "1 Main St",
		"shipping_city":    "Springfield",
		"shipping_state":   "IL",
		"shipping_zip":     "62701",
		"items":            []map[string]interface{}{{"product_id": productID, "quantity": quantity}},
	}
}

func referralCookie(t *testing.T, rc *fasthttp.RequestCtx) string {
	t.Helper()
	var cookie fasthttp.Cookie
	cookie.SetKey(referral.DefaultCookieName)
	require.True(t, rc.Response.Header.Cookie(&cookie), "referral cookie must be set")
	return string(cookie.Value())
}

func TestReferralCheckoutFlow(t *testing.T) {
	a := newApp(t)
	affiliateToken := token(t, "affiliate-user", "")

	rc, env := a.do(t, request{method: http.MethodPost, uri: "/api/v1/affiliate", token: affiliateToken})
	require.Equal(t, http.StatusCreated, rc.Response.StatusCode(), string(rc.Response.Body()))
	var affiliate domain.Affiliate
	decode(t, env["data"], &affiliate)

	rc, _ = a.do(t, request{method: http.MethodGet, uri: "/api/v1/products/widget?ref=" + affiliate.Code})
	require.Equal(t, http.StatusOK, rc.Response.StatusCode())

	var cookie fasthttp.Cookie
	cookie.SetKey(referral.DefaultCookieName)
	require.True(t, rc.Response.Header.Cookie(&cookie), "referral cookie must be set")
	assert.True(t, cookie.HTTPOnly())

	rc, env = a.do(t, request{
		method:  http.MethodPost,
		uri:     "/api/v1/orders",
		body:    orderBody(a.product.ID, 3),
		cookies: map[string]string{referral.DefaultCookieName: string(cookie.Value())},
	})
	require.Equal(t, http.StatusCreated, rc.Response.StatusCode(), string(rc.Response.Body()))
	var order domain.Order
	decode(t, env["data"], &order)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("99.00")))
	require.NotNil(t, order.AffiliateID)
	assert.Equal(t, affiliate.ID, *order.AffiliateID)

	rc, env = a.do(t, request{method: http.MethodGet, uri: "/api/v1/affiliate/me", token: affiliateToken})
	require.Equal(t, http.StatusOK, rc.Response.StatusCode())
	var dashboard struct {
		Affiliate domain.Affiliate       `json:"affiliate"`
		Sales     []domain.AffiliateSale `json:"recent_sales"`
	}
	decode(t, env["data"], &dashboard)
	assert.EqualValues(t, 1, dashboard.Affiliate.TotalClicks)
	assert.EqualValues(t, 1, dashboard.Affiliate.TotalSales)
	assert.True(t, dashboard.Affiliate.TotalCommission.Equal(decimal.RequireFromString("9.90")))
	require.Len(t, dashboard.Sales, 1)

	adminToken := token(t, "admin-1", middleware.RoleAdmin)
	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/affiliate-sales/" + dashboard.Sales[0].ID + "/void", token: adminToken})
	require.Equal(t, http.StatusOK, rc.Response.StatusCode(), string(rc.Response.Body()))

	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/affiliate-sales/" + dashboard.Sales[0].ID + "/void", token: adminToken})
	assert.Equal(t, http.StatusConflict, rc.Response.StatusCode())

	rc, env = a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/affiliates/reconcile", token: adminToken})
	require.Equal(t, http.StatusOK, rc.Response.StatusCode())
	var report services.ReconcileReport
	decode(t, env["data"], &report)
	assert.Empty(t, report.Drifts)
}

func TestUnknownReferralCodeServesProductWithoutCookie(t *testing.T) {
	a := newApp(t)

	rc, _ := a.do(t, request{method: http.MethodGet, uri: "/api/v1/products/widget?ref=DEADBEEF"})
	assert.Equal(t, http.StatusOK, rc.Response.StatusCode())

	var cookie fasthttp.Cookie
	cookie.SetKey(referral.DefaultCookieName)
	assert.False(t, rc.Response.Header.Cookie(&cookie))
	assert.Empty(t, a.db.Clicks())
}

func TestLandingRedirectsToLocalPathsOnly(t *testing.T) {
	a := newApp(t)

	rc, _ := a.do(t, request{method: http.MethodGet, uri: "/r/ABCDEF?next=/products/widget"})
	assert.Equal(t, http.StatusFound, rc.Response.StatusCode())
	assert.Equal(t, "/products/widget", string(rc.Response.Header.Peek("Location")))

	rc, _ = a.do(t, request{method: http.MethodGet, uri: "/r/ABCDEF?next=//evil.example"})
	assert.Equal(t, "/", string(rc.Response.Header.Peek("Location")))
}

func TestAnonymousOrderIsUnattributed(t *testing.T) {
	a := newApp(t)

	rc, env := a.do(t, request{method: http.MethodPost, uri: "/api/v1/orders", body: orderBody(a.product.ID, 1)})
	require.Equal(t, http.StatusCreated, rc.Response.StatusCode())
	var order domain.Order
	decode(t, env["data"], &order)
	assert.Nil(t, order.AffiliateID)
	assert.Nil(t, order.UserID)
	assert.Empty(t, a.db.Sales())
}

func TestOrderValidationErrors(t *testing.T) {
	a := newApp(t)

	rc, env := a.do(t, request{method: http.MethodPost, uri: "/api/v1/orders", body: orderBody(a.product.ID, 0)})
	assert.Equal(t, http.StatusBadRequest, rc.Response.StatusCode())
	assert.JSONEq(t, `"INVALID"`, string(env["code"]))

	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/orders", body: "not an object"})
	assert.Equal(t, http.StatusBadRequest, rc.Response.StatusCode())
}

func TestOrderVisibleOnlyToOwner(t *testing.T) {
	a := newApp(t)
	owner := token(t, "buyer-1", "")

	rc, env := a.do(t, request{method: http.MethodPost, uri: "/api/v1/orders", body: orderBody(a.product.ID, 1), token: owner})
	require.Equal(t, http.StatusCreated, rc.Response.StatusCode())
	var order domain.Order
	decode(t, env["data"], &order)

	rc, _ = a.do(t, request{method: http.MethodGet, uri: "/api/v1/orders/" + order.ID, token: owner})
	assert.Equal(t, http.StatusOK, rc.Response.StatusCode())

	rc, _ = a.do(t, request{method: http.MethodGet, uri: "/api/v1/orders/" + order.ID, token: token(t, "buyer-2", "")})
	assert.Equal(t, http.StatusNotFound, rc.Response.StatusCode())
}

func TestAffiliateAndAdminAccessControl(t *testing.T) {
	a := newApp(t)
	userToken := token(t, "user-1", "")

	rc, _ := a.do(t, request{method: http.MethodPost, uri: "/api/v1/affiliate"})
	assert.Equal(t, http.StatusUnauthorized, rc.Response.StatusCode())

	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/affiliate", token: userToken})
	assert.Equal(t, http.StatusCreated, rc.Response.StatusCode())
	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/affiliate", token: userToken})
	assert.Equal(t, http.StatusConflict, rc.Response.StatusCode())

	rc, _ = a.do(t, request{method: http.MethodGet, uri: "/api/v1/admin/affiliates", token: userToken})
	assert.Equal(t, http.StatusForbidden, rc.Response.StatusCode())

	rc, env := a.do(t, request{method: http.MethodGet, uri: "/api/v1/admin/affiliates", token: token(t, "admin-1", middleware.RoleAdmin)})
	require.Equal(t, http.StatusOK, rc.Response.StatusCode())
	var list []domain.Affiliate
	decode(t, env["data"], &list)
	assert.Len(t, list, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	rc, _ := a.do(t, request{method: http.MethodGet, uri: "/health"})
	assert.Equal(t, http.StatusOK, rc.Response.StatusCode())

	a.do(t, request{method: http.MethodGet, uri: "/api/v1/products/widget?ref=DEADBEEF"})
	rc, _ = a.do(t, request{method: http.MethodGet, uri: "/metrics"})
	assert.Equal(t, http.StatusOK, rc.Response.StatusCode())
	assert.Contains(t, string(rc.Response.Body()), "storefront_affiliate_clicks_total")
}

func TestLastReferralCodeWins(t *testing.T) {
	a := newApp(t)

	enroll := func(userID string) domain.Affiliate {
		rc, env := a.do(t, request{method: http.MethodPost, uri: "/api/v1/affiliate", token: token(t, userID, "")})
		require.Equal(t, http.StatusCreated, rc.Response.StatusCode())
		var affiliate domain.Affiliate
		decode(t, env["data"], &affiliate)
		return affiliate
	}
	first, second := enroll("affiliate-a"), enroll("affiliate-b")

	rc, _ := a.do(t, request{method: http.MethodGet, uri: "/api/v1/products/widget?ref=" + first.Code})
	require.Equal(t, http.StatusOK, rc.Response.StatusCode())
	firstMarker := referralCookie(t, rc)

	rc, _ = a.do(t, request{
		method:  http.MethodGet,
		uri:     "/api/v1/products/widget?ref=" + second.Code,
		cookies: map[string]string{referral.DefaultCookieName: firstMarker},
	})
	require.Equal(t, http.StatusOK, rc.Response.StatusCode())
	lastMarker := referralCookie(t, rc)
	assert.NotEqual(t, firstMarker, lastMarker)

	rc, env := a.do(t, request{
		method:  http.MethodPost,
		uri:     "/api/v1/orders",
		body:    orderBody(a.product.ID, 3),
		cookies: map[string]string{referral.DefaultCookieName: lastMarker},
	})
	require.Equal(t, http.StatusCreated, rc.Response.StatusCode(), string(rc.Response.Body()))
	var order domain.Order
	decode(t, env["data"], &order)
	require.NotNil(t, order.AffiliateID)
	assert.Equal(t, second.ID, *order.AffiliateID)

	sales := a.db.Sales()
	require.Len(t, sales, 1)
	assert.Equal(t, second.ID, sales[0].AffiliateID)

	affiliates := a.db.Store().Affiliates()
	gotFirst, err := affiliates.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	gotSecond, err := affiliates.GetByID(context.Background(), second.ID)
	require.NoError(t, err)

	// both visits count as clicks; only the last touch earns the sale
	assert.EqualValues(t, 1, gotFirst.TotalClicks)
	assert.Zero(t, gotFirst.TotalSales)
	assert.True(t, gotFirst.TotalCommission.IsZero())
	assert.EqualValues(t, 1, gotSecond.TotalClicks)
	assert.EqualValues(t, 1, gotSecond.TotalSales)
	assert.True(t, gotSecond.TotalCommission.Equal(decimal.RequireFromString("9.90")))
}

func TestAdminCreatesProduct(t *testing.T) {
	a := newApp(t)
	adminToken := token(t, "admin-1", middleware.RoleAdmin)
	body := map[string]interface{}{
		"slug":        "twelve-pack-bundle",
		"name":        "12 Pack Bundle",
		"description": "Four of each cleaner",
		"price":       "99.00",
	}

	rc, _ := a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/products", body: body})
	assert.Equal(t, http.StatusUnauthorized, rc.Response.StatusCode())
	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/products", body: body, token: token(t, "user-1", "")})
	assert.Equal(t, http.StatusForbidden, rc.Response.StatusCode())

	rc, env := a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/products", body: body, token: adminToken})
	require.Equal(t, http.StatusCreated, rc.Response.StatusCode(), string(rc.Response.Body()))
	var product domain.Product
	decode(t, env["data"], &product)
	assert.NotEmpty(t, product.ID)
	assert.True(t, product.InStock)

	rc, env = a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/products", body: body, token: adminToken})
	assert.Equal(t, http.StatusConflict, rc.Response.StatusCode())
	assert.JSONEq(t, `"CONFLICT"`, string(env["code"]))

	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/products", token: adminToken, body: map[string]interface{}{
		"slug": "free", "name": "Free",
	}})
	assert.Equal(t, http.StatusBadRequest, rc.Response.StatusCode())

	rc, _ = a.do(t, request{method: http.MethodPost, uri: "/api/v1/admin/products", token: adminToken, body: map[string]interface{}{
		"slug": "negative", "name": "Negative", "price": "-1.00",
	}})
	assert.Equal(t, http.StatusBadRequest, rc.Response.StatusCode())

	rc, _ = a.do(t, request{method: http.MethodGet, uri: "/api/v1/products/twelve-pack-bundle"})
	assert.Equal(t, http.StatusOK, rc.Response.StatusCode())

	rc, env = a.do(t, request{method: http.MethodPost, uri: "/api/v1/orders", body: orderBody(product.ID, 1)})
	require.Equal(t, http.StatusCreated, rc.Response.StatusCode(), string(rc.Response.Body()))
	var order domain.Order
	decode(t, env["data"], &order)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("99.00")))
}
