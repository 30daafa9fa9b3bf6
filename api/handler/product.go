package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/internal/referral"
	"github.com/fastygo/storefront/pkg/httpcontext"
	attributionUC "github.com/fastygo/storefront/usecase/attribution"
	catalogUC "github.com/fastygo/storefront/usecase/catalog"
)

type ProductHandler struct {
	baseHandler
	catalog     *catalogUC.UseCase
	attribution *attributionUC.UseCase
	markers     *referral.Codec
}

func NewProductHandler(
	catalog *catalogUC.UseCase,
	attribution *attributionUC.UseCase,
	markers *referral.Codec,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *ProductHandler {
	return &ProductHandler{
		baseHandler: newBaseHandler(adapter, logger),
		catalog:     catalog,
		attribution: attribution,
		markers:     markers,
	}
}

// @Summary List products
// @Tags products
// @Router /api/v1/products [get]
func (h *ProductHandler) ListProducts(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	products, err := h.catalog.ListProducts(stdCtx, limit, offset)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondPage(ctx, products, len(products), limit, offset)
}

// @Summary Product detail; a ref query parameter records a referral click
// @Tags products
// @Router /api/v1/products/{slug} [get]
func (h *ProductHandler) GetProduct(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	product, err := h.catalog.GetProduct(stdCtx, pathParam(ctx, "slug"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	if code := string(ctx.QueryArgs().Peek("ref")); code != "" {
		h.trackReferral(ctx, stdCtx, code, &product.ID)
	}
	h.respondSuccess(ctx, http.StatusOK, product)
}

// @Summary Add a catalog entry
// @Tags admin
// @Router /api/v1/admin/products [post]
func (h *ProductHandler) CreateProduct(ctx *fasthttp.RequestCtx) {
	var req transport.CreateProductRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}
	if req.Price == nil {
		h.badRequest(ctx, "price is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	product, err := h.catalog.CreateProduct(stdCtx, catalogUC.ProductInput{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		ImageURL:    req.ImageURL,
		InStock:     req.InStock,
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, product)
}

// @Summary Referral landing link; records the click and redirects
// @Tags referrals
// @Router /r/{code} [get]
func (h *ProductHandler) Landing(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.trackReferral(ctx, stdCtx, pathParam(ctx, "code"), nil)
	ctx.Response.Header.Set("Location", safeRedirect(string(ctx.QueryArgs().Peek("next"))))
	ctx.SetStatusCode(http.StatusFound)
}

// trackReferral never fails the surrounding request; attribution problems
// are logged and the page is served as usual.
func (h *ProductHandler) trackReferral(ctx *fasthttp.RequestCtx, stdCtx context.Context, code string, productID *string) {
	result, err := h.attribution.ResolveClick(stdCtx, code, productID, httpcontext.RequestMeta(stdCtx))
	if err != nil {
		h.log(stdCtx).Error("referral click not recorded", zap.String("code", code), zap.Error(err))
		return
	}
	if result == nil {
		return
	}
	if err := h.markers.SetCookie(ctx, result.Affiliate.Code); err != nil {
		h.log(stdCtx).Error("failed to issue referral marker", zap.Error(err))
	}
}

// safeRedirect only allows same-site relative paths.
func safeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}

