package handler

import (
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/api/transport"
	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/middleware"
	"github.com/fastygo/storefront/internal/referral"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/repository"
	orderUC "github.com/fastygo/storefront/usecase/order"
)

const headerIdempotencyKey = "Idempotency-Key"

type OrderHandler struct {
	baseHandler
	uc      *orderUC.UseCase
	markers *referral.Codec
}

func NewOrderHandler(uc *orderUC.UseCase, markers *referral.Codec, adapter *httpcontext.Adapter, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		markers:     markers,
	}
}

// @Summary Place an order; the referral cookie decides attribution
// @Tags orders
// @Router /api/v1/orders [post]
func (h *OrderHandler) CreateOrder(ctx *fasthttp.RequestCtx) {
	var req transport.CreateOrderRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}

	in := orderUC.CreateInput{
		Email:           req.Email,
		ShippingName:    req.ShippingName,
		ShippingAddress: req.ShippingAddress,
		ShippingCity:    req.ShippingCity,
		ShippingState:   req.ShippingState,
		ShippingZip:     req.ShippingZip,
		Items:           make([]orderUC.ItemInput, 0, len(req.Items)),
		Marker:          h.markers.FromRequest(ctx),
		IdempotencyKey:  strings.TrimSpace(string(ctx.Request.Header.Peek(headerIdempotencyKey))),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, orderUC.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if userID := string(ctx.Request.Header.Peek(middleware.HeaderUserID)); userID != "" {
		in.UserID = &userID
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	order, err := h.uc.CreateOrder(stdCtx, in)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, order)
}

// @Summary Get one of the caller's orders
// @Tags orders
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrder(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	order, err := h.uc.GetOrder(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	isAdmin := string(ctx.Request.Header.Peek(middleware.HeaderUserRole)) == middleware.RoleAdmin
	if !isAdmin && (order.UserID == nil || *order.UserID != userID) {
		h.respondError(ctx, stdCtx, domain.ErrOrderNotFound)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, order)
}

// @Summary List orders
// @Tags admin
// @Router /api/v1/admin/orders [get]
func (h *OrderHandler) ListOrders(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)
	filter := repository.OrderFilter{
		AffiliateID: string(ctx.QueryArgs().Peek("affiliate_id")),
		Status:      string(ctx.QueryArgs().Peek("status")),
		Limit:       limit,
		Offset:      offset,
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	orders, err := h.uc.ListOrders(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondPage(ctx, orders, len(orders), limit, offset)
}
