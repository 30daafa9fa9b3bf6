package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/repository"
	affiliateUC "github.com/fastygo/storefront/usecase/affiliate"
)

const dashboardSales = 20

type AffiliateHandler struct {
	baseHandler
	uc *affiliateUC.UseCase
}

func NewAffiliateHandler(uc *affiliateUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AffiliateHandler {
	return &AffiliateHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Enroll the caller as an affiliate
// @Tags affiliate
// @Router /api/v1/affiliate [post]
func (h *AffiliateHandler) Enroll(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	affiliate, err := h.uc.Enroll(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, affiliate)
}

// @Summary Affiliate dashboard
// @Tags affiliate
// @Router /api/v1/affiliate/me [get]
func (h *AffiliateHandler) Dashboard(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	dashboard, err := h.uc.Dashboard(stdCtx, userID, dashboardSales)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, dashboard)
}

// @Summary The caller's commission ledger
// @Tags affiliate
// @Router /api/v1/affiliate/sales [get]
func (h *AffiliateHandler) Sales(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	limit, offset := pagination(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sales, err := h.uc.ListSales(stdCtx, userID, repository.SaleFilter{
		Status: string(ctx.QueryArgs().Peek("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondPage(ctx, sales, len(sales), limit, offset)
}
