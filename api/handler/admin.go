package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/internal/services"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/repository"
	affiliateUC "github.com/fastygo/storefront/usecase/affiliate"
	ledgerUC "github.com/fastygo/storefront/usecase/ledger"
)

const reconcileTimeout = 5 * time.Minute

type AdminHandler struct {
	baseHandler
	affiliates *affiliateUC.UseCase
	ledger     *ledgerUC.UseCase
	reconciler *services.Reconciler
}

func NewAdminHandler(
	affiliates *affiliateUC.UseCase,
	ledger *ledgerUC.UseCase,
	reconciler *services.Reconciler,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		affiliates:  affiliates,
		ledger:      ledger,
		reconciler:  reconciler,
	}
}

// @Summary List affiliates
// @Tags admin
// @Router /api/v1/admin/affiliates [get]
func (h *AdminHandler) ListAffiliates(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	affiliates, err := h.affiliates.List(stdCtx, repository.AffiliateFilter{
		Status: string(ctx.QueryArgs().Peek("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondPage(ctx, affiliates, len(affiliates), limit, offset)
}

// @Summary List ledger entries
// @Tags admin
// @Router /api/v1/admin/affiliate-sales [get]
func (h *AdminHandler) ListSales(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sales, err := h.ledger.ListSales(stdCtx, repository.SaleFilter{
		AffiliateID: string(ctx.QueryArgs().Peek("affiliate_id")),
		Status:      string(ctx.QueryArgs().Peek("status")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondPage(ctx, sales, len(sales), limit, offset)
}

// @Summary Confirm a pending sale
// @Tags admin
// @Router /api/v1/admin/affiliate-sales/{id}/confirm [post]
func (h *AdminHandler) ConfirmSale(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sale, err := h.ledger.ConfirmSale(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, sale)
}

// @Summary Void a sale and reverse its commission
// @Tags admin
// @Router /api/v1/admin/affiliate-sales/{id}/void [post]
func (h *AdminHandler) VoidSale(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sale, err := h.ledger.VoidSale(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, sale)
}

// @Summary Rebuild affiliate counters from the ledger
// @Tags admin
// @Router /api/v1/admin/affiliates/reconcile [post]
func (h *AdminHandler) Reconcile(ctx *fasthttp.RequestCtx) {
	// walks every affiliate, so it runs under its own deadline
	stdCtx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	report, err := h.reconciler.Run(stdCtx)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}
