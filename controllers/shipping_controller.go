package controllers

import (
	"context"
	"net/http"
	"strconv"

	apperrors "courier-service/common/errors"
	"courier-service/common/middleware"
	"courier-service/models"
	"courier-service/rates"
	"courier-service/repository"
	"courier-service/services"

	"github.com/gin-gonic/gin"
)

// RateCalculator prices a canonical quote request from rate cards.
type RateCalculator interface {
	CalculateShippingRate(ctx context.Context, req models.CalculationRequest) (*models.CalculationResult, error)
}

// CourierService is the orchestrator surface the HTTP layer needs.
type CourierService interface {
	GetRateComparison(ctx context.Context, req models.RateComparisonRequest) (*models.RateComparison, error)
	Dispatch(ctx context.Context, code string, op services.Operation, payload any) *models.Envelope
}

// ShippingController handles HTTP requests for quoting and courier operations.
type ShippingController struct {
	rates     RateCalculator
	couriers  CourierService
	shipments repository.ShipmentRepository
}

// NewShippingController creates a new ShippingController.
func NewShippingController(rates RateCalculator, couriers CourierService, shipments repository.ShipmentRepository) *ShippingController {
	return &ShippingController{rates: rates, couriers: couriers, shipments: shipments}
}

// CalculateRate handles POST /rates/calculate
func (sc *ShippingController) CalculateRate(ctx *gin.Context) {
	var payload map[string]any
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		fail(ctx, "", apperrors.Validation("invalid request body: %v", err))
		return
	}
	req, err := rates.NormalizeQuoteInput(payload)
	if err != nil {
		fail(ctx, "", err)
		return
	}
	req.SellerID = sellerFor(ctx, req.SellerID)

	res, err := sc.rates.CalculateShippingRate(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, req.Courier, err)
		return
	}
	ctx.JSON(http.StatusOK, models.OK(req.Courier, res))
}

// CompareRates handles POST /rates/compare
func (sc *ShippingController) CompareRates(ctx *gin.Context) {
	var req models.RateComparisonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, "", apperrors.Validation("invalid request body: %v", err))
		return
	}
	if req.PaymentType == "" {
		req.PaymentType = models.PaymentPrepaid
	}
	req.SellerID = sellerFor(ctx, req.SellerID)

	res, err := sc.couriers.GetRateComparison(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, "", err)
		return
	}
	ctx.JSON(http.StatusOK, models.OK("", res))
}

// BookShipment handles POST /couriers/:courier/shipments
func (sc *ShippingController) BookShipment(ctx *gin.Context) {
	courier := ctx.Param("courier")
	var details models.ShipmentDetails
	if err := ctx.ShouldBindJSON(&details); err != nil {
		fail(ctx, courier, apperrors.Validation("invalid request body: %v", err))
		return
	}
	details.SellerID = sellerFor(ctx, details.SellerID)

	env := sc.couriers.Dispatch(ctx.Request.Context(), courier, services.OpBookShipment, details)
	respond(ctx, http.StatusCreated, env)
}

// TrackShipment handles GET /couriers/:courier/shipments/:awb/track
func (sc *ShippingController) TrackShipment(ctx *gin.Context) {
	env := sc.couriers.Dispatch(ctx.Request.Context(), ctx.Param("courier"), services.OpTrackShipment, ctx.Param("awb"))
	respond(ctx, http.StatusOK, env)
}

// CancelShipment handles POST /couriers/:courier/shipments/:awb/cancel
func (sc *ShippingController) CancelShipment(ctx *gin.Context) {
	env := sc.couriers.Dispatch(ctx.Request.Context(), ctx.Param("courier"), services.OpCancelShipment, ctx.Param("awb"))
	respond(ctx, http.StatusOK, env)
}

// ListShipments handles GET /shipments
func (sc *ShippingController) ListShipments(ctx *gin.Context) {
	sellerID := sellerFor(ctx, "")
	if sellerID == "" {
		fail(ctx, "", apperrors.Validation("seller id is required"))
		return
	}
	page, limit := parsePaginationParams(ctx)

	shipments, total, err := sc.shipments.FindBySeller(ctx.Request.Context(), sellerID, page, limit)
	if err != nil {
		fail(ctx, "", apperrors.Internal("failed to list shipments", err))
		return
	}
	ctx.JSON(http.StatusOK, models.OK("", gin.H{
		"shipments": shipments,
		"total":     total,
		"page":      page,
		"limit":     limit,
	}))
}

// sellerFor returns the seller a request acts for. Sellers always act for
// themselves; only an admin may name another seller, in the body or in the
// seller_id query parameter.
func sellerFor(ctx *gin.Context, requested string) string {
	if middleware.IsAdmin(ctx) {
		if requested == "" {
			requested = ctx.Query("seller_id")
		}
		if requested != "" {
			return requested
		}
	}
	id, _ := middleware.GetUserID(ctx)
	return id
}

// respond writes env with okStatus on success, else with the status of its
// error kind.
func respond(ctx *gin.Context, okStatus int, env *models.Envelope) {
	if env.Success {
		ctx.JSON(okStatus, env)
		return
	}
	status := http.StatusInternalServerError
	if env.Error != nil {
		status = apperrors.StatusFor(env.Error.Kind)
	}
	ctx.JSON(status, env)
}

func fail(ctx *gin.Context, provider string, err error) {
	respond(ctx, http.StatusOK, models.Fail(provider, err))
}

// parsePaginationParams extracts and validates page/limit query params.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100
	pageInt, limitInt := 1, 10
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		if l > maxLimit {
			l = maxLimit
		}
		limitInt = l
	}
	return pageInt, limitInt
}
