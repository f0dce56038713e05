package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PartnerAdmin is the write side of the partner registry.
type PartnerAdmin interface {
	Update(ctx context.Context, p *models.PartnerConfig) error
	SetAPIStatus(ctx context.Context, code string, status models.APIStatus) error
	RotateCredentials(ctx context.Context, code string, creds map[string]string) error
	Invalidate(ctx context.Context, code string)
}

// AdminController manages partners, rate cards and seller overrides.
type AdminController struct {
	partners  PartnerAdmin
	cards     repository.RateCardRepository
	overrides repository.OverrideRepository
	logger    *zap.Logger
}

func NewAdminController(partners PartnerAdmin, cards repository.RateCardRepository,
	overrides repository.OverrideRepository, logger *zap.Logger) *AdminController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminController{partners: partners, cards: cards, overrides: overrides, logger: logger}
}

type statusRequest struct {
	APIStatus models.APIStatus `json:"api_status" binding:"required"`
}

type credentialsRequest struct {
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// UpdatePartner handles PUT /admin/partners/:courier
func (ac *AdminController) UpdatePartner(ctx *gin.Context) {
	var p models.PartnerConfig
	if err := ctx.ShouldBindJSON(&p); err != nil {
		fail(ctx, "", apperrors.Validation("invalid request body: %v", err))
		return
	}
	// credentials are not part of the JSON shape; rotate them separately
	p.CourierCode = ctx.Param("courier")
	if err := ac.partners.Update(ctx.Request.Context(), &p); err != nil {
		fail(ctx, p.CourierCode, err)
		return
	}
	ctx.JSON(http.StatusOK, models.OK(p.CourierCode, p))
}

// SetPartnerStatus handles PATCH /admin/partners/:courier/status
func (ac *AdminController) SetPartnerStatus(ctx *gin.Context) {
	courier := ctx.Param("courier")
	var req statusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, courier, apperrors.Validation("invalid request body: %v", err))
		return
	}
	if err := ac.partners.SetAPIStatus(ctx.Request.Context(), courier, req.APIStatus); err != nil {
		fail(ctx, courier, err)
		return
	}
	ctx.JSON(http.StatusOK, models.OK(courier, gin.H{"api_status": req.APIStatus}))
}

// RotateCredentials handles PUT /admin/partners/:courier/credentials
func (ac *AdminController) RotateCredentials(ctx *gin.Context) {
	courier := ctx.Param("courier")
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, courier, apperrors.Validation("invalid request body: %v", err))
		return
	}
	if err := ac.partners.RotateCredentials(ctx.Request.Context(), courier, req.Credentials); err != nil {
		fail(ctx, courier, err)
		return
	}
	ctx.JSON(http.StatusOK, models.OK(courier, gin.H{"rotated": true}))
}

// InvalidatePartner handles POST /admin/partners/:courier/invalidate
func (ac *AdminController) InvalidatePartner(ctx *gin.Context) {
	courier := ctx.Param("courier")
	ac.partners.Invalidate(ctx.Request.Context(), courier)
	ctx.JSON(http.StatusOK, models.OK(courier, gin.H{"invalidated": true}))
}

// ---- rate cards ----

// ListRateCards handles GET /admin/rate-cards?courier=
func (ac *AdminController) ListRateCards(ctx *gin.Context) {
	var (
		cards []models.RateCard
		err   error
	)
	if courier := strings.ToLower(ctx.Query("courier")); courier != "" {
		cards, err = ac.cards.FindActiveByCourier(ctx.Request.Context(), courier)
	} else {
		cards, err = ac.cards.FindActive(ctx.Request.Context())
	}
	if err != nil {
		fail(ctx, "", apperrors.Internal("failed to load rate cards", err))
		return
	}
	ctx.JSON(http.StatusOK, models.OK("", cards))
}

// ImportRateCards handles POST /admin/rate-cards/bulk
func (ac *AdminController) ImportRateCards(ctx *gin.Context) {
	var cards []models.RateCard
	if err := ctx.ShouldBindJSON(&cards); err != nil {
		fail(ctx, "", apperrors.Validation("invalid request body: %v", err))
		return
	}
	for i, c := range cards {
		if err := validateCard(c); err != nil {
			fail(ctx, "", apperrors.Validation("rate card %d: %v", i, err))
			return
		}
	}

	n, err := ac.cards.BulkUpsert(ctx.Request.Context(), cards)
	if err != nil {
		ac.logger.Error("Rate card import failed", zap.Int("cards", len(cards)), zap.Error(err))
		fail(ctx, "", apperrors.Internal("failed to import rate cards", err))
		return
	}
	ac.logger.Info("Rate cards imported", zap.Int("cards", len(cards)), zap.Int64("rows", n))
	ctx.JSON(http.StatusOK, models.OK("", gin.H{"imported": n}))
}

func validateCard(c models.RateCard) error {
	if strings.TrimSpace(c.Courier) == "" || strings.TrimSpace(c.ProductName) == "" {
		return errors.New("courier and product name are required")
	}
	if !c.Mode.Valid() {
		return errors.New("unknown mode " + string(c.Mode))
	}
	if !c.Zone.Valid() {
		return errors.New("unknown zone " + string(c.Zone))
	}
	if c.BaseRate < 0 || c.AddlRate < 0 || c.CODAmount < 0 || c.CODPercent < 0 || c.RTOCharges < 0 {
		return errors.New("prices must not be negative")
	}
	if c.MinimumBillableWeight < 0 {
		return errors.New("minimum billable weight must not be negative")
	}
	return nil
}

// DeactivateRateCard handles PATCH /admin/rate-cards/:id/deactivate
func (ac *AdminController) DeactivateRateCard(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := ac.cards.Deactivate(ctx.Request.Context(), id); err != nil {
		fail(ctx, "", storeError(err, "rate card", id))
		return
	}
	ctx.JSON(http.StatusOK, models.OK("", gin.H{"id": id, "is_active": false}))
}

// DeleteRateCard handles DELETE /admin/rate-cards/:id
func (ac *AdminController) DeleteRateCard(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := ac.cards.Delete(ctx.Request.Context(), id); err != nil {
		fail(ctx, "", storeError(err, "rate card", id))
		return
	}
	ac.logger.Warn("Rate card deleted", zap.String("id", id.String()))
	ctx.JSON(http.StatusOK, models.OK("", gin.H{"id": id, "deleted": true}))
}

// ---- seller overrides ----

// ListOverrides handles GET /admin/sellers/:seller_id/overrides
func (ac *AdminController) ListOverrides(ctx *gin.Context) {
	overrides, err := ac.overrides.FindBySeller(ctx.Request.Context(), ctx.Param("seller_id"))
	if err != nil {
		fail(ctx, "", apperrors.Internal("failed to load overrides", err))
		return
	}
	ctx.JSON(http.StatusOK, models.OK("", overrides))
}

// UpsertOverride handles PUT /admin/sellers/:seller_id/overrides
func (ac *AdminController) UpsertOverride(ctx *gin.Context) {
	var o models.SellerRateOverride
	if err := ctx.ShouldBindJSON(&o); err != nil {
		fail(ctx, "", apperrors.Validation("invalid request body: %v", err))
		return
	}
	o.SellerID = ctx.Param("seller_id")
	if o.BaseRateCardID == uuid.Nil {
		fail(ctx, "", apperrors.Validation("base_rate_card_id is required"))
		return
	}
	if !o.HasOverrides() {
		fail(ctx, "", apperrors.Validation("override sets no price fields"))
		return
	}
	if _, err := ac.cards.FindByID(ctx.Request.Context(), o.BaseRateCardID); err != nil {
		fail(ctx, "", storeError(err, "rate card", o.BaseRateCardID))
		return
	}

	if err := ac.overrides.Upsert(ctx.Request.Context(), &o); err != nil {
		fail(ctx, "", apperrors.Internal("failed to save override", err))
		return
	}
	ctx.JSON(http.StatusOK, models.OK("", o))
}

// DeleteOverride handles DELETE /admin/overrides/:id
func (ac *AdminController) DeleteOverride(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := ac.overrides.Delete(ctx.Request.Context(), id); err != nil {
		fail(ctx, "", storeError(err, "override", id))
		return
	}
	ctx.JSON(http.StatusOK, models.OK("", gin.H{"id": id, "deleted": true}))
}

func parseID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		fail(ctx, "", apperrors.Validation("invalid id %q", ctx.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

func storeError(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.KindNoRatesAvailable, what+" "+id.String()+" not found", err)
	}
	return apperrors.Internal("failed to update "+what, err)
}
