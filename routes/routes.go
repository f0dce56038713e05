package routes

import (
	"courier-service/common/middleware"
	"courier-service/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterShippingRoutes sets up quoting and courier routes.
func RegisterShippingRoutes(r *gin.Engine, sc *controllers.ShippingController) {
	api := r.Group("/")
	api.Use(middleware.AuthMiddleware())

	api.POST("/rates/calculate", sc.CalculateRate)
	api.POST("/rates/compare", sc.CompareRates)

	api.GET("/shipments", sc.ListShipments)
	api.POST("/couriers/:courier/shipments", sc.BookShipment)
	api.GET("/couriers/:courier/shipments/:awb/track", sc.TrackShipment)
	api.POST("/couriers/:courier/shipments/:awb/cancel", sc.CancelShipment)
}

// RegisterAdminRoutes sets up partner, rate card and override management.
func RegisterAdminRoutes(r *gin.Engine, ac *controllers.AdminController) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminOnly())

	admin.PUT("/partners/:courier", ac.UpdatePartner)
	admin.PATCH("/partners/:courier/status", ac.SetPartnerStatus)
	admin.PUT("/partners/:courier/credentials", ac.RotateCredentials)
	admin.POST("/partners/:courier/invalidate", ac.InvalidatePartner)

	admin.GET("/rate-cards", ac.ListRateCards)
	admin.POST("/rate-cards/bulk", ac.ImportRateCards)
	admin.PATCH("/rate-cards/:id/deactivate", ac.DeactivateRateCard)
	admin.DELETE("/rate-cards/:id", ac.DeleteRateCard)

	admin.GET("/sellers/:seller_id/overrides", ac.ListOverrides)
	admin.PUT("/sellers/:seller_id/overrides", ac.UpsertOverride)
	admin.DELETE("/overrides/:id", ac.DeleteOverride)
}
