package repository

import (
	"context"
	"errors"
	"time"

	"courier-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOrderReserved is returned by Reserve when the order already has a live
// shipment or a booking in flight.
var ErrOrderReserved = errors.New("order already has a live shipment")

// ReservationLease is how long a pending reservation blocks other bookings
// of the same order. It outlives any courier call.
const ReservationLease = 5 * time.Minute

// ShipmentRepository stores shipments booked through this service.
type ShipmentRepository interface {
	Reserve(ctx context.Context, shipment *models.Shipment) error
	Confirm(ctx context.Context, shipment *models.Shipment) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Shipment, error)
	FindByAWB(ctx context.Context, courier, awb string) (*models.Shipment, error)
	Update(ctx context.Context, shipment *models.Shipment) error
	FindBySeller(ctx context.Context, sellerID string, page, limit int) ([]models.Shipment, int64, error)
}

// mutableShipmentColumns are the only columns a courier callback or tracking
// poll may change after booking.
var mutableShipmentColumns = []string{"status", "tracking_url", "label_url", "updated_at"}

// confirmColumns are written once the courier has issued the AWB.
var confirmColumns = []string{"awb", "status", "tracking_url", "label_url", "updated_at"}

// rebookColumns are rewritten when a cancelled or failed order is reserved
// again, possibly with another courier.
var rebookColumns = []string{
	"seller_id", "courier", "awb", "tracking_url", "label_url", "mode", "payment_type",
	"cod_amount", "status", "weight_kg", "pickup_json", "delivery_json", "updated_at",
}

type GormShipmentRepository struct {
	db *gorm.DB
}

func NewGormShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// Reserve claims the order for shipment, which should be pending. It inserts
// a row, or takes over the order's row when that one is rebookable or holds
// an expired reservation. The order row is locked for the check so two
// bookings cannot both claim it.
func (r *GormShipmentRepository) Reserve(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Shipment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", shipment.OrderID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(shipment)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrOrderReserved
			}
			return nil
		}
		if err != nil {
			return err
		}

		expired := existing.Status == models.ShipmentStatusPending &&
			existing.UpdatedAt.Before(time.Now().Add(-ReservationLease))
		if !existing.Rebookable() && !expired {
			return ErrOrderReserved
		}
		shipment.ID = existing.ID
		shipment.CreatedAt = existing.CreatedAt
		return tx.Model(shipment).Select(rebookColumns).Updates(shipment).Error
	})
}

// Confirm records the AWB on a pending reservation.
func (r *GormShipmentRepository) Confirm(ctx context.Context, shipment *models.Shipment) error {
	res := r.db.WithContext(ctx).
		Model(shipment).
		Where("status = ?", models.ShipmentStatusPending).
		Select(confirmColumns).
		Updates(shipment)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByOrderID backs booking idempotency: one shipment row per order.
func (r *GormShipmentRepository) FindByOrderID(ctx context.Context, orderID string) (*models.Shipment, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

// FindByAWB looks a shipment up by the courier-issued waybill. AWBs are only
// unique per courier.
func (r *GormShipmentRepository) FindByAWB(ctx context.Context, courier, awb string) (*models.Shipment, error) {
	return r.first(ctx, "courier = ? AND awb = ?", courier, awb)
}

func (r *GormShipmentRepository) first(ctx context.Context, cond string, args ...any) (*models.Shipment, error) {
	s := new(models.Shipment)
	if err := r.db.WithContext(ctx).Where(cond, args...).First(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// Update persists status changes. Order, seller and courier identity are
// fixed at booking and never rewritten here.
func (r *GormShipmentRepository) Update(ctx context.Context, shipment *models.Shipment) error {
	res := r.db.WithContext(ctx).
		Model(shipment).
		Select(mutableShipmentColumns).
		Updates(shipment)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindBySeller pages a seller's shipments, newest first.
func (r *GormShipmentRepository) FindBySeller(ctx context.Context, sellerID string, page, limit int) ([]models.Shipment, int64, error) {
	bySeller := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Shipment{}).Where("seller_id = ?", sellerID)
	}

	var total int64
	if err := bySeller().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.Shipment{}, 0, nil
	}

	page = max(page, 1)
	var shipments []models.Shipment
	err := bySeller().
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&shipments).Error
	if err != nil {
		return nil, 0, err
	}
	return shipments, total, nil
}
