package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/pagination"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	Update(ctx context.Context, deliveryID uuid.UUID, updates map[string]any) error
	Claim(ctx context.Context, deliveryID, driverID uuid.UUID, fee, earnings types.Money, at time.Time) (bool, error)
	ListUnassigned(ctx context.Context, limit int) ([]models.Delivery, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*DeliveryList, error)
	BusyDriverIDs(ctx context.Context) ([]uuid.UUID, error)
}

// DeliveryList is one cursor page of a driver's deliveries.
type DeliveryList struct {
	Deliveries []models.Delivery
	NextCursor string
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) Update(ctx context.Context, deliveryID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		Updates(updates).Error
}

// Claim assigns a driver with a single conditional update so that two racing
// assignments have exactly one winner.
func (r *repository) Claim(ctx context.Context, deliveryID, driverID uuid.UUID, fee, earnings types.Money, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE deliveries
		SET driver_id = ?, status = ?, delivery_fee = ?, driver_earnings = ?, assigned_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND driver_id IS NULL`,
		driverID, enums.DeliveryStatusAssigned, fee, earnings, at, at,
		deliveryID, enums.DeliveryStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListUnassigned(ctx context.Context, limit int) ([]models.Delivery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var deliveries []models.Delivery
	err := r.db.WithContext(ctx).
		Where("status = ? AND driver_id IS NULL", enums.DeliveryStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *repository) ListByDriver(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*DeliveryList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var deliveries []models.Delivery
	if err := query.Find(&deliveries).Error; err != nil {
		return nil, err
	}

	list := &DeliveryList{Deliveries: deliveries}
	limit := pagination.NormalizeLimit(params.Limit)
	if len(deliveries) > limit {
		list.Deliveries = deliveries[:limit]
		last := list.Deliveries[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

// BusyDriverIDs returns drivers currently holding a non-terminal delivery.
func (r *repository) BusyDriverIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Distinct("driver_id").
		Where("driver_id IS NOT NULL AND status IN (?, ?, ?)",
			enums.DeliveryStatusAssigned, enums.DeliveryStatusPickedUp, enums.DeliveryStatusInTransit).
		Pluck("driver_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
