package fraud

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
)

// Repository persists fraud incidents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, incident *models.FraudIncident) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.FraudIncident, error)
	Update(ctx context.Context, incident *models.FraudIncident) error
	CountByActorAndStatus(ctx context.Context, actorID uuid.UUID, status enums.IncidentStatus) (int64, error)
	ListByStatus(ctx context.Context, status enums.IncidentStatus, limit int) ([]models.FraudIncident, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fraud repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, incident *models.FraudIncident) error {
	return r.db.WithContext(ctx).Create(incident).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FraudIncident, error) {
	var incident models.FraudIncident
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&incident).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *repository) Update(ctx context.Context, incident *models.FraudIncident) error {
	return r.db.WithContext(ctx).Save(incident).Error
}

func (r *repository) CountByActorAndStatus(ctx context.Context, actorID uuid.UUID, status enums.IncidentStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FraudIncident{}).
		Where("actor_id = ? AND status = ?", actorID, status).
		Count(&count).Error
	return count, err
}

func (r *repository) ListByStatus(ctx context.Context, status enums.IncidentStatus, limit int) ([]models.FraudIncident, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var incidents []models.FraudIncident
	if err := query.Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}
