package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
)

// Repository reads and flips account state on the local identity projection.
// The fraud gate suspends/reactivates accounts here; delivery matching reads
// the active-driver pool.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListActiveDrivers(ctx context.Context) ([]models.User, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.AccountStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListActiveDrivers(ctx context.Context) ([]models.User, error) {
	var drivers []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND status = ?", enums.RoleDriver, enums.AccountStatusActive).
		Order("created_at ASC").
		Find(&drivers).Error
	if err != nil {
		return nil, err
	}
	return drivers, nil
}

func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.AccountStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("status", status).Error
}
