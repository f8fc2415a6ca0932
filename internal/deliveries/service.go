package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/internal/audit"
	"github.com/sokohub-labs/sokohub-backend/internal/users"
	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/pagination"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderCompleter is the slice of the order service a landed delivery needs.
type orderCompleter interface {
	MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Actor identifies the caller for role-scoped delivery operations.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Proof carries the optional proof-of-delivery fields.
type Proof struct {
	Signature string
	PhotoURL  string
	Notes     string
}

// AssignedPair records one successful auto-match assignment.
type AssignedPair struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
	DriverID   uuid.UUID `json:"driver_id"`
}

// AutoMatchReport is the outcome of one batch pass. Failed aggregates the
// per-pair errors that did not abort the batch.
type AutoMatchReport struct {
	Assigned []AssignedPair
	Failed   error
}

type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
	Assign(ctx context.Context, actor Actor, deliveryID, driverID uuid.UUID) (*models.Delivery, error)
	Accept(ctx context.Context, driverID, deliveryID uuid.UUID) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, actor Actor, deliveryID uuid.UUID, target enums.DeliveryStatus, proof Proof) (*models.Delivery, error)
	GetByOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Delivery, error)
	ListDriverDeliveries(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*DeliveryList, error)
	AutoMatch(ctx context.Context) (*AutoMatchReport, error)
}

type service struct {
	repo    Repository
	users   users.Repository
	orders  orderCompleter
	tx      txRunner
	audit   audit.Recorder
	logg    *logger.Logger
	baseFee types.Money
	share   int
}

func NewService(
	repo Repository,
	userRepo users.Repository,
	orderSvc orderCompleter,
	tx txRunner,
	auditor audit.Recorder,
	logg *logger.Logger,
	cfg config.DeliveryConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order completer required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseFee, err := types.MoneyFromString(cfg.BaseFee)
	if err != nil {
		return nil, fmt.Errorf("delivery base fee: %w", err)
	}
	if cfg.DriverSharePercent < 0 || cfg.DriverSharePercent > 100 {
		return nil, fmt.Errorf("driver share percent out of range: %d", cfg.DriverSharePercent)
	}
	return &service{
		repo:    repo,
		users:   userRepo,
		orders:  orderSvc,
		tx:      tx,
		audit:   auditor,
		logg:    logg,
		baseFee: baseFee,
		share:   cfg.DriverSharePercent,
	}, nil
}

// CreateForOrder spawns the delivery leg for a paid (or cash-on-delivery)
// order. One delivery per order; a second spawn is a no-op.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	if _, err := repo.FindByOrder(ctx, order.ID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing delivery")
	}

	delivery := &models.Delivery{
		OrderID:         order.ID,
		Status:          enums.DeliveryStatusPending,
		DeliveryAddress: order.ShippingAddress,
		DeliveryFee:     s.baseFee,
	}
	if _, err := repo.Create(ctx, delivery); err != nil {
		// A concurrent spawn may have won the unique order_id race.
		if _, ferr := repo.FindByOrder(ctx, order.ID); ferr == nil {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
	}

	s.audit.Record(ctx, audit.Entry{
		EventType: "delivery.created",
		Category:  enums.AuditCategoryDelivery,
		Severity:  enums.AuditSeverityInfo,
		TargetID:  delivery.ID.String(),
		Data:      map[string]any{"order_id": order.ID.String()},
	})
	return nil
}

// Assign pairs a pending delivery with a driver. Admin operation; drivers
// claim work for themselves through Accept.
func (s *service) Assign(ctx context.Context, actor Actor, deliveryID, driverID uuid.UUID) (*models.Delivery, error) {
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can assign deliveries")
	}
	return s.claim(ctx, &actor.UserID, deliveryID, driverID)
}

// Accept lets a driver claim a pending delivery for themselves.
func (s *service) Accept(ctx context.Context, driverID, deliveryID uuid.UUID) (*models.Delivery, error) {
	return s.claim(ctx, &driverID, deliveryID, driverID)
}

func (s *service) claim(ctx context.Context, actorID *uuid.UUID, deliveryID, driverID uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.loadDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.DriverID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "delivery is already assigned")
	}
	if delivery.Status != enums.DeliveryStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery is not available for assignment").
			WithDetails(map[string]any{"status": delivery.Status.String()})
	}

	driver, err := s.users.FindByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	if driver.Role != enums.RoleDriver || driver.Status != enums.AccountStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "driver is not available")
	}

	fee := delivery.DeliveryFee
	if fee.IsZero() {
		fee = s.baseFee
	}
	earnings, _ := types.SplitPercent(fee, s.share)

	now := time.Now().UTC()
	claimed, err := s.repo.Claim(ctx, deliveryID, driverID, fee, earnings, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim delivery")
	}
	if !claimed {
		// Lost the race; reload to report which way.
		current, rerr := s.loadDelivery(ctx, deliveryID)
		if rerr != nil {
			return nil, rerr
		}
		if current.DriverID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "delivery is already assigned")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery is not available for assignment").
			WithDetails(map[string]any{"status": current.Status.String()})
	}

	delivery.DriverID = &driverID
	delivery.Status = enums.DeliveryStatusAssigned
	delivery.DeliveryFee = fee
	delivery.DriverEarnings = earnings
	delivery.AssignedAt = &now

	s.audit.Record(ctx, audit.Entry{
		EventType: "delivery.assigned",
		Category:  enums.AuditCategoryDelivery,
		Severity:  enums.AuditSeverityInfo,
		ActorID:   actorID,
		TargetID:  delivery.ID.String(),
		Data: map[string]any{
			"driver_id":       driverID.String(),
			"driver_earnings": earnings.StringFixed(2),
		},
	})
	return delivery, nil
}

// UpdateStatus advances the delivery state machine. picked_up stamps the
// pickup time; delivered stamps the delivery time, stores proof, and
// completes the owning order in the same transaction; failed clears the
// driver so the delivery can be re-queued.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, deliveryID uuid.UUID, target enums.DeliveryStatus, proof Proof) (*models.Delivery, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}
	if target == enums.DeliveryStatusAssigned {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the assignment operation to assign a driver")
	}

	delivery, err := s.loadDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case enums.RoleAdmin:
	case enums.RoleDriver:
		if delivery.DriverID == nil || *delivery.DriverID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery is not assigned to caller")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver or an admin can update a delivery")
	}
	if target == enums.DeliveryStatusPending && actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can re-queue a failed delivery")
	}

	if !CanTransition(delivery.Status, target) {
		return nil, invalidTransition(delivery.Status, target)
	}

	now := time.Now().UTC()
	updates := map[string]any{"status": target}
	switch target {
	case enums.DeliveryStatusPickedUp:
		updates["pickup_time"] = now
		delivery.PickupTime = &now
	case enums.DeliveryStatusDelivered:
		updates["delivery_time"] = now
		delivery.DeliveryTime = &now
		if proof.Signature != "" {
			updates["proof_signature"] = proof.Signature
			delivery.ProofSignature = &proof.Signature
		}
		if proof.PhotoURL != "" {
			updates["proof_photo_url"] = proof.PhotoURL
			delivery.ProofPhotoURL = &proof.PhotoURL
		}
		if proof.Notes != "" {
			updates["proof_notes"] = proof.Notes
			delivery.ProofNotes = &proof.Notes
		}
	case enums.DeliveryStatusFailed, enums.DeliveryStatusPending:
		updates["driver_id"] = nil
		updates["assigned_at"] = nil
		delivery.DriverID = nil
		delivery.AssignedAt = nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, delivery.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery")
		}
		if target == enums.DeliveryStatusDelivered {
			return s.orders.MarkDelivered(ctx, tx, delivery.OrderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	delivery.Status = target

	severity := enums.AuditSeverityInfo
	if target == enums.DeliveryStatusFailed {
		severity = enums.AuditSeverityWarning
	}
	s.audit.Record(ctx, audit.Entry{
		EventType: "delivery." + target.String(),
		Category:  enums.AuditCategoryDelivery,
		Severity:  severity,
		ActorID:   &actor.UserID,
		TargetID:  delivery.ID.String(),
		Data:      map[string]any{"order_id": delivery.OrderID.String()},
	})
	return delivery, nil
}

func (s *service) GetByOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if actor.Role == enums.RoleDriver && (delivery.DriverID == nil || *delivery.DriverID != actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery is not assigned to caller")
	}
	return delivery, nil
}

func (s *service) ListDriverDeliveries(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*DeliveryList, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	list, err := s.repo.ListByDriver(ctx, driverID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
	}
	return list, nil
}

// AutoMatch pairs unassigned pending deliveries with idle active drivers by
// round-robin over both snapshots. Per-pair failures are collected, never
// aborting the rest of the batch.
func (s *service) AutoMatch(ctx context.Context) (*AutoMatchReport, error) {
	pending, err := s.repo.ListUnassigned(ctx, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unassigned deliveries")
	}
	drivers, err := s.users.ListActiveDrivers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active drivers")
	}
	busy, err := s.repo.BusyDriverIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list busy drivers")
	}

	busySet := make(map[uuid.UUID]struct{}, len(busy))
	for _, id := range busy {
		busySet[id] = struct{}{}
	}
	idle := drivers[:0:0]
	for _, driver := range drivers {
		if _, taken := busySet[driver.ID]; !taken {
			idle = append(idle, driver)
		}
	}

	report := &AutoMatchReport{}
	for i, delivery := range pending {
		if i >= len(idle) {
			break
		}
		driver := idle[i]
		if _, err := s.claim(ctx, nil, delivery.ID, driver.ID); err != nil {
			// e.g. the driver went busy or the delivery got claimed mid-batch.
			report.Failed = multierr.Append(report.Failed,
				fmt.Errorf("delivery %s → driver %s: %w", delivery.ID, driver.ID, err))
			continue
		}
		report.Assigned = append(report.Assigned, AssignedPair{DeliveryID: delivery.ID, DriverID: driver.ID})
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"pending":  len(pending),
		"idle":     len(idle),
		"assigned": len(report.Assigned),
		"failed":   len(multierr.Errors(report.Failed)),
	}), "auto-match pass finished")
	return report, nil
}

func (s *service) loadDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	delivery, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}
