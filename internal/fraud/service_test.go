package fraud

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/internal/audit"
	"github.com/sokohub-labs/sokohub-backend/internal/users"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type auditStub struct{}

func (auditStub) Record(context.Context, audit.Entry) {}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.FraudIncident{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(NewScorer(defaultThresholds()), NewRepository(db), users.NewRepository(db), gormTxRunner{db: db}, auditStub{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedUser(t *testing.T, db *gorm.DB, role enums.Role) *models.User {
	t.Helper()
	u := models.User{Role: role, Status: enums.AccountStatusActive, Name: "Wanjiku"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

func userStatus(t *testing.T, db *gorm.DB, id uuid.UUID) enums.AccountStatus {
	t.Helper()
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u.Status
}

func blockSignals(actorID uuid.UUID) Signals {
	return Signals{
		ActorID:        actorID,
		Amount:         types.MoneyFromInt(500000),
		RecentAttempts: 5,
		RecentFailures: 3,
		PriorIncidents: 1,
		AccountAgeDays: 365,
		IPAddress:      "196.200.1.10",
	}
}

func TestEvaluateAllowLeavesNoTrace(t *testing.T) {
	svc, db := newTestService(t)
	actor := seedUser(t, db, enums.RoleBuyer)

	assessment, err := svc.Evaluate(context.Background(), EvaluateInput{
		Signals: Signals{
			ActorID:           actor.ID,
			IPAddress:         "196.200.1.10",
			DeviceFingerprint: "fp",
			Amount:            types.MoneyFromInt(2000),
			AccountAgeDays:    365,
		},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if assessment.RecommendedAction != enums.FraudActionAllow {
		t.Fatalf("action = %s, want allow", assessment.RecommendedAction)
	}

	var count int64
	if err := db.Model(&models.FraudIncident{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("allow must not persist incidents, got %d", count)
	}
}

func TestEvaluateFlagPersistsIncident(t *testing.T) {
	svc, db := newTestService(t)
	actor := seedUser(t, db, enums.RoleBuyer)
	orderID := uuid.New()

	assessment, err := svc.Evaluate(context.Background(), EvaluateInput{
		Signals: Signals{
			ActorID:        actor.ID,
			Amount:         types.MoneyFromInt(100000),
			RecentAttempts: 5,
			AccountAgeDays: 365,
			DeviceFingerprint: "fp",
		},
		OrderID: &orderID,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if assessment.RecommendedAction != enums.FraudActionFlag {
		t.Fatalf("action = %s, want flag", assessment.RecommendedAction)
	}

	var incident models.FraudIncident
	if err := db.First(&incident).Error; err != nil {
		t.Fatalf("load incident: %v", err)
	}
	if incident.ActorID != actor.ID || incident.OrderID == nil || *incident.OrderID != orderID {
		t.Fatalf("unexpected incident %+v", incident)
	}
	if len(incident.TriggeredRules) == 0 {
		t.Fatal("triggered rules not stored")
	}
	if got := userStatus(t, db, actor.ID); got != enums.AccountStatusActive {
		t.Fatalf("flag must not suspend, status = %s", got)
	}
}

func TestEvaluateBlockSuspendsActor(t *testing.T) {
	svc, db := newTestService(t)
	actor := seedUser(t, db, enums.RoleBuyer)

	assessment, err := svc.Evaluate(context.Background(), EvaluateInput{Signals: blockSignals(actor.ID)})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if assessment.RecommendedAction != enums.FraudActionBlock {
		t.Fatalf("action = %s, want block", assessment.RecommendedAction)
	}
	if got := userStatus(t, db, actor.ID); got != enums.AccountStatusSuspended {
		t.Fatalf("status = %s, want suspended", got)
	}
}

func TestEvaluateBlockSkipsSuspensionWithConfirmedIncident(t *testing.T) {
	svc, db := newTestService(t)
	actor := seedUser(t, db, enums.RoleBuyer)

	prior := models.FraudIncident{
		ActorID:           actor.ID,
		RiskScore:         90,
		RecommendedAction: enums.FraudActionBlock,
		Status:            enums.IncidentStatusConfirmed,
	}
	if err := db.Create(&prior).Error; err != nil {
		t.Fatalf("seed prior incident: %v", err)
	}

	if _, err := svc.Evaluate(context.Background(), EvaluateInput{Signals: blockSignals(actor.ID)}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := userStatus(t, db, actor.ID); got != enums.AccountStatusActive {
		t.Fatalf("status = %s, want active (already-confirmed actor handled elsewhere)", got)
	}
}

func TestResolveFalsePositiveReactivates(t *testing.T) {
	svc, db := newTestService(t)
	actor := seedUser(t, db, enums.RoleBuyer)
	admin := seedUser(t, db, enums.RoleAdmin)

	if _, err := svc.Evaluate(context.Background(), EvaluateInput{Signals: blockSignals(actor.ID)}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var incident models.FraudIncident
	if err := db.First(&incident, "actor_id = ?", actor.ID).Error; err != nil {
		t.Fatalf("load incident: %v", err)
	}

	resolved, err := svc.ResolveIncident(context.Background(), ResolveInput{
		IncidentID: incident.ID,
		Resolution: enums.IncidentStatusFalsePositive,
		ResolvedBy: admin.ID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != enums.IncidentStatusFalsePositive || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected incident %+v", resolved)
	}
	if got := userStatus(t, db, actor.ID); got != enums.AccountStatusActive {
		t.Fatalf("status = %s, want active", got)
	}
}

func TestResolveFalsePositiveKeepsSuspensionWithOtherConfirmed(t *testing.T) {
	svc, db := newTestService(t)
	actor := seedUser(t, db, enums.RoleBuyer)
	admin := seedUser(t, db, enums.RoleAdmin)

	confirmed := models.FraudIncident{
		ActorID:           actor.ID,
		RiskScore:         85,
		RecommendedAction: enums.FraudActionBlock,
		Status:            enums.IncidentStatusConfirmed,
	}
	if err := db.Create(&confirmed).Error; err != nil {
		t.Fatalf("seed confirmed: %v", err)
	}
	pending := models.FraudIncident{
		ActorID:           actor.ID,
		RiskScore:         85,
		RecommendedAction: enums.FraudActionBlock,
		Status:            enums.IncidentStatusPending,
	}
	if err := db.Create(&pending).Error; err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	if err := db.Model(&models.User{}).Where("id = ?", actor.ID).Update("status", enums.AccountStatusSuspended).Error; err != nil {
		t.Fatalf("suspend: %v", err)
	}

	if _, err := svc.ResolveIncident(context.Background(), ResolveInput{
		IncidentID: pending.ID,
		Resolution: enums.IncidentStatusFalsePositive,
		ResolvedBy: admin.ID,
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := userStatus(t, db, actor.ID); got != enums.AccountStatusSuspended {
		t.Fatalf("status = %s, want suspended (confirmed incident remains)", got)
	}
}

func TestResolveTwiceConflicts(t *testing.T) {
	svc, db := newTestService(t)
	actor := seedUser(t, db, enums.RoleBuyer)
	admin := seedUser(t, db, enums.RoleAdmin)

	incident := models.FraudIncident{
		ActorID:           actor.ID,
		RiskScore:         50,
		RecommendedAction: enums.FraudActionFlag,
		Status:            enums.IncidentStatusPending,
	}
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("seed incident: %v", err)
	}

	if _, err := svc.ResolveIncident(context.Background(), ResolveInput{
		IncidentID: incident.ID,
		Resolution: enums.IncidentStatusConfirmed,
		ResolvedBy: admin.ID,
	}); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	_, err := svc.ResolveIncident(context.Background(), ResolveInput{
		IncidentID: incident.ID,
		Resolution: enums.IncidentStatusFalsePositive,
		ResolvedBy: admin.ID,
	})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("error code = %v, want state conflict", pkgerrors.CodeOf(err))
	}
}
