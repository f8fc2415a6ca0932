package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
)

func newTestRecorder(t *testing.T) (Recorder, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "audit-test", Level: zerolog.ErrorLevel})
	rec, err := NewService(NewRepository(db), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return rec, db
}

func TestRecordPersistsEvent(t *testing.T) {
	rec, db := newTestRecorder(t)
	actor := uuid.New()

	rec.Record(context.Background(), Entry{
		EventType: "order.created",
		Category:  enums.AuditCategoryOrder,
		Severity:  enums.AuditSeverityInfo,
		ActorID:   &actor,
		TargetID:  "ORD-1",
		Data:      map[string]any{"total_amount": "50000.00"},
	})

	var events []models.AuditEvent
	if err := db.Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].EventType != "order.created" || !events[0].Success {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if events[0].TargetID == nil || *events[0].TargetID != "ORD-1" {
		t.Fatalf("target id not stored: %+v", events[0])
	}
}

func TestRecordNeverPanicsOnBadData(t *testing.T) {
	rec, db := newTestRecorder(t)

	// Channels are not JSON-serializable; the payload is dropped, the row kept.
	rec.Record(context.Background(), Entry{
		EventType: "payment.webhook",
		Category:  enums.AuditCategoryPayment,
		Data:      make(chan int),
	})

	var count int64
	if err := db.Model(&models.AuditEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected row despite bad payload, got %d", count)
	}
}

func TestRecordDefaultsUnknownSeverityToInfo(t *testing.T) {
	rec, db := newTestRecorder(t)

	rec.Record(context.Background(), Entry{
		EventType: "delivery.assigned",
		Category:  enums.AuditCategoryDelivery,
		Severity:  enums.AuditSeverity("urgent"),
	})

	var event models.AuditEvent
	if err := db.First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.Severity != enums.AuditSeverityInfo {
		t.Fatalf("expected severity info, got %q", event.Severity)
	}
}

func TestRecordIgnoresEmptyEventType(t *testing.T) {
	rec, db := newTestRecorder(t)
	rec.Record(context.Background(), Entry{})

	var count int64
	if err := db.Model(&models.AuditEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}
}
