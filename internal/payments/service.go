package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/internal/audit"
	"github.com/sokohub-labs/sokohub-backend/internal/fraud"
	"github.com/sokohub-labs/sokohub-backend/internal/orders"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/momo"
)

const webhookGuardTTL = 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fraudGate interface {
	Evaluate(ctx context.Context, input fraud.EvaluateInput) (*fraud.Assessment, error)
}

// DeliverySpawner creates the delivery for a freshly paid order, inside the
// settlement transaction. Spawning twice for one order must be a no-op.
type DeliverySpawner interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service is the settlement engine: initiation with fraud gating and
// per-method dispatch, webhook/verify reconciliation, offline settlement,
// refunds, and stale-payment cleanup.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	VerifyPayment(ctx context.Context, reference string) (*models.Payment, error)
	ConfirmOfflineSettlement(ctx context.Context, actor Actor, reference string) (*models.Payment, error)
	Refund(ctx context.Context, actor Actor, reference string) (*models.Payment, error)
	GetByReference(ctx context.Context, actor Actor, reference string) (*models.Payment, error)
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type service struct {
	repo    Repository
	orders  orders.Repository
	users   userLookup
	gateway Gateway
	fraud   fraudGate
	spawner DeliverySpawner
	guard   idempotencyStore
	tx      txRunner
	audit   audit.Recorder
	logg    *logger.Logger
}

// NewService builds the settlement engine. The idempotency guard may be nil
// in tests; the database terminal-state check stays authoritative either way.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	users userLookup,
	gateway Gateway,
	fraudGate fraudGate,
	spawner DeliverySpawner,
	guard idempotencyStore,
	tx txRunner,
	auditor audit.Recorder,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if fraudGate == nil {
		return nil, fmt.Errorf("fraud gate required")
	}
	if spawner == nil {
		return nil, fmt.Errorf("delivery spawner required")
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
	return &service{
		repo:    repo,
		orders:  ordersRepo,
		users:   users,
		gateway: gateway,
		fraud:   fraudGate,
		spawner: spawner,
		guard:   guard,
		tx:      tx,
		audit:   auditor,
		logg:    logg,
	}, nil
}

// paymentTransitions is the closed set of legal payment status edges.
var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending:    {enums.PaymentStatusProcessing, enums.PaymentStatusFailed, enums.PaymentStatusCancelled},
	enums.PaymentStatusProcessing: {enums.PaymentStatusCompleted, enums.PaymentStatusFailed, enums.PaymentStatusCancelled},
	enums.PaymentStatusCompleted:  {enums.PaymentStatusRefunded},
}

// CanTransition reports whether from→to is a legal payment status edge.
func CanTransition(from, to enums.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func newPaymentReference() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

// Initiate begins settlement for an order: rejects already-paid orders,
// consults the fraud gate, then dispatches to the method strategy.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if input.Actor.Role != enums.RoleAdmin && order.BuyerID != input.Actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	if order.PaymentStatus == enums.OrderPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	if open, err := s.repo.FindOpenByOrder(ctx, order.ID); err == nil && open != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a settlement in flight").
			WithDetails(map[string]any{"reference": open.Reference})
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open payments")
	}

	strategy, err := s.strategyFor(input.Method)
	if err != nil {
		return nil, err
	}
	if err := strategy.validate(input.Customer); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:   order.ID,
		Reference: newPaymentReference(),
		Method:    input.Method,
		Status:    enums.PaymentStatusPending,
		Amount:    order.TotalAmount,
	}
	if _, err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}

	if err := s.gateCheck(ctx, order, payment, input); err != nil {
		return nil, err
	}

	result, err := strategy.initiate(ctx, payment, input.Customer, input.OTPCode)
	if result != nil {
		s.applyInitiation(ctx, payment, result)
	}
	if err != nil {
		return nil, err
	}

	// Cash settles on the doorstep, so the delivery leg starts now instead
	// of waiting for a paid event that only the delivery can produce.
	if input.Method == enums.PaymentMethodCashOnDelivery && payment.Status == enums.PaymentStatusProcessing {
		if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.spawner.CreateForOrder(ctx, tx, order)
		}); err != nil {
			return nil, err
		}
	}

	s.audit.Record(ctx, audit.Entry{
		EventType: "payment.initiated",
		Category:  enums.AuditCategoryPayment,
		Severity:  enums.AuditSeverityInfo,
		ActorID:   &input.Actor.UserID,
		TargetID:  payment.Reference,
		Data: map[string]any{
			"order_id": order.ID.String(),
			"method":   input.Method.String(),
			"status":   payment.Status.String(),
		},
	})
	return &InitiateResult{Payment: payment, PaymentURL: result.paymentURL}, nil
}

// gateCheck runs the fraud gate; a block verdict fails the payment before it
// ever reaches the gateway.
func (s *service) gateCheck(ctx context.Context, order *models.Order, payment *models.Payment, input InitiateInput) error {
	since := time.Now().Add(-1 * time.Hour)
	attempts, err := s.repo.CountRecentByOrderBuyer(ctx, order.BuyerID, since)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count recent attempts")
	}
	failures, err := s.repo.CountRecentFailedByOrderBuyer(ctx, order.BuyerID, since)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count recent failures")
	}

	// -1 means unknown; the scorer only penalizes known-young accounts.
	accountAgeDays := -1
	if buyer, berr := s.users.FindByID(ctx, order.BuyerID); berr == nil {
		accountAgeDays = int(time.Since(buyer.CreatedAt).Hours() / 24)
	}

	assessment, err := s.fraud.Evaluate(ctx, fraud.EvaluateInput{
		Signals: fraud.Signals{
			ActorID:           input.Actor.UserID,
			IPAddress:         input.IPAddress,
			DeviceFingerprint: input.DeviceFingerprint,
			Amount:            payment.Amount,
			RecentAttempts:    int(attempts),
			RecentFailures:    int(failures),
			AccountAgeDays:    accountAgeDays,
		},
		OrderID:   &order.ID,
		PaymentID: &payment.ID,
	})
	if err != nil {
		return err
	}
	if assessment.RecommendedAction != enums.FraudActionBlock {
		return nil
	}

	reason := "fraud_detected"
	if uerr := s.repo.Update(ctx, payment.ID, map[string]any{
		"status":        enums.PaymentStatusFailed,
		"error_details": reason,
	}); uerr != nil {
		s.logg.Error(ctx, "marking fraud-blocked payment failed", uerr)
	}
	payment.Status = enums.PaymentStatusFailed
	payment.ErrorDetails = &reason
	return pkgerrors.New(pkgerrors.CodeFraudBlocked, "payment blocked by fraud gate").
		WithDetails(map[string]any{"risk_score": assessment.RiskScore})
}

func (s *service) applyInitiation(ctx context.Context, payment *models.Payment, result *initiation) {
	updates := map[string]any{"status": result.status}
	if result.transactionID != "" {
		updates["external_transaction_id"] = result.transactionID
		payment.ExternalTransactionID = &result.transactionID
	}
	if len(result.gatewayBody) > 0 {
		updates["gateway_response"] = result.gatewayBody
		payment.GatewayResponse = result.gatewayBody
	}
	if result.errorMessage != "" {
		updates["error_details"] = result.errorMessage
		payment.ErrorDetails = &result.errorMessage
	}
	if err := s.repo.Update(ctx, payment.ID, updates); err != nil {
		s.logg.Error(ctx, "persisting initiation outcome", err)
	}
	payment.Status = result.status
}

// HandleWebhook applies a gateway notification. Signature first, then the
// idempotency guard, then the terminal-state transition in one transaction.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := s.verifySignature(ctx, payload, signature); err != nil {
		return err
	}

	var note WebhookNotification
	if err := json.Unmarshal(payload, &note); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	if note.Reference == "" || note.Status == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing reference or status")
	}

	target, err := targetStatusFor(note.Status)
	if err != nil {
		return err
	}

	var guardKey string
	if s.guard != nil {
		key := s.guard.IdempotencyKey("webhook", note.Reference+":"+note.Status)
		fresh, gerr := s.guard.SetNX(ctx, key, "1", webhookGuardTTL)
		if gerr != nil {
			// The database check below is authoritative; the guard only
			// shortcuts obvious duplicates.
			s.logg.Warn(ctx, "webhook idempotency guard unavailable: "+gerr.Error())
		} else if !fresh {
			s.logg.Info(s.logg.WithPaymentReference(ctx, note.Reference), "duplicate webhook suppressed")
			return nil
		} else {
			guardKey = key
		}
	}

	_, applied, err := s.applyEvent(ctx, note.Reference, terminalEvent{
		target:        target,
		transactionID: note.TransactionID,
		errorMessage:  note.ErrorMessage,
		rawResponse:   json.RawMessage(payload),
		source:        "webhook",
	})
	if err != nil {
		// Release the guard so the gateway's retry is not swallowed as a
		// duplicate of an application that never happened.
		if guardKey != "" {
			if derr := s.guard.Del(ctx, guardKey); derr != nil {
				s.logg.Warn(ctx, "webhook idempotency guard release failed: "+derr.Error())
			}
		}
		return err
	}
	if !applied {
		s.logg.Info(s.logg.WithPaymentReference(ctx, note.Reference), "webhook was a no-op")
	}
	return nil
}

// VerifyPayment pulls the gateway state for a reference and applies it with
// the same idempotency guarantees as the webhook path.
func (s *service) VerifyPayment(ctx context.Context, reference string) (*models.Payment, error) {
	payment, err := s.loadByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return payment, nil
	}

	resp, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway verification failed")
	}

	var target enums.PaymentStatus
	switch resp.Status {
	case momo.VerifyStatusCompleted:
		target = enums.PaymentStatusCompleted
	case momo.VerifyStatusFailed:
		target = enums.PaymentStatusFailed
	default:
		// Still pending at the gateway; nothing to apply.
		return payment, nil
	}

	updated, _, err := s.applyEvent(ctx, reference, terminalEvent{
		target:        target,
		transactionID: resp.TransactionID,
		errorMessage:  resp.ErrorMessage,
		rawResponse:   resp.Raw,
		source:        "verify",
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ConfirmOfflineSettlement completes a cash-on-delivery or bank-transfer
// payment. COD is confirmed by the collecting driver (or an admin); bank
// transfers only by an admin.
func (s *service) ConfirmOfflineSettlement(ctx context.Context, actor Actor, reference string) (*models.Payment, error) {
	payment, err := s.loadByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	switch payment.Method {
	case enums.PaymentMethodCashOnDelivery:
		if actor.Role != enums.RoleDriver && actor.Role != enums.RoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the collecting driver or an admin can confirm cash settlement")
		}
	case enums.PaymentMethodBankTransfer:
		if actor.Role != enums.RoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can confirm a bank transfer")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method settles through the gateway")
	}

	updated, applied, err := s.applyEvent(ctx, reference, terminalEvent{
		target: enums.PaymentStatusCompleted,
		source: "offline:" + actor.Role.String(),
	})
	if err != nil {
		return nil, err
	}
	if !applied && updated.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment cannot be settled in its current state").
			WithDetails(map[string]any{"status": updated.Status.String()})
	}
	return updated, nil
}

// Refund moves a completed payment to refunded, once, and mirrors the state
// onto the order. Admin only.
func (s *service) Refund(ctx context.Context, actor Actor, reference string) (*models.Payment, error) {
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can refund")
	}

	var refunded *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByReference(ctx, reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded").
				WithDetails(map[string]any{"status": payment.Status.String()})
		}
		if err := repo.Update(ctx, payment.ID, map[string]any{"status": enums.PaymentStatusRefunded}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if err := s.orders.WithTx(tx).Update(ctx, payment.OrderID, map[string]any{
			"payment_status": enums.OrderPaymentStatusRefunded,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
		}
		payment.Status = enums.PaymentStatusRefunded
		refunded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		EventType: "payment.refunded",
		Category:  enums.AuditCategoryPayment,
		Severity:  enums.AuditSeverityWarning,
		ActorID:   &actor.UserID,
		TargetID:  reference,
	})
	return refunded, nil
}

func (s *service) GetByReference(ctx context.Context, actor Actor, reference string) (*models.Payment, error) {
	payment, err := s.loadByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if actor.Role == enums.RoleAdmin {
		return payment, nil
	}
	order, err := s.orders.FindByID(ctx, payment.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to caller")
	}
	return payment, nil
}

// ExpireStalePending cancels pending payments older than the TTL. Invoked by
// the scheduled cleanup job; each payment fails independently.
func (s *service) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	stale, err := s.repo.ListStalePending(ctx, cutoff, 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payments")
	}

	expired := 0
	for _, payment := range stale {
		_, applied, err := s.applyEvent(ctx, payment.Reference, terminalEvent{
			target:       enums.PaymentStatusCancelled,
			errorMessage: "payment expired before settlement",
			source:       "cleanup",
		})
		if err != nil {
			s.logg.Error(s.logg.WithPaymentReference(ctx, payment.Reference), "expiring stale payment", err)
			continue
		}
		if applied {
			expired++
		}
	}
	return expired, nil
}

// applyEvent is the single reconciliation path: it applies a terminal status
// to the payment named by reference exactly once, flipping the order to paid
// and spawning the delivery on completion.
func (s *service) applyEvent(ctx context.Context, reference string, ev terminalEvent) (*models.Payment, bool, error) {
	var (
		payment *models.Payment
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByReference(ctx, reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").
					WithDetails(map[string]any{"reference": reference})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		payment = found

		if payment.Status == ev.target {
			// Terminal state already applied; redelivery is a no-op.
			return nil
		}
		if payment.Status.IsTerminal() {
			s.logg.Warn(s.logg.WithPaymentReference(ctx, reference),
				fmt.Sprintf("ignoring %s from %s: payment already %s", ev.target, ev.source, payment.Status))
			return nil
		}
		if !CanTransition(payment.Status, ev.target) {
			s.logg.Warn(s.logg.WithPaymentReference(ctx, reference),
				fmt.Sprintf("ignoring illegal %s → %s from %s", payment.Status, ev.target, ev.source))
			return nil
		}

		if ev.target == enums.PaymentStatusCompleted {
			return s.applyCompletion(ctx, tx, repo, payment, ev, &applied)
		}

		updates := map[string]any{"status": ev.target}
		if ev.errorMessage != "" {
			updates["error_details"] = ev.errorMessage
			payment.ErrorDetails = &ev.errorMessage
		}
		if len(ev.rawResponse) > 0 {
			updates["gateway_response"] = ev.rawResponse
			payment.GatewayResponse = ev.rawResponse
		}
		if err := repo.Update(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		payment.Status = ev.target
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if applied {
		s.audit.Record(ctx, audit.Entry{
			EventType: "payment." + payment.Status.String(),
			Category:  enums.AuditCategoryPayment,
			Severity:  enums.AuditSeverityInfo,
			TargetID:  reference,
			Data:      map[string]any{"source": ev.source},
		})
	}
	return payment, applied, nil
}

// applyCompletion settles a payment: a completion for a cancelled order must
// not revive it, so the payment lands in cancelled instead.
func (s *service) applyCompletion(ctx context.Context, tx *gorm.DB, repo Repository, payment *models.Payment, ev terminalEvent, applied *bool) error {
	ordersRepo := s.orders.WithTx(tx)
	order, err := ordersRepo.FindByID(ctx, payment.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status == enums.OrderStatusCancelled {
		s.logg.Warn(s.logg.WithPaymentReference(ctx, payment.Reference),
			"completion arrived for a cancelled order, closing the payment instead")
		if err := repo.Update(ctx, payment.ID, map[string]any{"status": enums.PaymentStatusCancelled}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close payment for cancelled order")
		}
		payment.Status = enums.PaymentStatusCancelled
		return nil
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":       enums.PaymentStatusCompleted,
		"completed_at": now,
	}
	if ev.transactionID != "" {
		updates["external_transaction_id"] = ev.transactionID
		payment.ExternalTransactionID = &ev.transactionID
	}
	if len(ev.rawResponse) > 0 {
		updates["gateway_response"] = ev.rawResponse
		payment.GatewayResponse = ev.rawResponse
	}
	if err := repo.Update(ctx, payment.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
	}
	payment.Status = enums.PaymentStatusCompleted
	payment.CompletedAt = &now

	if err := ordersRepo.Update(ctx, order.ID, map[string]any{
		"payment_status":    enums.OrderPaymentStatusPaid,
		"payment_reference": payment.Reference,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	order.PaymentStatus = enums.OrderPaymentStatusPaid

	if err := s.spawner.CreateForOrder(ctx, tx, order); err != nil {
		return err
	}
	*applied = true
	return nil
}

func (s *service) loadByReference(ctx context.Context, reference string) (*models.Payment, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// verifySignature checks the HMAC-SHA256 hex signature of the raw payload.
// An empty configured secret is the development-only bypass and is loudly
// flagged as insecure.
func (s *service) verifySignature(ctx context.Context, payload []byte, signature string) error {
	secret := s.gateway.WebhookSecret()
	if secret == "" {
		s.logg.Warn(ctx, "webhook secret not configured, accepting unsigned webhook (INSECURE, dev only)")
		return nil
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(expected, provided) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}
	return nil
}

func targetStatusFor(gatewayStatus string) (enums.PaymentStatus, error) {
	switch gatewayStatus {
	case "completed", "success":
		return enums.PaymentStatusCompleted, nil
	case "failed":
		return enums.PaymentStatusFailed, nil
	case "cancelled":
		return enums.PaymentStatusCancelled, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown webhook status").
			WithDetails(map[string]any{"status": gatewayStatus})
	}
}
