package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/momo"
)

// Gateway is the mobile-money client surface the engine depends on.
type Gateway interface {
	Charge(ctx context.Context, req momo.ChargeRequest) (*momo.ChargeResponse, error)
	Verify(ctx context.Context, reference string) (*momo.VerifyResponse, error)
	WebhookSecret() string
}

// initiation is what a method strategy resolves to: the payment's next
// status plus whatever the gateway handed back.
type initiation struct {
	status        enums.PaymentStatus
	transactionID string
	gatewayBody   json.RawMessage
	errorMessage  string
	paymentURL    string
}

// methodStrategy is the per-method settlement behavior, selected by a single
// switch at the initiation boundary. validate runs before any payment row is
// created so a bad request never strands an open attempt.
type methodStrategy interface {
	validate(customer CustomerInfo) error
	initiate(ctx context.Context, payment *models.Payment, customer CustomerInfo, otp string) (*initiation, error)
}

func (s *service) strategyFor(method enums.PaymentMethod) (methodStrategy, error) {
	switch method {
	case enums.PaymentMethodMobileMoney:
		return &mobileMoneyStrategy{gateway: s.gateway}, nil
	case enums.PaymentMethodCashOnDelivery:
		return cashOnDeliveryStrategy{}, nil
	case enums.PaymentMethodBankTransfer:
		return bankTransferStrategy{}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
}

// mobileMoneyStrategy charges through the gateway. Success, OTP-required,
// and redirect all park the payment in processing until a webhook or a
// verification call settles it; only an outright gateway failure fails here.
type mobileMoneyStrategy struct {
	gateway Gateway
}

func (m *mobileMoneyStrategy) validate(customer CustomerInfo) error {
	if customer.Phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer phone required for mobile money")
	}
	return nil
}

func (m *mobileMoneyStrategy) initiate(ctx context.Context, payment *models.Payment, customer CustomerInfo, otp string) (*initiation, error) {
	resp, err := m.gateway.Charge(ctx, momo.ChargeRequest{
		Reference:      payment.Reference,
		Amount:         payment.Amount,
		CustomerMsisdn: customer.Phone,
		CustomerName:   customer.Name,
		CustomerEmail:  customer.Email,
		OTPCode:        otp,
	})
	if err != nil {
		// The gateway call itself failed; the payment lands in failed with
		// the error captured instead of sticking in an ambiguous state.
		return &initiation{
			status:       enums.PaymentStatusFailed,
			errorMessage: err.Error(),
		}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mobile money charge failed")
	}

	out := &initiation{
		transactionID: resp.TransactionID,
		gatewayBody:   resp.Raw,
		paymentURL:    resp.PaymentURL,
	}
	switch resp.Status {
	case momo.ChargeStatusSuccess, momo.ChargeStatusOTPRequired, momo.ChargeStatusRedirect:
		out.status = enums.PaymentStatusProcessing
	default:
		out.status = enums.PaymentStatusFailed
		out.errorMessage = resp.ErrorMessage
		if out.errorMessage == "" {
			out.errorMessage = fmt.Sprintf("gateway declined with status %q", resp.Status)
		}
	}
	return out, nil
}

// cashOnDeliveryStrategy parks the payment in processing; the assigned
// driver's cash-collection confirmation settles it.
type cashOnDeliveryStrategy struct{}

func (cashOnDeliveryStrategy) validate(CustomerInfo) error { return nil }

func (cashOnDeliveryStrategy) initiate(_ context.Context, payment *models.Payment, _ CustomerInfo, _ string) (*initiation, error) {
	body, _ := json.Marshal(map[string]string{
		"settlement": "cash_on_delivery",
		"note":       "collected by the driver on delivery",
	})
	return &initiation{status: enums.PaymentStatusProcessing, gatewayBody: body}, nil
}

// bankTransferStrategy parks the payment in processing and carries generated
// transfer instructions; an admin confirmation settles it out-of-band.
type bankTransferStrategy struct{}

func (bankTransferStrategy) validate(CustomerInfo) error { return nil }

func (bankTransferStrategy) initiate(_ context.Context, payment *models.Payment, _ CustomerInfo, _ string) (*initiation, error) {
	body, _ := json.Marshal(map[string]string{
		"settlement":     "bank_transfer",
		"account_name":   "Sokohub Collections",
		"account_number": "0102-5540-8831",
		"bank_reference": payment.Reference,
		"amount":         payment.Amount.StringFixed(2),
	})
	return &initiation{status: enums.PaymentStatusProcessing, gatewayBody: body}, nil
}
