package square

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"
)

// Square payment statuses as reported by the Payments API.
const (
	PaymentStatusApproved  = "APPROVED"
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusCanceled  = "CANCELED"
	PaymentStatusFailed    = "FAILED"
)

// Square refund statuses as reported by the Refunds API.
const (
	RefundStatusPending   = "PENDING"
	RefundStatusCompleted = "COMPLETED"
	RefundStatusRejected  = "REJECTED"
	RefundStatusFailed    = "FAILED"
)

// PaymentCreateParams encapsulates the inputs for a Square payment.
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(p.LocationID),
		SourceID:       p.SourceID,
		Autocomplete:   &autocomplete,
	}
	if p.AmountMinor > 0 {
		req.AmountMoney = moneyPtr(p.AmountMinor, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

// paymentWindow bounds a reference scan after the moment a charge was attempted.
const paymentWindow = time.Hour

func paymentSearchRequest(locationID string, since time.Time) *sq.ListPaymentsRequest {
	begin := since.Add(-time.Minute).UTC().Format(time.RFC3339)
	end := since.Add(paymentWindow).UTC().Format(time.RFC3339)
	ascending := "ASC"
	return &sq.ListPaymentsRequest{
		BeginTime:  &begin,
		EndTime:    &end,
		SortOrder:  &ascending,
		LocationID: ptrString(locationID),
	}
}

// RefundParams refunds part or all of a captured payment.
type RefundParams struct {
	PaymentID      string
	AmountMinor    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.AmountMinor, p.Currency),
		PaymentID:      ptrString(p.PaymentID),
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

// PaymentSnapshot is the subset of a Square payment the marketplace reads.
type PaymentSnapshot struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	ReferenceID string     `json:"reference_id"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// RefundSnapshot is the subset of a Square refund the marketplace reads.
type RefundSnapshot struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
}

func decodePayment(resp any) (*PaymentSnapshot, error) {
	var envelope struct {
		Payment *PaymentSnapshot `json:"payment"`
	}
	if err := roundTrip(resp, &envelope); err != nil {
		return nil, err
	}
	if envelope.Payment == nil || envelope.Payment.ID == "" {
		return nil, fmt.Errorf("square response carried no payment")
	}
	return envelope.Payment, nil
}

func decodeRefund(resp any) (*RefundSnapshot, error) {
	var envelope struct {
		Refund *RefundSnapshot `json:"refund"`
	}
	if err := roundTrip(resp, &envelope); err != nil {
		return nil, err
	}
	if envelope.Refund == nil || envelope.Refund.ID == "" {
		return nil, fmt.Errorf("square response carried no refund")
	}
	return envelope.Refund, nil
}

func roundTrip(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
