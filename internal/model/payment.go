package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/apperr"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed,
		PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) Successful() bool { return s == PaymentStatusPaid }

func (s PaymentStatus) CanCancel() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid
}

func (s PaymentStatus) CanRefund() bool { return s == PaymentStatusPaid }

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPaid:      {PaymentStatusPending},
	PaymentStatusFailed:    {PaymentStatusPending},
	PaymentStatusCancelled: {PaymentStatusPending, PaymentStatusPaid},
	PaymentStatusRefunded:  {PaymentStatusPaid},
}

type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "CARD"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodVirtualAccount PaymentMethod = "VIRTUAL_ACCOUNT"
	PaymentMethodMobile         PaymentMethod = "MOBILE_PAYMENT"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodVirtualAccount, PaymentMethodMobile:
		return true
	}
	return false
}

func (m PaymentMethod) RealTime() bool { return m != PaymentMethodVirtualAccount }

type PGProvider string

const (
	PGProviderToss    PGProvider = "TOSS"
	PGProviderIamport PGProvider = "IAMPORT"
	PGProviderKakao   PGProvider = "KAKAO"
	PGProviderNaver   PGProvider = "NAVER"
)

type CardType string

const (
	CardTypeCredit CardType = "CREDIT"
	CardTypeDebit  CardType = "DEBIT"
	CardTypeGift   CardType = "GIFT"
)

type VirtualAccount struct {
	Bank    string
	Number  string
	Holder  string
	DueDate *time.Time
}

type Payment struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	PaymentKey       string
	TransactionID    string
	Provider         PGProvider
	Method           PaymentMethod
	Status           PaymentStatus
	Amount           decimal.Decimal
	Currency         string
	CardCompany      string
	CardNumberMasked string
	CardType         CardType
	VirtualAccount   VirtualAccount
	RequestedAt      time.Time
	ApprovedAt       *time.Time
	FailedAt         *time.Time
	CancelledAt      *time.Time
	FailureReason    string
	CancelReason     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const DefaultCurrency = "KRW"

// NewPayment opens a PENDING ledger entry for o charging exactly its total.
func NewPayment(o *Order, at time.Time) Payment {
	return Payment{
		OrderID:     o.ID,
		Method:      o.PaymentMethod,
		Status:      PaymentStatusPending,
		Amount:      o.Total,
		Currency:    DefaultCurrency,
		RequestedAt: at,
	}
}

func (p *Payment) CanCancel() bool { return p.Status.CanCancel() }
func (p *Payment) CanRefund() bool { return p.Status.CanRefund() }

// UpdateStatus moves the payment to status to and stamps the matching
// timestamp. Moving to the current status is a no-op.
func (p *Payment) UpdateStatus(to PaymentStatus, at time.Time) error {
	if p.Status == to {
		return nil
	}
	allowed := false
	for _, from := range paymentTransitions[to] {
		if from == p.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("payment for order %s %s -> %s: %w", p.OrderID, p.Status, to, apperr.ErrPaymentInvalidTransition)
	}
	p.Status = to
	p.UpdatedAt = at
	switch to {
	case PaymentStatusPaid:
		p.ApprovedAt = &at
	case PaymentStatusFailed:
		p.FailedAt = &at
	case PaymentStatusCancelled:
		p.CancelledAt = &at
	}
	return nil
}

func (p *Payment) UpdateGatewayInfo(paymentKey, transactionID string, provider PGProvider) {
	if paymentKey != "" {
		p.PaymentKey = paymentKey
	}
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	if provider != "" {
		p.Provider = provider
	}
}

// IssueVirtualAccount records where the customer must deposit. Only PENDING
// payments made by a deferred method accept it.
func (p *Payment) IssueVirtualAccount(va VirtualAccount, at time.Time) error {
	if p.Method.RealTime() {
		return fmt.Errorf("payment for order %s is %s: %w", p.OrderID, p.Method, apperr.ErrInvalidInput)
	}
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("payment for order %s is %s: %w", p.OrderID, p.Status, apperr.ErrPaymentInvalidTransition)
	}
	if strings.TrimSpace(va.Bank) == "" || strings.TrimSpace(va.Number) == "" {
		return fmt.Errorf("virtual account needs bank and number: %w", apperr.ErrInvalidInput)
	}
	p.VirtualAccount = va
	p.UpdatedAt = at
	return nil
}

func (p *Payment) UpdateCardInfo(company, maskedNumber string, cardType CardType) {
	p.CardCompany = company
	p.CardNumberMasked = maskedNumber
	p.CardType = cardType
}
