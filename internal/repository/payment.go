package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

// PaymentRepository stores the single payment record of each order.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error)
	Update(ctx context.Context, payment *model.Payment) error
}

type pgPaymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &pgPaymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, COALESCE(payment_key, ''), transaction_id, pg_provider, payment_method,
	payment_status, amount, currency, card_company, card_number_masked, card_type,
	virtual_account_bank, virtual_account_number, virtual_account_holder, virtual_account_due,
	requested_at, approved_at, failed_at, cancelled_at, failure_reason, cancel_reason, created_at, updated_at`

func (r *pgPaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO payments (id, order_id, payment_key, transaction_id, pg_provider, payment_method,
			payment_status, amount, currency, card_company, card_number_masked, card_type,
			virtual_account_bank, virtual_account_number, virtual_account_holder, virtual_account_due,
			requested_at, approved_at, failed_at, cancelled_at, failure_reason, cancel_reason, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24)`,
		p.ID, p.OrderID, p.PaymentKey, p.TransactionID, p.Provider, p.Method,
		p.Status, p.Amount, p.Currency, p.CardCompany, p.CardNumberMasked, p.CardType,
		p.VirtualAccount.Bank, p.VirtualAccount.Number, p.VirtualAccount.Holder, p.VirtualAccount.DueDate,
		p.RequestedAt, p.ApprovedAt, p.FailedAt, p.CancelledAt, p.FailureReason, p.CancelReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *pgPaymentRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	p := &model.Payment{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID,
	).Scan(
		&p.ID, &p.OrderID, &p.PaymentKey, &p.TransactionID, &p.Provider, &p.Method,
		&p.Status, &p.Amount, &p.Currency, &p.CardCompany, &p.CardNumberMasked, &p.CardType,
		&p.VirtualAccount.Bank, &p.VirtualAccount.Number, &p.VirtualAccount.Holder, &p.VirtualAccount.DueDate,
		&p.RequestedAt, &p.ApprovedAt, &p.FailedAt, &p.CancelledAt, &p.FailureReason, &p.CancelReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *pgPaymentRepo) Update(ctx context.Context, p *model.Payment) error {
	p.UpdatedAt = time.Now().UTC()
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE payments SET payment_key=NULLIF($2, ''), transaction_id=$3, pg_provider=$4, payment_status=$5,
			card_company=$6, card_number_masked=$7, card_type=$8,
			virtual_account_bank=$9, virtual_account_number=$10, virtual_account_holder=$11, virtual_account_due=$12,
			approved_at=$13, failed_at=$14, cancelled_at=$15, failure_reason=$16, cancel_reason=$17, updated_at=$18
		 WHERE id=$1`,
		p.ID, p.PaymentKey, p.TransactionID, p.Provider, p.Status,
		p.CardCompany, p.CardNumberMasked, p.CardType,
		p.VirtualAccount.Bank, p.VirtualAccount.Number, p.VirtualAccount.Holder, p.VirtualAccount.DueDate,
		p.ApprovedAt, p.FailedAt, p.CancelledAt, p.FailureReason, p.CancelReason, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
