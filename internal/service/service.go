// Package service holds the storefront use cases: cart, checkout, the
// inventory ledger and order fulfillment.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/events"
)

func loggerOrDiscard(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func publisherOrNop(p events.Publisher) events.Publisher {
	if p != nil {
		return p
	}
	return events.Nop{}
}

// publish sends e after the owning transaction committed. Delivery failures
// are logged; the committed change stands.
func publish(ctx context.Context, p events.Publisher, log *slog.Logger, e events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("publish event failed", "type", e.Type, "order_id", e.OrderID, "error", err)
	}
}

// logRejected logs business rule violations at info and anything else at
// error.
func logRejected(log *slog.Logger, msg string, err error, args ...any) {
	if e, ok := apperr.As(err); ok {
		log.Info(msg, append(args, "code", e.Code)...)
		return
	}
	log.Error(msg, append(args, "error", err)...)
}

func nowUTC() time.Time { return time.Now().UTC() }
