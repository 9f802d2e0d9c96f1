package repository

import (
	"context"
	"time"

	"hail/internal/domain"
)

// PricingConfigRepository reads the active pricing configuration. One
// active document exists per deployment; this core never writes it.
type PricingConfigRepository interface {
	GetActive(ctx context.Context) (*domain.PricingConfig, error)
}

// ReceiptRepository persists the immutable itemized receipts generated on
// completion.
type ReceiptRepository interface {
	Create(ctx context.Context, r *domain.Receipt) error
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Receipt, error)
}

// TaskRepository persists deferred one-shot tasks so they survive process
// restarts.
type TaskRepository interface {
	// Create schedules a task.
	Create(ctx context.Context, t *domain.ScheduledTask) error

	// Due returns at most limit undone tasks whose run time has passed.
	Due(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledTask, error)

	// MarkDone marks a task completed.
	MarkDone(ctx context.Context, id string) error

	// CancelByRef marks undone tasks of the kind referring to refID as
	// done without running them.
	CancelByRef(ctx context.Context, kind domain.TaskKind, refID string) error
}
