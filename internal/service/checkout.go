package service

import (
	"context"

	"github.com/flexprice/recurring/internal/domain/installment"
)

// Checkout turns an installment into an order and attempts payment. It is
// called outside of any transaction and may be slow.
type Checkout interface {
	Process(ctx context.Context, inst *installment.Installment) (*installment.Outcome, error)
}
