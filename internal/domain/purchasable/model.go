package purchasable

import (
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
)

// Purchasable is a catalog entry a subscription line item can refer to.
// Only name and price are consumed, both pass through unchanged.
type Purchasable struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`
	Metadata types.Metadata  `json:"metadata,omitempty"`
	types.BaseModel
}
