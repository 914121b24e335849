package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition is allowed out of s
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order transition")
)

// Order is a purchase attempt of one product through one provider
type Order struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	ProductID int64           `json:"product_id"`
	Provider  string          `json:"provider_name"`
	BuyerRef  string          `json:"buyer_ref,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewOrder holds the fields set when an order is created.
// BuyerRef is an optional buyer handle, such as a chat id, carried to the paid notice.
type NewOrder struct {
	TenantID  int64
	ProductID int64
	Provider  string
	BuyerRef  string
	Amount    decimal.Decimal
}

// Decision is the result of matching a settlement against the current status
type Decision int

const (
	// Apply moves a pending order to the target status
	Apply Decision = iota
	// NoOp means the order already has the target status
	NoOp
	// Conflict means the order is terminal with a different status
	Conflict
)

func (d Decision) String() string {
	switch d {
	case Apply:
		return "apply"
	case NoOp:
		return "noop"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Decide is the transition table. target must be terminal.
//
//	pending -> paid|failed  apply
//	paid    -> paid         noop
//	failed  -> failed       noop
//	paid    -> failed       conflict
//	failed  -> paid         conflict
func Decide(current, target Status) Decision {
	switch {
	case current == StatusPending:
		return Apply
	case current == target:
		return NoOp
	default:
		return Conflict
	}
}

// Settlement reports what Settle did
type Settlement struct {
	Order    *Order
	Applied  bool
	Conflict bool
}

// Decision returns the table entry that produced s
func (s *Settlement) Decision() Decision {
	switch {
	case s.Applied:
		return Apply
	case s.Conflict:
		return Conflict
	default:
		return NoOp
	}
}
