package billing

import (
	"fmt"

	"github.com/volatiletech/null/v8"

	"github.com/gachaupg/shuletrack/core/resource"
)

// Invoice statuses
const (
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceOverdue   = "overdue"
	InvoiceCancelled = "cancelled"
)

// Subscription statuses
const (
	SubscriptionPending   = "pending"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Billing cycles
const (
	CycleMonthly = "monthly"
	CycleTermly  = "termly"
	CycleYearly  = "yearly"
)

var (
	InvoiceStatuses      = []string{InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled}
	SubscriptionStatuses = []string{SubscriptionPending, SubscriptionActive, SubscriptionCancelled, SubscriptionExpired}
	BillingCycles        = []string{CycleMonthly, CycleTermly, CycleYearly}

	InvoiceDescriptor = resource.Descriptor{
		Name:     "invoices",
		Label:    "invoice",
		Endpoint: "invoices",
		Scoped:   true,
		Columns:  []string{"ID", "Number", "Amount", "Currency", "Status", "Issue Date", "Due Date"},
	}
	SubscriptionDescriptor = resource.Descriptor{
		Name:     "subscriptions",
		Label:    "subscription",
		Endpoint: "subscriptions",
		Scoped:   true,
		Columns:  []string{"ID", "Plan", "Status", "Start Date", "End Date", "Auto Renew"},
	}
	// plans are shared by every school
	PlanDescriptor = resource.Descriptor{
		Name:     "plans",
		Label:    "plan",
		Endpoint: "plans",
		Columns:  []string{"ID", "Name", "Price", "Currency", "Billing Cycle", "Max Students", "Max Vehicles"},
	}
)

type Invoice struct {
	resource.Base
	School       int       `json:"school,omitempty"`
	Number       string    `json:"number" validate:"required,notblank"`
	Subscription null.Int  `json:"subscription"`
	Amount       float64   `json:"amount" validate:"gte=0"`
	Currency     string    `json:"currency" validate:"required,len=3,uppercase"`
	Status       string    `json:"status" validate:"required,oneof=pending paid overdue cancelled"`
	IssueDate    string    `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate      string    `json:"due_date" validate:"required,datetime=2006-01-02"`
	PaidAt       null.Time `json:"paid_at"`
}

func (inv Invoice) FormattedAmount() string {
	return fmt.Sprintf("%s %.2f", inv.Currency, inv.Amount)
}

type Subscription struct {
	resource.Base
	School    int      `json:"school,omitempty"`
	Plan      null.Int `json:"plan" validate:"required"`
	Status    string   `json:"status" validate:"required,oneof=pending active cancelled expired"`
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	AutoRenew bool     `json:"auto_renew"`
}

type Plan struct {
	resource.Base
	Name         string   `json:"name" validate:"required,notblank"`
	Price        float64  `json:"price" validate:"gte=0"`
	Currency     string   `json:"currency" validate:"required,len=3,uppercase"`
	BillingCycle string   `json:"billing_cycle" validate:"required,oneof=monthly termly yearly"`
	MaxStudents  int      `json:"max_students" validate:"gte=0"`
	MaxVehicles  int      `json:"max_vehicles" validate:"gte=0"`
	Features     []string `json:"features,omitempty"`
}
