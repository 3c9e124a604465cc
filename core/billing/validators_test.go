package billing

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/gachaupg/shuletrack/core"
)

func TestBillingValidation(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	invoice := Invoice{Number: "INV-1", Amount: 2500, Currency: "KES", Status: InvoicePending, IssueDate: "2026-02-01", DueDate: "2026-02-28"}
	sub := Subscription{Plan: null.IntFrom(1), Status: SubscriptionActive, StartDate: "2026-01-01", EndDate: "2026-12-31"}

	tests := []struct {
		name      string
		entity    interface{}
		wantField string
		wantMsg   string
	}{
		{name: "invoice", entity: invoice},
		{name: "invoice due same day", entity: func() Invoice { inv := invoice; inv.DueDate = inv.IssueDate; return inv }()},
		{
			name:      "invoice due before issue",
			entity:    func() Invoice { inv := invoice; inv.DueDate = "2026-01-15"; return inv }(),
			wantField: "due_date",
			wantMsg:   "due date cannot be before the issue date",
		},
		{
			name:      "invoice currency",
			entity:    func() Invoice { inv := invoice; inv.Currency = "kes"; return inv }(),
			wantField: "currency",
		},
		{name: "subscription", entity: sub},
		{name: "open ended subscription", entity: func() Subscription { s := sub; s.EndDate = ""; return s }()},
		{
			name:      "subscription ends on start",
			entity:    func() Subscription { s := sub; s.EndDate = s.StartDate; return s }(),
			wantField: "end_date",
			wantMsg:   "end date must be after the start date",
		},
		{
			name:      "subscription without plan",
			entity:    func() Subscription { s := sub; s.Plan = null.Int{}; return s }(),
			wantField: "plan",
			wantMsg:   "this field is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.entity)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			fields, ok := core.TranslateFields(err, translator)
			require.True(t, ok)
			require.Contains(t, fields, tt.wantField)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, fields[tt.wantField])
			}
		})
	}
}

func TestInvoice_FormattedAmount(t *testing.T) {
	assert.Equal(t, "KES 60000.00", Invoice{Amount: 60000, Currency: "KES"}.FormattedAmount())
}
