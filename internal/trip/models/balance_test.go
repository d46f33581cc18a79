package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "rihla/pkg/domain"
)

func TestNextPaymentStatus(t *testing.T) {
	tests := []struct {
		name    string
		total   id.Money
		paid    id.Money
		deposit id.Money
		prior   PaymentStatus
		want    PaymentStatus
	}{
		{
			name:  "exact deposit promotes pending to deposit_paid",
			total: 5000, paid: 1000, deposit: 1000, prior: PaymentStatusPending,
			want: PaymentStatusDepositPaid,
		},
		{
			name:  "payment below deposit stays partial",
			total: 5000, paid: 500, deposit: 1000, prior: PaymentStatusPending,
			want: PaymentStatusPartial,
		},
		{
			name:  "deposit threshold fires only on the pending transition",
			total: 5000, paid: 2000, deposit: 1000, prior: PaymentStatusDepositPaid,
			want: PaymentStatusPartial,
		},
		{
			name:  "settling the balance yields paid",
			total: 5000, paid: 5000, deposit: 1000, prior: PaymentStatusDepositPaid,
			want: PaymentStatusPaid,
		},
		{
			name:  "overpayment clamps to paid",
			total: 5000, paid: 6000, deposit: 1000, prior: PaymentStatusPartial,
			want: PaymentStatusPaid,
		},
		{
			name:  "zero deposit, any positive payment reaches deposit_paid",
			total: 5000, paid: 1, deposit: 0, prior: PaymentStatusPending,
			want: PaymentStatusDepositPaid,
		},
		{
			name:  "zero deposit and full settlement goes straight to paid",
			total: 5000, paid: 5000, deposit: 0, prior: PaymentStatusPending,
			want: PaymentStatusPaid,
		},
		{
			name:  "zero paid never counts as deposit coverage",
			total: 5000, paid: 0, deposit: 0, prior: PaymentStatusPending,
			want: PaymentStatusPartial,
		},
		{
			name:  "zero total is always paid",
			total: 0, paid: 0, deposit: 0, prior: PaymentStatusPending,
			want: PaymentStatusPaid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPaymentStatus(tt.total, tt.paid, tt.deposit, tt.prior)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBalanceDue(t *testing.T) {
	assert.Equal(t, id.Money(4000), BalanceDue(5000, 1000))
	assert.Equal(t, id.Money(0), BalanceDue(5000, 5000))
	assert.Equal(t, id.Money(0), BalanceDue(5000, 9000), "overpayment floors at zero")
	assert.Equal(t, id.Money(0), BalanceDue(0, 0))
}
