package workflow

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveStatus(t *testing.T) {
	epsilon := dec("0.005")

	tests := []struct {
		name          string
		amount        string
		settled       string
		wantStatus    models.PlannedStatus
		wantRemaining string
	}{
		{"untouched", "1000", "0", models.PlannedStatusOpen, "1000"},
		{"partial", "1000", "400", models.PlannedStatusPartial, "600"},
		{"exact", "1000", "1000", models.PlannedStatusSettled, "0"},
		{"overpaid clamps", "1000", "1200", models.PlannedStatusSettled, "0"},
		{"residual within epsilon", "1000", "999.996", models.PlannedStatusSettled, "0"},
		{"residual at epsilon", "1000", "999.995", models.PlannedStatusSettled, "0"},
		{"residual beyond epsilon", "1000", "999.99", models.PlannedStatusPartial, "0.01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, remaining := deriveStatus(dec(tc.amount), dec(tc.settled), epsilon)
			if status != tc.wantStatus {
				t.Errorf("status = %s, want %s", status, tc.wantStatus)
			}
			if remaining.String() != tc.wantRemaining {
				t.Errorf("remaining = %s, want %s", remaining, tc.wantRemaining)
			}
		})
	}
}

func TestDeriveStatusInvariant(t *testing.T) {
	// settled + remaining reconstructs the amount, up to the clamp.
	epsilon := dec("0.005")
	for _, settled := range []string{"0", "1", "250", "999.99", "1000", "1500"} {
		amount := dec("1000")
		s := dec(settled)
		_, remaining := deriveStatus(amount, s, epsilon)
		if remaining.IsNegative() {
			t.Errorf("settled %s: remaining is negative", settled)
		}
		if s.LessThanOrEqual(amount) && !remaining.IsZero() {
			if !s.Add(remaining).Equal(amount) {
				t.Errorf("settled %s: settled+remaining = %s, want %s", settled, s.Add(remaining), amount)
			}
		}
	}
}
