package statement

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func observedRow(signed, balance string) *Row {
	r := &Row{Signed: dec(signed), Amount: dec(signed).Abs()}
	if balance != "" {
		r.Balance = dec(balance)
		r.HasBalance = true
	}
	return r
}

func TestCheckerPass(t *testing.T) {
	// Rows arrive newest first. The oldest row's balance is the balance
	// after that movement, so opening = 950 - 150 = 800.
	c := NewChecker(dec("0.05"))
	c.Observe(observedRow("100", "1000")) // closing
	c.Observe(observedRow("-50", "900"))
	c.Observe(observedRow("150", "950")) // oldest, opening = 950-150 = 800

	res := c.Result()
	if res.Status != ReconcilePass {
		t.Fatalf("status = %s (difference %s), want PASS", res.Status, res.Difference)
	}
	if res.FirstBalance.String() != "800" {
		t.Errorf("opening = %s, want 800", res.FirstBalance)
	}
	if res.LastBalance.String() != "1000" {
		t.Errorf("closing = %s, want 1000", res.LastBalance)
	}
	if res.SumSignedAmount.String() != "200" {
		t.Errorf("sum = %s, want 200", res.SumSignedAmount)
	}
	if res.RowsSeen != 3 {
		t.Errorf("rows seen = %d, want 3", res.RowsSeen)
	}
}

func TestCheckerFailOnMissingRow(t *testing.T) {
	// A movement is missing from the file: balances jump by more than the
	// summed amounts allow.
	c := NewChecker(dec("0.05"))
	c.Observe(observedRow("100", "1000"))
	c.Observe(observedRow("150", "650")) // opening = 500, expected closing 750

	res := c.Result()
	if res.Status != ReconcileFail {
		t.Fatalf("status = %s, want FAIL", res.Status)
	}
	if res.Difference.String() != "250" {
		t.Errorf("difference = %s, want 250", res.Difference)
	}
}

func TestCheckerWithinTolerance(t *testing.T) {
	c := NewChecker(dec("0.05"))
	c.Observe(observedRow("49.97", "1000"))
	c.Observe(observedRow("150", "950")) // opening 800, expected closing 999.97

	res := c.Result()
	if res.Status != ReconcilePass {
		t.Errorf("status = %s (difference %s), want PASS", res.Status, res.Difference)
	}
	if res.Difference.String() != "0.03" {
		t.Errorf("difference = %s, want 0.03", res.Difference)
	}
}

func TestCheckerSkippedRowsDoNotAffectBalance(t *testing.T) {
	c := NewChecker(dec("0.05"))
	c.Observe(observedRow("100", "1000"))
	c.Skip()
	c.Skip()
	c.Observe(observedRow("150", "650"))
	c.Skip()

	res := c.Result()
	if res.RowsSkipped != 3 {
		t.Errorf("rows skipped = %d, want 3", res.RowsSkipped)
	}
	if res.RowsSeen != 2 {
		t.Errorf("rows seen = %d, want 2", res.RowsSeen)
	}
}

func TestCheckerNoBalanceColumn(t *testing.T) {
	// Without any balance cells the check degenerates to comparing the
	// signed sum against zero.
	c := NewChecker(dec("0.05"))
	c.Observe(observedRow("100", ""))
	c.Observe(observedRow("-100", ""))

	res := c.Result()
	if res.Status != ReconcilePass {
		t.Errorf("status = %s, want PASS", res.Status)
	}

	c = NewChecker(dec("0.05"))
	c.Observe(observedRow("100", ""))

	res = c.Result()
	if res.Status != ReconcileFail {
		t.Errorf("status = %s, want FAIL", res.Status)
	}
}

func TestCheckerSingleRow(t *testing.T) {
	// One row: opening = balance - amount, expected closing = balance.
	c := NewChecker(dec("0.05"))
	c.Observe(observedRow("250", "1250"))

	res := c.Result()
	if res.Status != ReconcilePass {
		t.Fatalf("status = %s, want PASS", res.Status)
	}
	if res.FirstBalance.String() != "1000" {
		t.Errorf("opening = %s, want 1000", res.FirstBalance)
	}
}
