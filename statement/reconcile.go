package statement

import (
	"github.com/shopspring/decimal"
)

const (
	ReconcilePass = "PASS"
	ReconcileFail = "FAIL"
)

// ReconcileResult is the whole-file balance check. It is diagnostic output,
// never persisted, and a FAIL never invalidates rows already written.
type ReconcileResult struct {
	Status              string          `json:"status"`
	FirstBalance        decimal.Decimal `json:"first_balance"`
	LastBalance         decimal.Decimal `json:"last_balance"`
	SumSignedAmount     decimal.Decimal `json:"sum_signed_amount"`
	ExpectedLastBalance decimal.Decimal `json:"expected_last_balance"`
	Difference          decimal.Decimal `json:"difference"`
	Tolerance           decimal.Decimal `json:"tolerance"`
	RowsSeen            int             `json:"rows_seen"`
	RowsSkipped         int             `json:"rows_skipped"`
}

// Checker accumulates reconciliation state over a statement's rows.
// Statements list movements newest first, so the first balance cell seen is
// the closing balance and the oldest row's balance/amount pair reconstructs
// the opening balance.
type Checker struct {
	tolerance decimal.Decimal

	rowsSeen    int
	rowsSkipped int
	sumSigned   decimal.Decimal

	closing    decimal.Decimal
	hasClosing bool

	lastBalance decimal.Decimal
	lastAmount  decimal.Decimal
	hasLastPair bool
}

func NewChecker(tolerance decimal.Decimal) *Checker {
	return &Checker{tolerance: tolerance}
}

// Skip records a row that carried no movement.
func (c *Checker) Skip() {
	c.rowsSkipped++
}

// Observe records one counted movement row.
func (c *Checker) Observe(r *Row) {
	c.rowsSeen++
	c.sumSigned = c.sumSigned.Add(r.Signed)

	if r.HasBalance {
		if !c.hasClosing {
			c.closing = r.Balance
			c.hasClosing = true
		}
		c.lastBalance = r.Balance
		c.lastAmount = r.Signed
		c.hasLastPair = true
	}
}

// Result computes the verdict. The opening balance is the oldest row's
// balance minus that row's signed amount; adding every signed amount to it
// must land on the reported closing balance within the tolerance.
func (c *Checker) Result() ReconcileResult {
	opening := decimal.Zero
	if c.hasLastPair {
		opening = c.lastBalance.Sub(c.lastAmount)
	}

	closing := decimal.Zero
	if c.hasClosing {
		closing = c.closing
	}

	expected := opening.Add(c.sumSigned)
	difference := closing.Sub(expected).Abs()

	status := ReconcilePass
	if difference.GreaterThan(c.tolerance) {
		status = ReconcileFail
	}

	return ReconcileResult{
		Status:              status,
		FirstBalance:        opening,
		LastBalance:         closing,
		SumSignedAmount:     c.sumSigned,
		ExpectedLastBalance: expected,
		Difference:          difference,
		Tolerance:           c.tolerance,
		RowsSeen:            c.rowsSeen,
		RowsSkipped:         c.rowsSkipped,
	}
}
