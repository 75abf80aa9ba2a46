package statement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

// Signal classifies the outcome of normalizing one raw row.
type Signal int

const (
	// SignalOk means the row is a usable movement.
	SignalOk Signal = iota
	// SignalSkip means the row carries no movement and is counted as skipped.
	SignalSkip
	// SignalEndOfData means the data region ended and no further rows of the
	// sheet should be read.
	SignalEndOfData
)

// Row is a normalized statement movement.
type Row struct {
	Date        time.Time
	Time        string
	Description string
	Reference   string

	// Amount is the positive magnitude, Signed keeps the statement's sign.
	Amount decimal.Decimal
	Signed decimal.Decimal

	Direction models.Direction

	Balance    decimal.Decimal
	HasBalance bool
}

// ParseAmount parses a statement amount cell under the given grouping
// convention. AmountFormatUS reads "1,000.81" by stripping the comma
// separators; AmountFormatEU reads "1.000,81" by dropping the dots and
// turning the comma into a decimal point.
func ParseAmount(s string, format AmountFormat) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	switch format {
	case AmountFormatEU:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	return decimal.NewFromString(s)
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func roleCell(row []string, p *Profile, role Role) string {
	idx, ok := p.Columns[role]
	if !ok {
		return ""
	}
	return cellAt(row, idx)
}

func parseDate(s string, p *Profile) (time.Time, bool) {
	for _, layout := range p.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeRow turns one raw cell row into a normalized movement.
//
// An empty date+description+amount triple ends the data region. A missing or
// unparseable date skips the row, except for profiles where a bad date marks
// the start of the footer and ends the data instead. A zero or unparseable
// amount skips the row. The amount's sign decides the direction; the textual
// movement-type column never overrides it.
func NormalizeRow(row []string, p *Profile) (*Row, Signal) {
	rawDate := roleCell(row, p, RoleDate)
	rawDesc := roleCell(row, p, RoleDescription)
	rawAmount := roleCell(row, p, RoleAmount)

	if rawDate == "" && rawDesc == "" && rawAmount == "" {
		return nil, SignalEndOfData
	}

	if rawDate == "" {
		return nil, SignalSkip
	}
	date, ok := parseDate(rawDate, p)
	if !ok {
		if p.DateErrorEndsData {
			return nil, SignalEndOfData
		}
		return nil, SignalSkip
	}

	signed, err := ParseAmount(rawAmount, p.AmountFormat)
	if err != nil || signed.IsZero() {
		return nil, SignalSkip
	}

	direction := models.DirectionIn
	if signed.IsNegative() {
		direction = models.DirectionOut
	}

	out := &Row{
		Date:        date,
		Time:        roleCell(row, p, RoleTime),
		Description: rawDesc,
		Reference:   roleCell(row, p, RoleReference),
		Amount:      signed.Abs(),
		Signed:      signed,
		Direction:   direction,
	}

	if rawBalance := roleCell(row, p, RoleBalance); rawBalance != "" {
		if balance, err := ParseAmount(rawBalance, p.AmountFormat); err == nil {
			out.Balance = balance
			out.HasBalance = true
		}
	}

	return out, SignalOk
}
