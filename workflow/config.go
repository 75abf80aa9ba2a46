package workflow

import (
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

// Config holds the matching and settlement tunables. Defaults mirror the
// bank statement tolerances the reconciliation desk works with.
type Config struct {
	// SettleEpsilon is the residual below which a planned item counts as
	// fully settled.
	SettleEpsilon decimal.Decimal

	// MatchEpsilon is the slack allowed when a manual match slightly
	// overshoots the remaining amount.
	MatchEpsilon decimal.Decimal

	// DateWindowDays bounds auto-match candidates around the entry date.
	DateWindowDays int

	// SuggestWindowDays bounds the advisory suggestion window around the
	// planned item's due date.
	SuggestWindowDays int
}

func DefaultConfig() Config {
	return Config{
		SettleEpsilon:     decimal.RequireFromString("0.005"),
		MatchEpsilon:      decimal.RequireFromString("0.01"),
		DateWindowDays:    7,
		SuggestWindowDays: 10,
	}
}

// Categorizer labels a movement. The import pipeline stores whatever the
// collaborator returns and never second-guesses it.
type Categorizer interface {
	Categorize(description string, amount decimal.Decimal, direction models.Direction) string
}
