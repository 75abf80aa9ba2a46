package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

func suggestionEntry(d int, amount, description string) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:          "entry-1",
		Date:        day(d),
		Description: description,
		Amount:      dec(amount),
		Direction:   models.DirectionOut,
	}
}

func suggestionItem(due int, counterparty, reference string) *models.PlannedItem {
	item := &models.PlannedItem{
		ID:        "item-1",
		Direction: models.DirectionOut,
		DueDate:   day(due),
	}
	if counterparty != "" {
		item.Counterparty = &counterparty
	}
	if reference != "" {
		item.ReferenceNo = &reference
	}
	return item
}

func guardItem(status models.PlannedStatus, remaining string, direction models.Direction) *models.PlannedItem {
	return &models.PlannedItem{
		ID:              "item-guard",
		Direction:       direction,
		Status:          status,
		RemainingAmount: dec(remaining),
	}
}

func guardEntry(direction models.Direction) *models.LedgerEntry {
	return &models.LedgerEntry{ID: "entry-guard", Direction: direction, Amount: dec("500")}
}

func TestMatchGuard(t *testing.T) {
	epsilon := dec("0.01")
	pair := &models.PlannedMatch{PlannedItemId: "item-guard", LedgerEntryId: "entry-guard"}

	tests := []struct {
		name     string
		item     *models.PlannedItem
		entry    *models.LedgerEntry
		amount   string
		existing *models.PlannedMatch
		want     error
	}{
		{"open item accepts", guardItem(models.PlannedStatusOpen, "500", models.DirectionOut), guardEntry(models.DirectionOut), "500", nil, nil},
		{"partial item accepts", guardItem(models.PlannedStatusPartial, "300", models.DirectionOut), guardEntry(models.DirectionOut), "200", nil, nil},
		{"settled item rejected", guardItem(models.PlannedStatusSettled, "0", models.DirectionOut), guardEntry(models.DirectionOut), "100", nil, ErrItemClosedForMatching},
		{"cancelled item rejected", guardItem(models.PlannedStatusCancelled, "500", models.DirectionOut), guardEntry(models.DirectionOut), "100", nil, ErrItemClosedForMatching},
		{"direction mismatch rejected", guardItem(models.PlannedStatusOpen, "500", models.DirectionOut), guardEntry(models.DirectionIn), "100", nil, ErrDirectionMismatch},
		{"overshoot within epsilon accepted", guardItem(models.PlannedStatusOpen, "500", models.DirectionOut), guardEntry(models.DirectionOut), "500.01", nil, nil},
		{"overshoot beyond epsilon rejected", guardItem(models.PlannedStatusOpen, "500", models.DirectionOut), guardEntry(models.DirectionOut), "500.02", nil, ErrAmountExceedsRemaining},
		{"second match for the pair rejected", guardItem(models.PlannedStatusOpen, "500", models.DirectionOut), guardEntry(models.DirectionOut), "500", pair, ErrPairAlreadyMatched},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := matchGuard(tc.item, tc.entry, dec(tc.amount), tc.existing, epsilon)
			if got != tc.want {
				t.Errorf("matchGuard() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScoreSuggestionExactAmountNearDate(t *testing.T) {
	entry := suggestionEntry(10, "1000", "ODEME")
	item := suggestionItem(11, "", "")

	// 30 for the exact amount, 12 for being within two days.
	if got := scoreSuggestion(entry, item, dec("1000")); got != 42 {
		t.Errorf("score = %d, want 42", got)
	}
}

func TestScoreSuggestionPartialAmount(t *testing.T) {
	entry := suggestionEntry(10, "400", "ODEME")
	item := suggestionItem(16, "", "")

	// 18 for a smaller amount, 8 for a date within seven days.
	if got := scoreSuggestion(entry, item, dec("1000")); got != 26 {
		t.Errorf("score = %d, want 26", got)
	}
}

func TestScoreSuggestionTextHits(t *testing.T) {
	entry := suggestionEntry(10, "999", "ACME LTD fatura INV-7 odemesi")
	item := suggestionItem(30, "Acme Ltd", "INV-7")

	// 18 (smaller amount) + 0 (date too far) + 28 (counterparty) + 30 (reference).
	if got := scoreSuggestion(entry, item, dec("1000")); got != 76 {
		t.Errorf("score = %d, want 76", got)
	}
}

func TestScoreSuggestionCappedAt100(t *testing.T) {
	entry := suggestionEntry(10, "1000", "ACME LTD INV-7 odeme")
	item := suggestionItem(10, "Acme Ltd", "INV-7")

	// 30 + 12 + 28 + 30 = 100, the cap keeps it there.
	if got := scoreSuggestion(entry, item, dec("1000")); got != 100 {
		t.Errorf("score = %d, want 100", got)
	}
}

func TestScoreSuggestionDateBands(t *testing.T) {
	item := suggestionItem(10, "", "")
	tests := []struct {
		entryDay int
		want     int
	}{
		{10, 42}, // same day
		{12, 42}, // 2 days
		{13, 38}, // 3 days
		{17, 38}, // 7 days
		{18, 33}, // 8 days
		{24, 33}, // 14 days
		{25, 30}, // beyond all bands
	}
	for _, tc := range tests {
		entry := suggestionEntry(tc.entryDay, "1000", "ODEME")
		if got := scoreSuggestion(entry, item, dec("1000")); got != tc.want {
			t.Errorf("day %d: score = %d, want %d", tc.entryDay, got, tc.want)
		}
	}
}
