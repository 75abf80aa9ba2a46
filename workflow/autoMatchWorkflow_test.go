package workflow

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

func day(d int) time.Time {
	return time.Date(2025, 12, d, 0, 0, 0, 0, time.UTC)
}

func testEntry(d int, description string) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:          "entry-1",
		Date:        day(d),
		Description: description,
		Amount:      dec("1000"),
		Direction:   models.DirectionIn,
	}
}

func testItem(id string, due int, reference string) *models.PlannedItem {
	item := &models.PlannedItem{
		ID:              id,
		Direction:       models.DirectionIn,
		Amount:          dec("1000"),
		DueDate:         day(due),
		RemainingAmount: dec("1000"),
		Status:          models.PlannedStatusOpen,
	}
	if reference != "" {
		item.ReferenceNo = &reference
	}
	return item
}

func TestSelectCandidateUnique(t *testing.T) {
	entry := testEntry(10, "EFT GELEN")
	items := []*models.PlannedItem{testItem("a", 12, "")}

	selected, ambiguous := selectCandidate(entry, items, 7)
	if ambiguous {
		t.Fatal("unexpected ambiguity")
	}
	if selected == nil || selected.ID != "a" {
		t.Fatalf("selected = %v, want item a", selected)
	}
}

func TestSelectCandidateDateWindow(t *testing.T) {
	entry := testEntry(10, "EFT GELEN")

	// 7 days out is inside the window, 8 days is not.
	selected, _ := selectCandidate(entry, []*models.PlannedItem{testItem("a", 17, "")}, 7)
	if selected == nil {
		t.Error("candidate at 7 days should be selected")
	}
	selected, _ = selectCandidate(entry, []*models.PlannedItem{testItem("a", 18, "")}, 7)
	if selected != nil {
		t.Error("candidate at 8 days must not be selected")
	}
}

func TestSelectCandidateNearestDueDate(t *testing.T) {
	entry := testEntry(10, "EFT GELEN")
	items := []*models.PlannedItem{
		testItem("far", 16, ""),
		testItem("near", 11, ""),
	}

	selected, ambiguous := selectCandidate(entry, items, 7)
	if ambiguous {
		t.Fatal("unexpected ambiguity")
	}
	if selected.ID != "near" {
		t.Errorf("selected = %s, want near", selected.ID)
	}
}

func TestSelectCandidateTieIsAmbiguous(t *testing.T) {
	entry := testEntry(10, "EFT GELEN")
	items := []*models.PlannedItem{
		testItem("before", 8, ""),
		testItem("after", 12, ""),
	}

	selected, ambiguous := selectCandidate(entry, items, 7)
	if !ambiguous {
		t.Fatal("equidistant candidates must be ambiguous")
	}
	if selected != nil {
		t.Errorf("selected = %v, want nil", selected)
	}
}

func TestSelectCandidateReferenceNarrows(t *testing.T) {
	entry := testEntry(10, "ODEME REF INV-42 TESEKKURLER")
	items := []*models.PlannedItem{
		testItem("plain", 10, ""),
		testItem("referenced", 14, "INV-42"),
	}

	// Without the reference the plain item is nearer, but the reference hit
	// narrows the pool first.
	selected, ambiguous := selectCandidate(entry, items, 7)
	if ambiguous {
		t.Fatal("unexpected ambiguity")
	}
	if selected.ID != "referenced" {
		t.Errorf("selected = %s, want referenced", selected.ID)
	}
}

func TestSelectCandidateReferenceResolvesTie(t *testing.T) {
	entry := testEntry(10, "ODEME REF INV-42")
	items := []*models.PlannedItem{
		testItem("before", 8, ""),
		testItem("after", 12, "INV-42"),
	}

	selected, ambiguous := selectCandidate(entry, items, 7)
	if ambiguous {
		t.Fatal("reference hit should have resolved the tie")
	}
	if selected.ID != "after" {
		t.Errorf("selected = %s, want after", selected.ID)
	}
}

func TestSelectCandidateIgnoresReferenceNotInDescription(t *testing.T) {
	entry := testEntry(10, "EFT GELEN")
	items := []*models.PlannedItem{
		testItem("near", 11, "INV-99"),
	}

	selected, _ := selectCandidate(entry, items, 7)
	if selected == nil || selected.ID != "near" {
		t.Fatal("a reference that does not appear in the description must not exclude the item")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("Error 1062 (23000): Duplicate entry 'AKB|x' for key 'uq_external_direction_company'"), true},
		{errors.New("UNIQUE constraint failed: ledger_entries.external_id"), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tc := range tests {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Errorf("isUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
