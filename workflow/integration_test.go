package workflow_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/categorize"
	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/workflow"
)

// End-to-end settlement path against a real MySQL: create a planned item,
// hand-enter a matching ledger entry, verify auto-match settled the item.
func TestEntryAutoMatchSettlesPlannedItem(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL)")
	}

	ctx := context.Background()

	db := config.ConnectDatabaseWithRetry()
	models.MigrateTable(db)

	logger := config.GetLogger()
	matcher := workflow.NewMatchService(db, logger, workflow.DefaultConfig())
	importer := workflow.NewImportService(db, logger, categorize.DefaultTable(), matcher)
	planner := workflow.NewPlannedService(db, logger)

	company := models.Company{Name: "Integration Test Co", Timezone: "Europe/Istanbul"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}

	dueDate := time.Now().AddDate(0, 0, -2)
	item, err := planner.CreatePlannedItem(ctx, company.ID, workflow.PlannedItemCreateInput{
		Type:         "INVOICE",
		Direction:    "in",
		Amount:       decimal.RequireFromString("1250.00"),
		DueDate:      dueDate,
		Counterparty: "Acme Ltd",
		ReferenceNo:  "INV-1001",
	})
	if err != nil {
		t.Fatalf("CreatePlannedItem: %v", err)
	}

	entry, err := importer.CreateEntry(ctx, company.ID, workflow.EntryCreateInput{
		Date:        dueDate.AddDate(0, 0, 1),
		Description: "HAVALE ACME LTD INV-1001",
		Amount:      decimal.RequireFromString("1250.00"),
		Direction:   "in",
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	updated, err := models.GetPlannedItem(ctx, db, company.ID, item.ID)
	if err != nil {
		t.Fatalf("GetPlannedItem: %v", err)
	}
	if updated.Status != models.PlannedStatusSettled {
		t.Errorf("status = %s, want SETTLED", updated.Status)
	}
	if !updated.RemainingAmount.IsZero() {
		t.Errorf("remaining = %s, want 0", updated.RemainingAmount)
	}
	if !updated.SettledAmount.Equal(decimal.RequireFromString("1250")) {
		t.Errorf("settled = %s, want 1250", updated.SettledAmount)
	}

	matches, err := models.ListMatchesForEntry(ctx, db, company.ID, entry.ID)
	if err != nil {
		t.Fatalf("ListMatchesForEntry: %v", err)
	}
	if len(matches) != 1 || matches[0].MatchType != models.MatchTypeAuto {
		t.Fatalf("matches = %+v, want one AUTO match", matches)
	}

	// Deleting the entry cascades the match and reopens the item.
	if err := importer.DeleteEntry(ctx, company.ID, entry.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	reopened, err := models.GetPlannedItem(ctx, db, company.ID, item.ID)
	if err != nil {
		t.Fatalf("GetPlannedItem after delete: %v", err)
	}
	if reopened.Status != models.PlannedStatusOpen {
		t.Errorf("status after cascade = %s, want OPEN", reopened.Status)
	}
}

// Manual match validation path against a real MySQL: a second match for the
// same pair is rejected, over-allocation is rejected, and deleting the match
// recomputes the item back to OPEN.
func TestManualMatchValidationAndDelete(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL)")
	}

	ctx := context.Background()

	db := config.ConnectDatabaseWithRetry()
	models.MigrateTable(db)

	logger := config.GetLogger()
	matcher := workflow.NewMatchService(db, logger, workflow.DefaultConfig())
	importer := workflow.NewImportService(db, logger, categorize.DefaultTable(), matcher)
	planner := workflow.NewPlannedService(db, logger)

	company := models.Company{Name: "Integration Test Manual Match Co", Timezone: "Europe/Istanbul"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}

	item, err := planner.CreatePlannedItem(ctx, company.ID, workflow.PlannedItemCreateInput{
		Type:      "CHEQUE",
		Direction: "out",
		Amount:    decimal.RequireFromString("900.00"),
		DueDate:   time.Now().AddDate(0, 0, 3),
	})
	if err != nil {
		t.Fatalf("CreatePlannedItem: %v", err)
	}

	// Amount differs from the obligation so auto-match stays out of the way.
	entry, err := importer.CreateEntry(ctx, company.ID, workflow.EntryCreateInput{
		Date:        time.Now().AddDate(0, 0, -1),
		Description: "CEK ODEME KISMI",
		Amount:      decimal.RequireFromString("400.00"),
		Direction:   "out",
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if _, err := matcher.CreateMatch(ctx, company.ID, workflow.MatchCreateInput{
		PlannedItemId: item.ID,
		LedgerEntryId: entry.ID,
		MatchedAmount: decimal.RequireFromString("1000.00"),
	}); err != workflow.ErrAmountExceedsRemaining {
		t.Fatalf("over-allocation err = %v, want ErrAmountExceedsRemaining", err)
	}

	result, err := matcher.CreateMatch(ctx, company.ID, workflow.MatchCreateInput{
		PlannedItemId: item.ID,
		LedgerEntryId: entry.ID,
		MatchedAmount: decimal.RequireFromString("400.00"),
	})
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if result.PlannedStatus != models.PlannedStatusPartial {
		t.Errorf("status = %s, want PARTIAL", result.PlannedStatus)
	}
	if !result.RemainingAmount.Equal(decimal.RequireFromString("500")) {
		t.Errorf("remaining = %s, want 500", result.RemainingAmount)
	}

	if _, err := matcher.CreateMatch(ctx, company.ID, workflow.MatchCreateInput{
		PlannedItemId: item.ID,
		LedgerEntryId: entry.ID,
		MatchedAmount: decimal.RequireFromString("100.00"),
	}); err != workflow.ErrPairAlreadyMatched {
		t.Fatalf("duplicate pair err = %v, want ErrPairAlreadyMatched", err)
	}

	links, err := matcher.ListItemMatches(ctx, company.ID, item.ID)
	if err != nil {
		t.Fatalf("ListItemMatches: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}

	deleted, err := matcher.DeleteMatch(ctx, company.ID, result.MatchId)
	if err != nil {
		t.Fatalf("DeleteMatch: %v", err)
	}
	if deleted.PlannedStatus != models.PlannedStatusOpen {
		t.Errorf("status after delete = %s, want OPEN", deleted.PlannedStatus)
	}
	if !deleted.SettledAmount.IsZero() {
		t.Errorf("settled after delete = %s, want 0", deleted.SettledAmount)
	}
}
