package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/categorize"
	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
	"bitbucket.org/mmdatafocus/cashrecon_backend/workflow"
)

// Seeds a demo company with planned items and matching ledger entries so
// the matching pipeline can be exercised against a fresh database.
func main() {
	companyName := flag.String("company", "Demo Ticaret A.S.", "Company name to seed")
	timezone := flag.String("timezone", "Europe/Istanbul", "Company timezone")
	flag.Parse()

	ctx := context.Background()
	logger := config.GetLogger()

	db := config.ConnectDatabaseWithRetry()
	models.MigrateTable(db)

	company := models.Company{
		Name:     strings.TrimSpace(*companyName),
		Timezone: strings.TrimSpace(*timezone),
	}
	if err := db.WithContext(ctx).Where("name = ?", company.Name).FirstOrCreate(&company).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to create company: %v\n", err)
		os.Exit(1)
	}

	matcher := workflow.NewMatchService(db, logger, workflow.DefaultConfig())
	importer := workflow.NewImportService(db, logger, categorize.DefaultTable(), matcher)
	planner := workflow.NewPlannedService(db, logger)

	today, err := utils.ConvertToDate(time.Now(), company.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve company timezone: %v\n", err)
		os.Exit(1)
	}

	plannedSeeds := []workflow.PlannedItemCreateInput{
		{Type: "INVOICE", Direction: "in", Amount: decimal.RequireFromString("12500.00"), DueDate: today.AddDate(0, 0, -3), Counterparty: "Acme Tekstil", ReferenceNo: "INV-2024-0117"},
		{Type: "INVOICE", Direction: "in", Amount: decimal.RequireFromString("4800.50"), DueDate: today.AddDate(0, 0, 2), Counterparty: "Beta Gida", ReferenceNo: "INV-2024-0121"},
		{Type: "CHEQUE", Direction: "out", Amount: decimal.RequireFromString("7300.00"), DueDate: today.AddDate(0, 0, -1), Counterparty: "Mega Lojistik", ReferenceNo: "CHQ-88341"},
		{Type: "PO", Direction: "out", Amount: decimal.RequireFromString("15900.00"), DueDate: today.AddDate(0, 0, 10), Counterparty: "Demir Celik Ltd", ReferenceNo: "PO-5512"},
	}
	for _, seed := range plannedSeeds {
		if _, err := planner.CreatePlannedItem(ctx, company.ID, seed); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed planned item %s: %v\n", seed.ReferenceNo, err)
			os.Exit(1)
		}
	}

	entrySeeds := []workflow.EntryCreateInput{
		{Date: today.AddDate(0, 0, -2), Description: "HAVALE ACME TEKSTIL INV-2024-0117", Amount: decimal.RequireFromString("12500.00"), Direction: "in"},
		{Date: today.AddDate(0, 0, -1), Description: "CEK ODEME MEGA LOJISTIK CHQ-88341", Amount: decimal.RequireFromString("7300.00"), Direction: "out"},
		{Date: today, Description: "POS SATIS MIGROS", Amount: decimal.RequireFromString("945.20"), Direction: "in"},
		{Date: today, Description: "ELEKTRIK FATURA BEDAS", Amount: decimal.RequireFromString("1320.75"), Direction: "out"},
	}
	for _, seed := range entrySeeds {
		if _, err := importer.CreateEntry(ctx, company.ID, seed); err != nil {
			if err == workflow.ErrDuplicateEntry {
				continue
			}
			fmt.Fprintf(os.Stderr, "failed to seed entry %q: %v\n", seed.Description, err)
			os.Exit(1)
		}
	}

	fmt.Printf("seeded company %d (%s): %d planned items, %d entries\n",
		company.ID, company.Name, len(plannedSeeds), len(entrySeeds))
}
