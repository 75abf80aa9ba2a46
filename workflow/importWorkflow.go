package workflow

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/statement"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
)

// ImportService drives statement and CSV ingestion into the ledger.
type ImportService struct {
	DB          *gorm.DB
	Logger      *logrus.Logger
	Categorizer Categorizer
	Matcher     *MatchService
}

func NewImportService(db *gorm.DB, logger *logrus.Logger, categorizer Categorizer, matcher *MatchService) *ImportService {
	return &ImportService{DB: db, Logger: logger, Categorizer: categorizer, Matcher: matcher}
}

// maxSampledErrors bounds the row error detail in a summary. Counts are
// always exact, only the samples are capped.
const maxSampledErrors = 50

type RowError struct {
	Row         int    `json:"row"`
	Error       string `json:"error"`
	ExternalId  string `json:"external_id,omitempty"`
	Description string `json:"description,omitempty"`
}

type ImportSummary struct {
	Bank           string                     `json:"bank,omitempty"`
	Inserted       int                        `json:"inserted"`
	Duplicates     int                        `json:"duplicates"`
	Errors         []RowError                 `json:"errors"`
	Reconciliation *statement.ReconcileResult `json:"reconciliation,omitempty"`
}

func (s *ImportSummary) addError(e RowError) {
	if len(s.Errors) < maxSampledErrors {
		s.Errors = append(s.Errors, e)
	}
}

var ErrEmptySheet = errors.New("statement sheet has no rows")

// ImportStatement ingests a bank statement spreadsheet. When bankTag is
// empty the bank is detected from the sheet's header region.
//
// Each accepted row is inserted in its own transaction, then auto-matched,
// before the next row is read. A row that fails never aborts the file: it is
// counted, sampled into the error list and the loop moves on. The
// reconciliation verdict is computed over the whole file and returned in the
// summary; a FAIL is logged but does not undo committed rows.
func (s *ImportService) ImportStatement(ctx context.Context, companyId int, r io.Reader, bankTag string) (*ImportSummary, error) {
	return s.importStatement(ctx, companyId, r, bankTag, nil)
}

// importStatement is the shared statement pipeline. sourceId, when set,
// links every inserted entry back to the ingest artifact (an email
// attachment) it came from so the whole file can be rolled back later.
func (s *ImportService) importStatement(ctx context.Context, companyId int, r io.Reader, bankTag string, sourceId *string) (*ImportSummary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		config.LogError(s.Logger, "importWorkflow.go", "ImportStatement", "OpenReader", bankTag, err)
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	grid, err := f.GetRows(sheet)
	if err != nil {
		config.LogError(s.Logger, "importWorkflow.go", "ImportStatement", "GetRows", sheet, err)
		return nil, err
	}
	if len(grid) == 0 {
		return nil, ErrEmptySheet
	}

	var profile *statement.Profile
	if bankTag != "" {
		profile, err = statement.ProfileByTag(bankTag)
	} else {
		profile, err = statement.DetectProfile(grid)
	}
	if err != nil {
		return nil, err
	}

	headerRow := statement.LocateHeader(grid, profile)
	checker := statement.NewChecker(profile.ReconcileTolerance)
	summary := &ImportSummary{Bank: profile.Tag, Errors: []RowError{}}
	now := time.Now()

rows:
	for i := headerRow + 1; i < len(grid); i++ {
		row, sig := statement.NormalizeRow(grid[i], profile)
		switch sig {
		case statement.SignalEndOfData:
			break rows
		case statement.SignalSkip:
			checker.Skip()
			continue
		}

		checker.Observe(row)

		externalId := statement.ExternalId(profile, row)
		existing, err := models.FindLedgerEntryByIdentity(ctx, s.DB, companyId, externalId, row.Direction)
		if err != nil {
			config.LogError(s.Logger, "importWorkflow.go", "ImportStatement", "FindLedgerEntryByIdentity", externalId, err)
			summary.addError(RowError{Row: i + 1, Error: err.Error(), ExternalId: externalId})
			continue
		}
		if existing != nil {
			summary.Duplicates++
			continue
		}

		category := s.Categorizer.Categorize(row.Description, row.Amount, row.Direction)
		entry := &models.LedgerEntry{
			CompanyId:   companyId,
			Date:        row.Date,
			Description: row.Description,
			Amount:      row.Amount,
			Direction:   row.Direction,
			Category:    utils.NilIfEmpty(category),
			Source:      models.EntrySource(profile.SourceLabel),
			SourceId:    sourceId,
			ExternalId:  &externalId,
			ImportedAt:  &now,
		}

		tx := s.DB.WithContext(ctx).Begin()
		if err := tx.Create(entry).Error; err != nil {
			tx.Rollback()
			s.classifyInsertFailure(ctx, companyId, i+1, externalId, row, err, summary)
			continue
		}
		if err := tx.Commit().Error; err != nil {
			config.LogError(s.Logger, "importWorkflow.go", "ImportStatement", "Commit", externalId, err)
			summary.addError(RowError{Row: i + 1, Error: err.Error(), ExternalId: externalId})
			continue
		}

		// Settle immediately so re-reads inside the same import see it.
		if _, err := s.Matcher.AutoMatchEntry(ctx, companyId, entry); err != nil {
			config.LogError(s.Logger, "importWorkflow.go", "ImportStatement", "AutoMatchEntry", entry.ID, err)
		}

		summary.Inserted++
	}

	result := checker.Result()
	summary.Reconciliation = &result

	if result.Status == statement.ReconcileFail {
		s.Logger.WithFields(logrus.Fields{
			"company_id":            companyId,
			"source":                profile.SourceLabel,
			"difference":            result.Difference,
			"rows_seen":             result.RowsSeen,
			"rows_skipped":          result.RowsSkipped,
			"first_balance":         result.FirstBalance,
			"last_balance":          result.LastBalance,
			"sum_signed_amount":     result.SumSignedAmount,
			"expected_last_balance": result.ExpectedLastBalance,
		}).Warn("IMPORT_RECONCILIATION_FAIL")
	}

	return summary, nil
}

// classifyInsertFailure decides whether a failed insert was a duplicate.
// A uniqueness conflict counts as one only when the stored row's direction
// matches; the same identity with the opposite direction is a data problem
// and stays an error.
func (s *ImportService) classifyInsertFailure(ctx context.Context, companyId int, rowNum int, externalId string, row *statement.Row, insertErr error, summary *ImportSummary) {
	if !isUniqueViolation(insertErr) {
		config.LogError(s.Logger, "importWorkflow.go", "ImportStatement", "CreateLedgerEntry", externalId, insertErr)
		summary.addError(RowError{Row: rowNum, Error: insertErr.Error(), ExternalId: externalId, Description: utils.Truncate(row.Description, 50)})
		return
	}

	existing, err := models.FindLedgerEntryByExternalId(ctx, s.DB, companyId, externalId)
	if err != nil {
		summary.addError(RowError{Row: rowNum, Error: insertErr.Error(), ExternalId: externalId})
		return
	}
	if existing != nil && existing.Direction == row.Direction {
		summary.Duplicates++
		summary.addError(RowError{Row: rowNum, Error: "DUPLICATE", ExternalId: externalId, Description: utils.Truncate(row.Description, 50)})
		return
	}
	summary.addError(RowError{Row: rowNum, Error: insertErr.Error(), ExternalId: externalId, Description: utils.Truncate(row.Description, 50)})
}

var csvEntryColumns = []string{"date", "description", "amount", "direction"}

// ImportEntriesCSV ingests the canonical CSV layout: date, description,
// amount, direction. Same per-row commit and auto-match discipline as the
// statement path, without identities or reconciliation.
func (s *ImportService) ImportEntriesCSV(ctx context.Context, companyId int, r io.Reader) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New("csv file is empty")
	}
	colIdx, err := csvColumnIndex(header, csvEntryColumns)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{Errors: []RowError{}}
	today := truncateToDay(time.Now())

	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[colIdx["date"]]))
		if err != nil {
			summary.addError(RowError{Row: rowNum, Error: "invalid date, expected YYYY-MM-DD"})
			continue
		}
		if date.After(today) {
			summary.addError(RowError{Row: rowNum, Error: "date is in the future"})
			continue
		}

		amount, err := utils.ParseDecimal(strings.ReplaceAll(record[colIdx["amount"]], ",", "."))
		if err != nil || !amount.IsPositive() {
			summary.addError(RowError{Row: rowNum, Error: "invalid amount"})
			continue
		}

		direction, err := models.ParseDirection(record[colIdx["direction"]])
		if err != nil {
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		description := strings.TrimSpace(record[colIdx["description"]])
		category := s.Categorizer.Categorize(description, amount, direction)

		entry := &models.LedgerEntry{
			CompanyId:   companyId,
			Date:        date,
			Description: description,
			Amount:      amount,
			Direction:   direction,
			Category:    utils.NilIfEmpty(category),
			Source:      models.EntrySourceCSV,
		}

		tx := s.DB.WithContext(ctx).Begin()
		if err := tx.Create(entry).Error; err != nil {
			tx.Rollback()
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		if err := tx.Commit().Error; err != nil {
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		if _, err := s.Matcher.AutoMatchEntry(ctx, companyId, entry); err != nil {
			config.LogError(s.Logger, "importWorkflow.go", "ImportEntriesCSV", "AutoMatchEntry", entry.ID, err)
		}

		summary.Inserted++
	}

	return summary, nil
}

// csvColumnIndex maps required column names to their positions in a CSV
// header, case-insensitively.
func csvColumnIndex(header []string, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	missing := []string{}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New("csv is missing required columns: " + strings.Join(missing, ", "))
	}
	return idx, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
