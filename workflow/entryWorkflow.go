package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/statement"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
)

var (
	ErrFutureDate     = errors.New("date cannot be in the future")
	ErrDuplicateEntry = errors.New("an identical entry already exists")
	ErrInvalidAmount  = errors.New("amount must be positive")
)

type EntryCreateInput struct {
	Date        time.Time       `json:"date" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Direction   string          `json:"direction" validate:"required,oneof=in out"`
	Category    string          `json:"category"`
}

// CreateEntry records a hand-entered movement. Manual entries get an
// identity too so re-entering the same movement trips the duplicate check,
// and they run through auto-match like imported rows.
func (s *ImportService) CreateEntry(ctx context.Context, companyId int, input EntryCreateInput) (*models.LedgerEntry, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	direction, err := models.ParseDirection(input.Direction)
	if err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if truncateToDay(input.Date).After(truncateToDay(time.Now())) {
		return nil, ErrFutureDate
	}

	category := input.Category
	if category == "" {
		category = s.Categorizer.Categorize(input.Description, input.Amount, direction)
	}

	externalId := statement.ManualExternalId(
		input.Date.Format("2006-01-02"),
		string(direction),
		input.Amount.StringFixed(2),
		utils.Truncate(input.Description, 20),
	)

	entry := &models.LedgerEntry{
		CompanyId:   companyId,
		Date:        input.Date,
		Description: input.Description,
		Amount:      input.Amount,
		Direction:   direction,
		Category:    utils.NilIfEmpty(category),
		Source:      models.EntrySourceManual,
		ExternalId:  &externalId,
	}

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Create(entry).Error; err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEntry
		}
		config.LogError(s.Logger, "entryWorkflow.go", "CreateEntry", "Create", input, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "entryWorkflow.go", "CreateEntry", "Commit", input, err)
		return nil, err
	}

	if _, err := s.Matcher.AutoMatchEntry(ctx, companyId, entry); err != nil {
		config.LogError(s.Logger, "entryWorkflow.go", "CreateEntry", "AutoMatchEntry", entry.ID, err)
	}

	return entry, nil
}

// ListEntries returns the company's ledger, newest first, optionally bounded
// by an inclusive date range.
func (s *ImportService) ListEntries(ctx context.Context, companyId int, startDate, endDate *time.Time) ([]*models.LedgerEntry, error) {
	return models.ListLedgerEntries(ctx, s.DB, companyId, startDate, endDate)
}

// UpdateEntryCategory overwrites the stored label. The pipeline never
// re-derives a category the user has corrected.
func (s *ImportService) UpdateEntryCategory(ctx context.Context, companyId int, entryId string, category string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, entryId).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	entry.Category = utils.NilIfEmpty(category)
	err = s.DB.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("company_id = ? AND id = ?", companyId, entryId).
		Update("category", entry.Category).Error
	if err != nil {
		config.LogError(s.Logger, "entryWorkflow.go", "UpdateEntryCategory", "Update", entryId, err)
		return nil, err
	}
	return &entry, nil
}

// DeleteEntry removes a ledger entry together with its matches, in one
// transaction, then recomputes every planned item the matches touched.
func (s *ImportService) DeleteEntry(ctx context.Context, companyId int, entryId string) error {
	var entry models.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, entryId).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return ErrLedgerEntryNotFound
	}
	if err != nil {
		return err
	}

	matches, err := models.ListMatchesForEntry(ctx, s.DB, companyId, entryId)
	if err != nil {
		config.LogError(s.Logger, "entryWorkflow.go", "DeleteEntry", "ListMatchesForEntry", entryId, err)
		return err
	}

	tx := s.DB.WithContext(ctx).Begin()
	if len(matches) > 0 {
		if err := tx.Delete(&models.PlannedMatch{}, "company_id = ? AND ledger_entry_id = ?", companyId, entryId).Error; err != nil {
			tx.Rollback()
			config.LogError(s.Logger, "entryWorkflow.go", "DeleteEntry", "DeleteMatches", entryId, err)
			return err
		}
	}
	if err := tx.Delete(&models.LedgerEntry{}, "company_id = ? AND id = ?", companyId, entryId).Error; err != nil {
		tx.Rollback()
		config.LogError(s.Logger, "entryWorkflow.go", "DeleteEntry", "DeleteEntry", entryId, err)
		return err
	}

	// Recompute affected items inside the same transaction so the cascade
	// and the new settlement state land together.
	recomputed := make(map[string]bool)
	for _, match := range matches {
		if recomputed[match.PlannedItemId] {
			continue
		}
		recomputed[match.PlannedItemId] = true
		if _, err := s.Matcher.recomputeInTx(tx, companyId, match.PlannedItemId); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "entryWorkflow.go", "DeleteEntry", "Commit", entryId, err)
		return err
	}
	return nil
}

// EntryMatchDetail pairs a match with its planned item for per-entry
// listing.
type EntryMatchDetail struct {
	MatchId       int                 `json:"match_id"`
	MatchedAmount decimal.Decimal     `json:"matched_amount"`
	MatchType     models.MatchType    `json:"match_type"`
	PlannedItem   *models.PlannedItem `json:"planned_item"`
}

// ListEntryMatches returns the matches of one entry with their planned
// items resolved.
func (s *ImportService) ListEntryMatches(ctx context.Context, companyId int, entryId string) ([]EntryMatchDetail, error) {
	var entry models.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, entryId).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	matches, err := models.ListMatchesForEntry(ctx, s.DB, companyId, entryId)
	if err != nil {
		return nil, err
	}

	out := make([]EntryMatchDetail, 0, len(matches))
	for _, match := range matches {
		item, err := models.GetPlannedItem(ctx, s.DB, companyId, match.PlannedItemId)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}
		out = append(out, EntryMatchDetail{
			MatchId:       match.ID,
			MatchedAmount: match.MatchedAmount,
			MatchType:     match.MatchType,
			PlannedItem:   item,
		})
	}
	return out, nil
}
