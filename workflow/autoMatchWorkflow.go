package workflow

import (
	"context"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
)

// selectCandidate picks at most one planned item for an entry.
//
// The caller supplies items already filtered on company, direction, status
// and exact remaining amount. This narrows by the date window, then by
// reference hits in the entry description, then by nearest due date. Two
// candidates at the same nearest distance are ambiguous and nothing is
// selected.
func selectCandidate(entry *models.LedgerEntry, items []*models.PlannedItem, windowDays int) (*models.PlannedItem, bool) {
	inWindow := make([]*models.PlannedItem, 0, len(items))
	for _, item := range items {
		if utils.DayDistance(entry.Date, item.DueDate) <= windowDays {
			inWindow = append(inWindow, item)
		}
	}
	if len(inWindow) == 0 {
		return nil, false
	}

	refHits := make([]*models.PlannedItem, 0, len(inWindow))
	for _, item := range inWindow {
		ref := utils.DereferencePtr(item.ReferenceNo)
		if strings.TrimSpace(ref) != "" && strings.Contains(entry.Description, ref) {
			refHits = append(refHits, item)
		}
	}
	if len(refHits) > 0 {
		inWindow = refHits
	}

	if len(inWindow) > 1 {
		sort.SliceStable(inWindow, func(i, j int) bool {
			return utils.DayDistance(entry.Date, inWindow[i].DueDate) < utils.DayDistance(entry.Date, inWindow[j].DueDate)
		})
		if utils.DayDistance(entry.Date, inWindow[0].DueDate) == utils.DayDistance(entry.Date, inWindow[1].DueDate) {
			return nil, true
		}
	}

	return inWindow[0], false
}

// AutoMatchEntry attempts to settle a planned item with a freshly written
// ledger entry. At most one AUTO match is created per call; when the choice
// is ambiguous nothing happens and the ambiguity is logged. The created
// match commits in its own transaction and the item is recomputed before
// returning, so callers observe the settlement immediately.
func (s *MatchService) AutoMatchEntry(ctx context.Context, companyId int, entry *models.LedgerEntry) (*models.PlannedMatch, error) {
	var candidates []*models.PlannedItem
	err := s.DB.WithContext(ctx).
		Where("company_id = ? AND direction = ? AND remaining_amount = ?", companyId, entry.Direction, entry.Amount).
		Where("status IN ?", []models.PlannedStatus{
			models.PlannedStatusOpen, models.PlannedStatusPartial, models.PlannedStatusSettled,
		}).
		Find(&candidates).Error
	if err != nil {
		config.LogError(s.Logger, "autoMatchWorkflow.go", "AutoMatchEntry", "QueryCandidates", entry.ID, err)
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	selected, ambiguous := selectCandidate(entry, candidates, s.Config.DateWindowDays)
	if ambiguous {
		s.Logger.WithFields(map[string]interface{}{
			"company_id":      companyId,
			"ledger_entry_id": entry.ID,
			"amount":          entry.Amount,
			"candidates":      len(candidates),
		}).Warn("auto-match ambiguous, skipping")
		return nil, nil
	}
	if selected == nil {
		return nil, nil
	}

	// Idempotency: the pair may already be matched from an earlier import.
	existing, err := models.FindPlannedMatchPair(ctx, s.DB, companyId, selected.ID, entry.ID)
	if err != nil {
		config.LogError(s.Logger, "autoMatchWorkflow.go", "AutoMatchEntry", "FindPlannedMatchPair", entry.ID, err)
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	match := &models.PlannedMatch{
		CompanyId:     companyId,
		PlannedItemId: selected.ID,
		LedgerEntryId: entry.ID,
		MatchedAmount: entry.Amount,
		MatchType:     models.MatchTypeAuto,
	}

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Create(match).Error; err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			// A concurrent import won the race for this pair. Drop ours.
			s.Logger.WithFields(map[string]interface{}{
				"company_id":      companyId,
				"ledger_entry_id": entry.ID,
				"planned_item_id": selected.ID,
			}).Warn("auto-match lost insert race, dropping")
			return nil, nil
		}
		config.LogError(s.Logger, "autoMatchWorkflow.go", "AutoMatchEntry", "CreateMatch", match, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "autoMatchWorkflow.go", "AutoMatchEntry", "Commit", match, err)
		return nil, err
	}

	if _, err := s.RecomputePlannedStatus(ctx, companyId, selected.ID); err != nil {
		return nil, err
	}
	return match, nil
}

// isUniqueViolation reports whether err is a storage uniqueness conflict.
// MySQL reports 1062, other engines phrase it differently.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
