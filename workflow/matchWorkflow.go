package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
)

var (
	ErrPlannedItemNotFound    = errors.New("planned item not found")
	ErrLedgerEntryNotFound    = errors.New("ledger entry not found")
	ErrMatchNotFound          = errors.New("match not found")
	ErrItemClosedForMatching  = errors.New("planned item is closed for matching")
	ErrDirectionMismatch      = errors.New("entry and planned item directions differ")
	ErrAmountExceedsRemaining = errors.New("matched amount exceeds remaining amount")
	ErrPairAlreadyMatched     = errors.New("entry already matched to this planned item")
)

type MatchCreateInput struct {
	PlannedItemId string          `json:"planned_item_id" validate:"required"`
	LedgerEntryId string          `json:"ledger_entry_id" validate:"required"`
	MatchedAmount decimal.Decimal `json:"matched_amount" validate:"required"`
	MatchType     string          `json:"match_type"`
}

// MatchResult is the snapshot returned after a match mutation so callers
// see the recomputed item without a second read.
type MatchResult struct {
	MatchId         int                  `json:"match_id,omitempty"`
	PlannedItemId   string               `json:"planned_item_id"`
	LedgerEntryId   string               `json:"ledger_entry_id,omitempty"`
	PlannedStatus   models.PlannedStatus `json:"planned_status"`
	SettledAmount   decimal.Decimal      `json:"settled_amount"`
	RemainingAmount decimal.Decimal      `json:"remaining_amount"`
}

// matchGuard holds every validation between loading both sides of a manual
// match and writing the link. existingPair is the stored match for the same
// (item, entry) pair, nil when there is none.
func matchGuard(item *models.PlannedItem, entry *models.LedgerEntry, amount decimal.Decimal, existingPair *models.PlannedMatch, epsilon decimal.Decimal) error {
	if item.Status != models.PlannedStatusOpen && item.Status != models.PlannedStatusPartial {
		return ErrItemClosedForMatching
	}
	if entry.Direction != item.Direction {
		return ErrDirectionMismatch
	}
	if amount.Sub(item.RemainingAmount).GreaterThan(epsilon) {
		return ErrAmountExceedsRemaining
	}
	if existingPair != nil {
		return ErrPairAlreadyMatched
	}
	return nil
}

// CreateMatch records a manual settlement link. All validations run before
// anything is written; a failure leaves no partial effect.
func (s *MatchService) CreateMatch(ctx context.Context, companyId int, input MatchCreateInput) (*MatchResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.MatchedAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	item, err := models.GetPlannedItem(ctx, s.DB, companyId, input.PlannedItemId)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrPlannedItemNotFound
	}
	if err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "CreateMatch", "GetPlannedItem", input, err)
		return nil, err
	}

	var entry models.LedgerEntry
	err = s.DB.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, input.LedgerEntryId).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrLedgerEntryNotFound
	}
	if err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "CreateMatch", "GetLedgerEntry", input, err)
		return nil, err
	}

	existing, err := models.FindPlannedMatchPair(ctx, s.DB, companyId, item.ID, entry.ID)
	if err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "CreateMatch", "FindPlannedMatchPair", input, err)
		return nil, err
	}

	if err := matchGuard(item, &entry, input.MatchedAmount, existing, s.Config.MatchEpsilon); err != nil {
		return nil, err
	}

	matchType := models.MatchTypeManual
	if input.MatchType != "" {
		matchType = models.MatchType(strings.ToUpper(input.MatchType))
	}

	match := &models.PlannedMatch{
		CompanyId:     companyId,
		PlannedItemId: item.ID,
		LedgerEntryId: entry.ID,
		MatchedAmount: input.MatchedAmount,
		MatchType:     matchType,
	}

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Create(match).Error; err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, ErrPairAlreadyMatched
		}
		config.LogError(s.Logger, "matchWorkflow.go", "CreateMatch", "Create", match, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "CreateMatch", "Commit", match, err)
		return nil, err
	}

	updated, err := s.RecomputePlannedStatus(ctx, companyId, item.ID)
	if err != nil {
		return nil, err
	}

	return &MatchResult{
		MatchId:         match.ID,
		PlannedItemId:   item.ID,
		LedgerEntryId:   entry.ID,
		PlannedStatus:   updated.Status,
		SettledAmount:   updated.SettledAmount,
		RemainingAmount: updated.RemainingAmount,
	}, nil
}

// DeleteMatch removes a settlement link and recomputes the item. The item
// having vanished in the meantime is tolerated.
func (s *MatchService) DeleteMatch(ctx context.Context, companyId int, matchId int) (*MatchResult, error) {
	match, err := models.GetPlannedMatch(ctx, s.DB, companyId, matchId)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "DeleteMatch", "GetPlannedMatch", matchId, err)
		return nil, err
	}

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Delete(&models.PlannedMatch{}, "company_id = ? AND id = ?", companyId, matchId).Error; err != nil {
		tx.Rollback()
		config.LogError(s.Logger, "matchWorkflow.go", "DeleteMatch", "Delete", matchId, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "DeleteMatch", "Commit", matchId, err)
		return nil, err
	}

	result := &MatchResult{PlannedItemId: match.PlannedItemId}
	updated, err := s.RecomputePlannedStatus(ctx, companyId, match.PlannedItemId)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		result.PlannedStatus = updated.Status
		result.SettledAmount = updated.SettledAmount
		result.RemainingAmount = updated.RemainingAmount
	}
	return result, nil
}

// MatchDetail joins a match with both sides for listing.
type MatchDetail struct {
	MatchId          int                  `json:"match_id"`
	MatchedAmount    decimal.Decimal      `json:"matched_amount"`
	MatchType        models.MatchType     `json:"match_type"`
	PlannedItemId    string               `json:"planned_item_id"`
	PlannedStatus    models.PlannedStatus `json:"planned_status"`
	PlannedAmount    decimal.Decimal      `json:"planned_amount"`
	PlannedReference string               `json:"planned_reference"`
	Counterparty     string               `json:"planned_counterparty"`
	LedgerEntryId    string               `json:"ledger_entry_id"`
	EntryDescription string               `json:"entry_description"`
	EntryAmount      decimal.Decimal      `json:"entry_amount"`
}

// ListMatches returns every settlement link of the company with both sides
// resolved.
func (s *MatchService) ListMatches(ctx context.Context, companyId int) ([]MatchDetail, error) {
	var rows []MatchDetail
	err := s.DB.WithContext(ctx).
		Table("planned_matches pm").
		Select(`pm.id AS match_id, pm.matched_amount, pm.match_type,
			pm.planned_item_id, pi.status AS planned_status, pi.amount AS planned_amount,
			COALESCE(pi.reference_no, '') AS planned_reference, COALESCE(pi.counterparty, '') AS counterparty,
			pm.ledger_entry_id, le.description AS entry_description, le.amount AS entry_amount`).
		Joins("LEFT JOIN planned_items pi ON pi.id = pm.planned_item_id").
		Joins("LEFT JOIN ledger_entries le ON le.id = pm.ledger_entry_id").
		Where("pm.company_id = ?", companyId).
		Order("pm.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "ListMatches", "Scan", companyId, err)
		return nil, err
	}
	return rows, nil
}

// ListItemMatches returns the raw settlement links of one planned item,
// newest first.
func (s *MatchService) ListItemMatches(ctx context.Context, companyId int, plannedItemId string) ([]*models.PlannedMatch, error) {
	if _, err := models.GetPlannedItem(ctx, s.DB, companyId, plannedItemId); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPlannedItemNotFound
		}
		config.LogError(s.Logger, "matchWorkflow.go", "ListItemMatches", "GetPlannedItem", plannedItemId, err)
		return nil, err
	}
	return models.ListMatchesForItem(ctx, s.DB, companyId, plannedItemId)
}

// Suggestion is an advisory candidate for manually settling a planned item.
// Nothing here is ever applied automatically.
type Suggestion struct {
	LedgerEntryId        string          `json:"ledger_entry_id"`
	Date                 string          `json:"date"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description"`
	Score                int             `json:"score"`
	SuggestedMatchAmount decimal.Decimal `json:"suggested_match_amount"`
}

// scoreSuggestion weights amount proximity, date proximity and text hits
// against the planned item. The cap keeps a perfect storm of signals from
// exceeding 100.
func scoreSuggestion(entry *models.LedgerEntry, item *models.PlannedItem, remaining decimal.Decimal) int {
	score := 0

	diff := entry.Amount.Sub(remaining).Abs()
	if diff.LessThanOrEqual(decimal.RequireFromString("0.01")) {
		score += 30
	} else if entry.Amount.LessThan(remaining) {
		score += 18
	}

	dayDiff := utils.DayDistance(entry.Date, item.DueDate)
	switch {
	case dayDiff <= 2:
		score += 12
	case dayDiff <= 7:
		score += 8
	case dayDiff <= 14:
		score += 3
	}

	desc := strings.ToLower(entry.Description)
	if cp := strings.ToLower(utils.DereferencePtr(item.Counterparty)); cp != "" && strings.Contains(desc, cp) {
		score += 28
	}
	if ref := strings.ToLower(utils.DereferencePtr(item.ReferenceNo)); ref != "" && strings.Contains(desc, ref) {
		score += 30
	}

	if score > 100 {
		score = 100
	}
	return score
}

// SuggestMatches ranks unmatched same-direction entries for a planned item.
// Candidates come from three passes: amount proximity inside the date
// window, description hits on the counterparty or reference, and a nearest
// amount fallback when both passes came up empty.
func (s *MatchService) SuggestMatches(ctx context.Context, companyId int, plannedItemId string) ([]Suggestion, error) {
	item, err := models.GetPlannedItem(ctx, s.DB, companyId, plannedItemId)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrPlannedItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.Status != models.PlannedStatusOpen && item.Status != models.PlannedStatusPartial {
		return nil, ErrItemClosedForMatching
	}

	remaining := item.RemainingAmount
	if !remaining.IsPositive() {
		return []Suggestion{}, nil
	}

	windowStart := item.DueDate.AddDate(0, 0, -s.Config.SuggestWindowDays)
	windowEnd := item.DueDate.AddDate(0, 0, s.Config.SuggestWindowDays)

	matchedIds := s.DB.Model(&models.PlannedMatch{}).
		Select("ledger_entry_id").
		Where("company_id = ?", companyId)

	base := func() *gorm.DB {
		return s.DB.WithContext(ctx).
			Where("company_id = ? AND direction = ?", companyId, item.Direction).
			Where("id NOT IN (?)", matchedIds)
	}

	// Pass 1: amount proximity inside the date window.
	var amountHits []*models.LedgerEntry
	err = base().
		Where("date >= ? AND date <= ?", windowStart, windowEnd).
		Where("amount <= ?", remaining.Mul(decimal.RequireFromString("1.02"))).
		Order("ABS(amount - " + remaining.String() + ") ASC").
		Limit(15).
		Find(&amountHits).Error
	if err != nil {
		config.LogError(s.Logger, "matchWorkflow.go", "SuggestMatches", "AmountPass", plannedItemId, err)
		return nil, err
	}

	// Pass 2: counterparty or reference occurring in the description.
	var descHits []*models.LedgerEntry
	counterparty := strings.ToLower(utils.DereferencePtr(item.Counterparty))
	reference := strings.ToLower(utils.DereferencePtr(item.ReferenceNo))
	if counterparty != "" || reference != "" {
		var recent []*models.LedgerEntry
		if err := base().Limit(20).Find(&recent).Error; err != nil {
			config.LogError(s.Logger, "matchWorkflow.go", "SuggestMatches", "DescriptionPass", plannedItemId, err)
			return nil, err
		}
		for _, entry := range recent {
			desc := strings.ToLower(entry.Description)
			if (counterparty != "" && strings.Contains(desc, counterparty)) ||
				(reference != "" && strings.Contains(desc, reference)) {
				descHits = append(descHits, entry)
			}
		}
	}

	// Pass 3: nearest amounts regardless of date, only when nothing hit.
	var fallbackHits []*models.LedgerEntry
	if len(amountHits) == 0 && len(descHits) == 0 {
		err = base().
			Order("ABS(amount - " + remaining.String() + ") ASC").
			Limit(10).
			Find(&fallbackHits).Error
		if err != nil {
			config.LogError(s.Logger, "matchWorkflow.go", "SuggestMatches", "FallbackPass", plannedItemId, err)
			return nil, err
		}
	}

	seen := make(map[string]bool)
	out := make([]Suggestion, 0)
	for _, entry := range append(append(amountHits, descHits...), fallbackHits...) {
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true

		suggested := entry.Amount
		if suggested.GreaterThan(remaining) {
			suggested = remaining
		}
		out = append(out, Suggestion{
			LedgerEntryId:        entry.ID,
			Date:                 entry.Date.Format("2006-01-02"),
			Amount:               entry.Amount,
			Description:          entry.Description,
			Score:                scoreSuggestion(entry, item, remaining),
			SuggestedMatchAmount: suggested,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
