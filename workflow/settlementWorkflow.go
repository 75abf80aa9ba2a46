package workflow

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

// MatchService owns the settlement state machine: auto-matching, manual
// matches and the planned-item recompute they both trigger.
type MatchService struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Config Config
}

func NewMatchService(db *gorm.DB, logger *logrus.Logger, cfg Config) *MatchService {
	return &MatchService{DB: db, Logger: logger, Config: cfg}
}

// deriveStatus computes the settlement state from the item amount and the
// sum of matched amounts. Remaining is clamped at zero, and a residual at or
// below the epsilon counts as settled.
func deriveStatus(amount, settled, epsilon decimal.Decimal) (models.PlannedStatus, decimal.Decimal) {
	remaining := amount.Sub(settled)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	switch {
	case remaining.LessThanOrEqual(epsilon):
		return models.PlannedStatusSettled, decimal.Zero
	case settled.GreaterThan(decimal.Zero):
		return models.PlannedStatusPartial, remaining
	default:
		return models.PlannedStatusOpen, remaining
	}
}

// RecomputePlannedStatus re-derives settled_amount, remaining_amount and
// status of one planned item from its matches. It is idempotent and runs to
// completion before the triggering operation returns, so a subsequent read
// sees the new state. Cancelled items keep their aggregates updated but the
// status stays CANCELLED.
func (s *MatchService) RecomputePlannedStatus(ctx context.Context, companyId int, plannedItemId string) (*models.PlannedItem, error) {
	tx := s.DB.WithContext(ctx).Begin()
	defer tx.Rollback()

	item, err := s.recomputeInTx(tx, companyId, plannedItemId)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "settlementWorkflow.go", "RecomputePlannedStatus", "Commit", plannedItemId, err)
		return nil, err
	}
	return item, nil
}

// recomputeInTx is the recompute body for callers that already hold a
// transaction, such as cascade deletes.
func (s *MatchService) recomputeInTx(tx *gorm.DB, companyId int, plannedItemId string) (*models.PlannedItem, error) {
	var item models.PlannedItem
	err := tx.Where("company_id = ? AND id = ?", companyId, plannedItemId).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		// The item vanished, nothing to recompute.
		return nil, nil
	}
	if err != nil {
		config.LogError(s.Logger, "settlementWorkflow.go", "recomputeInTx", "GetPlannedItem", plannedItemId, err)
		return nil, err
	}

	var settled decimal.Decimal
	err = tx.Model(&models.PlannedMatch{}).
		Where("company_id = ? AND planned_item_id = ?", companyId, plannedItemId).
		Select("COALESCE(SUM(matched_amount), 0)").
		Scan(&settled).Error
	if err != nil {
		config.LogError(s.Logger, "settlementWorkflow.go", "recomputeInTx", "SumMatchedAmount", plannedItemId, err)
		return nil, err
	}

	status, remaining := deriveStatus(item.Amount, settled, s.Config.SettleEpsilon)

	item.SettledAmount = settled
	item.RemainingAmount = remaining
	if item.Status != models.PlannedStatusCancelled {
		item.Status = status
	}

	err = tx.Model(&models.PlannedItem{}).
		Where("company_id = ? AND id = ?", companyId, plannedItemId).
		Updates(map[string]interface{}{
			"settled_amount":   item.SettledAmount,
			"remaining_amount": item.RemainingAmount,
			"status":           item.Status,
		}).Error
	if err != nil {
		config.LogError(s.Logger, "settlementWorkflow.go", "recomputeInTx", "UpdatePlannedItem", plannedItemId, err)
		return nil, err
	}

	return &item, nil
}
