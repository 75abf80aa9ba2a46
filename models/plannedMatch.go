package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlannedMatch links one ledger entry to one planned item for a specific
// amount. A (company, item, entry) pair can be matched at most once.
type PlannedMatch struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CompanyId     int             `gorm:"not null;uniqueIndex:uq_planned_match" json:"company_id"`
	PlannedItemId string          `gorm:"size:36;not null;index;uniqueIndex:uq_planned_match" json:"planned_item_id"`
	LedgerEntryId string          `gorm:"size:36;not null;index;uniqueIndex:uq_planned_match" json:"ledger_entry_id"`
	MatchedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"matched_amount"`
	MatchType     MatchType       `gorm:"not null;type:enum('MANUAL','AUTO');default:'MANUAL'" json:"match_type"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (m PlannedMatch) GetId() int {
	return m.ID
}

func GetPlannedMatch(ctx context.Context, db *gorm.DB, companyId int, id int) (*PlannedMatch, error) {
	var match PlannedMatch
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, id).
		First(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// FindPlannedMatchPair returns the existing match for the (item, entry) pair,
// or nil when none exists.
func FindPlannedMatchPair(ctx context.Context, db *gorm.DB, companyId int, plannedItemId string, ledgerEntryId string) (*PlannedMatch, error) {
	var match PlannedMatch
	err := db.WithContext(ctx).
		Where("company_id = ? AND planned_item_id = ? AND ledger_entry_id = ?", companyId, plannedItemId, ledgerEntryId).
		First(&match).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func ListMatchesForEntry(ctx context.Context, db *gorm.DB, companyId int, ledgerEntryId string) ([]*PlannedMatch, error) {
	var matches []*PlannedMatch
	err := db.WithContext(ctx).
		Where("company_id = ? AND ledger_entry_id = ?", companyId, ledgerEntryId).
		Order("created_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func ListMatchesForItem(ctx context.Context, db *gorm.DB, companyId int, plannedItemId string) ([]*PlannedMatch, error) {
	var matches []*PlannedMatch
	err := db.WithContext(ctx).
		Where("company_id = ? AND planned_item_id = ?", companyId, plannedItemId).
		Order("created_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}
