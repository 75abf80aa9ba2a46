package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry is one realized, dated cash movement (a bank transaction).
// Amount is always a positive magnitude; Direction carries the sign.
type LedgerEntry struct {
	ID          string          `gorm:"primary_key;size:36" json:"id"`
	CompanyId   int             `gorm:"index;not null;uniqueIndex:uq_external_direction_company" json:"company_id"`
	Date        time.Time       `gorm:"not null" json:"date"`
	Description string          `gorm:"type:text" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Direction   Direction       `gorm:"not null;type:enum('in','out');uniqueIndex:uq_external_direction_company" json:"direction"`
	Category    *string         `gorm:"size:255;default:null" json:"category"`
	Source      EntrySource     `gorm:"size:64;not null;default:'manual'" json:"source"`
	SourceId    *string         `gorm:"size:36;index;default:null" json:"source_id"`
	ExternalId  *string         `gorm:"size:255;default:null;uniqueIndex:uq_external_direction_company" json:"external_id"`
	ImportedAt  *time.Time      `gorm:"default:null" json:"imported_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func (e LedgerEntry) GetId() string {
	return e.ID
}

// FindLedgerEntryByIdentity looks up the deduplication key
// (external identity, direction, company).
func FindLedgerEntryByIdentity(ctx context.Context, db *gorm.DB, companyId int, externalId string, direction Direction) (*LedgerEntry, error) {
	var entry LedgerEntry
	err := db.WithContext(ctx).
		Where("company_id = ? AND external_id = ? AND direction = ?", companyId, externalId, direction).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindLedgerEntryByExternalId ignores direction; used when reclassifying a
// storage-level uniqueness violation.
func FindLedgerEntryByExternalId(ctx context.Context, db *gorm.DB, companyId int, externalId string) (*LedgerEntry, error) {
	var entry LedgerEntry
	err := db.WithContext(ctx).
		Where("company_id = ? AND external_id = ?", companyId, externalId).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func ListLedgerEntries(ctx context.Context, db *gorm.DB, companyId int, startDate *time.Time, endDate *time.Time) ([]*LedgerEntry, error) {
	dbCtx := db.WithContext(ctx).Where("company_id = ?", companyId)
	if startDate != nil {
		dbCtx = dbCtx.Where("date >= ?", *startDate)
	}
	if endDate != nil {
		dbCtx = dbCtx.Where("date <= ?", *endDate)
	}

	var entries []*LedgerEntry
	if err := dbCtx.Order("date DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
